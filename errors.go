// errors.go - Public error surface.
//
// All failures are values. The concrete types live with the core
// packages; these aliases keep errors.Is/As checks working without
// reaching into internal paths.

package shieldpool

import "shieldpool/internal/shield"

// Sentinel errors.
var (
	ErrInvalidKeypair = shield.ErrInvalidKeypair
	ErrEncryption     = shield.ErrEncryption
	ErrDecryption     = shield.ErrDecryption
	ErrSerialization  = shield.ErrSerialization
	ErrTreeFull       = shield.ErrTreeFull
	ErrAborted        = shield.ErrAborted
)

// Structured errors.
type (
	MerkleProofError              = shield.MerkleProofError
	InsufficientBalanceError      = shield.InsufficientBalanceError
	InsufficientTokenBalanceError = shield.InsufficientTokenBalanceError
	TokenNotSupportedError        = shield.TokenNotSupportedError
	ConfirmationTimeoutError      = shield.ConfirmationTimeoutError
	APIError                      = shield.APIError
)
