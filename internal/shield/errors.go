// errors.go - Error taxonomy for the shielded pool client.
//
// Every failure is a value returned to the caller. Decryption failure covers
// both "wrong owner" and "corrupted data" and the two are intentionally
// indistinguishable.

package shield

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKeypair is returned for malformed hex/decimal key material.
	ErrInvalidKeypair = errors.New("invalid keypair")
	// ErrEncryption is returned when a payload cannot be encrypted.
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption is returned when a ciphertext does not decrypt under the
	// session keys. During scanning this is the ownership test.
	ErrDecryption = errors.New("decryption failed")
	// ErrSerialization is returned for malformed wire or field encodings.
	ErrSerialization = errors.New("serialization failed")
	// ErrTreeFull is returned when the accumulator is at capacity.
	ErrTreeFull = errors.New("merkle tree is full")
	// ErrAborted is returned when a scan is cancelled by the caller.
	ErrAborted = errors.New("operation aborted")
)

// MerkleProofError covers index-out-of-bounds and verification failures.
type MerkleProofError struct {
	Reason string
}

func (e *MerkleProofError) Error() string {
	return fmt.Sprintf("merkle proof error: %s", e.Reason)
}

// InsufficientBalanceError reports a shortfall in the native asset.
type InsufficientBalanceError struct {
	Need uint64
	Have uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d, have %d", e.Need, e.Have)
}

// InsufficientTokenBalanceError reports a shortfall in a specific token.
type InsufficientTokenBalanceError struct {
	Token string
	Need  uint64
	Have  uint64
}

func (e *InsufficientTokenBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %d, have %d", e.Token, e.Need, e.Have)
}

// TokenNotSupportedError is returned for mints outside the supported set.
type TokenNotSupportedError struct {
	Mint string
}

func (e *TokenNotSupportedError) Error() string {
	return fmt.Sprintf("token not supported: %s", e.Mint)
}

// ConfirmationTimeoutError is returned when the confirmation poll exhausts its
// retries. The transaction may still have landed; only the client's wait failed.
type ConfirmationTimeoutError struct {
	Retries int
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("confirmation not observed after %d retries", e.Retries)
}

// APIError reports a relayer/indexer failure, carrying the response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("api error: %s", e.Body)
}
