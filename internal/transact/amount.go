// amount.go - Field arithmetic on the public amount.

package transact

import (
	"math/big"

	"shieldpool/internal/shield"
)

// PublicAmount computes (extAmount − fee) mod p. Withdrawals carry a
// negative external amount, which wraps into the top of the field; the
// on-chain verifier applies the same two's-complement-over-p reading.
func PublicAmount(extAmount int64, fee uint64) *big.Int {
	v := new(big.Int).SetInt64(extAmount)
	v.Sub(v, new(big.Int).SetUint64(fee))
	return v.Mod(v, shield.FieldSize())
}
