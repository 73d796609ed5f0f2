// crypto.go - Field arithmetic and the algebraic hash for the shielded pool.
//
// All protocol values (keys, amounts, blindings, commitments, nullifiers, roots)
// live in the BN254 scalar field. The hash is gnark-crypto's native MiMC over
// that field, which is exactly the hash the transaction circuit evaluates, so
// commitments and nullifiers computed here match the ones the circuit constrains.

package shield

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/pkg/errors"
)

// fieldSize is the BN254 scalar field modulus.
var fieldSize = fr.Modulus()

// FieldSize returns the prime modulus of the protocol field as a fresh big.Int.
func FieldSize() *big.Int {
	return new(big.Int).Set(fieldSize)
}

// reduce maps an arbitrary non-negative integer into the field.
func reduce(v *big.Int) *big.Int {
	return new(big.Int).Mod(v, fieldSize)
}

// Hash computes MiMC over the given field elements.
// Each input is written as a canonical 32-byte field element, so the digest is
// identical to the in-circuit MiMC over the same sequence.
func Hash(inputs ...*big.Int) *big.Int {
	h := mimc.NewMiMC()
	for _, in := range inputs {
		var e fr.Element
		e.SetBigInt(reduce(in))
		b := e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// HashStrings computes Hash over decimal-encoded field elements.
// Returns the digest as a decimal string.
func HashStrings(inputs ...string) (string, error) {
	elems := make([]*big.Int, len(inputs))
	for i, s := range inputs {
		v, ok := new(big.Int).SetString(s, 10)
		if ok && v.Sign() >= 0 {
			elems[i] = v
			continue
		}
		return "", errors.Wrapf(ErrInvalidKeypair, "not a decimal field element: %q", s)
	}
	return Hash(elems...).String(), nil
}

// randomFieldElement samples a uniform element of the full field width.
func randomFieldElement() *big.Int {
	var e fr.Element
	// SetRandom only fails if crypto/rand does; there is no recovery from that.
	if _, err := e.SetRandom(); err != nil {
		panic(err)
	}
	return e.BigInt(new(big.Int))
}

// bytesToField interprets big-endian bytes as an integer and reduces it.
func bytesToField(b []byte) *big.Int {
	return reduce(new(big.Int).SetBytes(b))
}
