// keypair.go - Field keypair for UTXO ownership.
//
// The public key is the MiMC image of the private key. The keypair never
// touches ledger state directly; it only feeds commitments and nullifiers.

package shield

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Keypair is an ownership keypair over the protocol field.
// Immutable once derived.
type Keypair struct {
	privkey *big.Int
	pubkey  *big.Int
}

// KeypairFromHex derives a keypair from a hex-encoded seed, with or without a
// 0x prefix. The seed is reduced into the field to form the private key.
func KeypairFromHex(seed string) (*Keypair, error) {
	s := strings.TrimPrefix(seed, "0x")
	raw, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, errors.Wrap(ErrInvalidKeypair, "malformed hex seed")
	}
	return newKeypair(raw), nil
}

// KeypairFromBytes derives a keypair from raw big-endian seed bytes.
func KeypairFromBytes(seed []byte) *Keypair {
	return newKeypair(new(big.Int).SetBytes(seed))
}

// GenerateKeypair derives a keypair from 32 bytes of fresh randomness.
func GenerateKeypair() (*Keypair, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "keypair randomness")
	}
	return KeypairFromBytes(seed), nil
}

func newKeypair(raw *big.Int) *Keypair {
	priv := reduce(raw)
	return &Keypair{
		privkey: priv,
		pubkey:  Hash(priv),
	}
}

// Private returns the private key field element.
func (k *Keypair) Private() *big.Int {
	return new(big.Int).Set(k.privkey)
}

// Public returns the public key field element.
func (k *Keypair) Public() *big.Int {
	return new(big.Int).Set(k.pubkey)
}

// PublicString returns the public key as a decimal string.
func (k *Keypair) PublicString() string {
	return k.pubkey.String()
}

// Sign mixes the private key into (commitment, index).
// This is not an externally verifiable signature; it is the domain-separated
// step feeding the nullifier hash.
func (k *Keypair) Sign(commitment *big.Int, index uint64) *big.Int {
	return Hash(k.privkey, commitment, new(big.Int).SetUint64(index))
}
