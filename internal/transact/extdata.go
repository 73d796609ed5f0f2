// extdata.go - The externally visible effect of a shielded transaction.
//
// ExtData binds recipient, amounts, fee routing and the encrypted
// outputs into one hash carried as a public circuit input, so a relayer
// cannot rewrite any of them after the proof is made.

package transact

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math/big"

	"shieldpool/internal/ledger"
	"shieldpool/internal/shield"
)

// ExtData is the transaction's cleartext envelope.
type ExtData struct {
	Recipient        ledger.Address
	ExtAmount        int64
	EncryptedOutput1 []byte
	EncryptedOutput2 []byte
	Fee              uint64
	FeeRecipient     ledger.Address
	MintAddress      ledger.Address
}

// Hash serializes the envelope with fixed-width little-endian integers
// and length-prefixed byte strings, then hashes it.
func (e *ExtData) Hash() [32]byte {
	h := sha256.New()
	h.Write(e.Recipient[:])
	writeInt64LE(h, e.ExtAmount)
	writeBytes(h, e.EncryptedOutput1)
	writeBytes(h, e.EncryptedOutput2)
	writeUint64LE(h, e.Fee)
	h.Write(e.FeeRecipient[:])
	h.Write(e.MintAddress[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashField returns the envelope hash reduced into the proof field.
func (e *ExtData) HashField() *big.Int {
	digest := e.Hash()
	v := new(big.Int).SetBytes(digest[:])
	return v.Mod(v, shield.FieldSize())
}

func writeBytes(w io.Writer, b []byte) {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(b)))
	w.Write(prefix[:])
	w.Write(b)
}

func writeInt64LE(w io.Writer, v int64) {
	writeUint64LE(w, uint64(v))
}

func writeUint64LE(w io.Writer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}
