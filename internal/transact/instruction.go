// instruction.go - On-chain instruction encoding.

package transact

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"shieldpool/internal/prover"
)

// maxSignals is the verifier's public input arity.
const maxSignals = 7

// Discriminators identify the two transact entrypoints. They follow the
// usual "global:<method>" convention so clients and program agree
// without a shared registry.
var (
	transactDiscriminator    = methodDiscriminator("transact")
	transactSplDiscriminator = methodDiscriminator("transact_spl")
)

func methodDiscriminator(name string) [8]byte {
	digest := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], digest[:8])
	return out
}

// EncodeInstruction packs one shielded transaction into instruction
// bytes: discriminator, proof points A‖B‖C, up to seven 32-byte public
// signals, the signed external amount, the fee, and both encrypted
// outputs, each u32-length-prefixed.
func EncodeInstruction(spl bool, proof *prover.Proof, signals [][32]byte, ext *ExtData) ([]byte, error) {
	if len(signals) > maxSignals {
		return nil, errors.Errorf("%d public signals exceed the instruction limit of %d", len(signals), maxSignals)
	}

	disc := transactDiscriminator
	if spl {
		disc = transactSplDiscriminator
	}

	size := 8 + 64 + 128 + 64 + 32*len(signals) + 8 + 8 +
		4 + len(ext.EncryptedOutput1) + 4 + len(ext.EncryptedOutput2)
	data := make([]byte, 0, size)

	data = append(data, disc[:]...)
	data = append(data, proof.A[:]...)
	data = append(data, proof.B[:]...)
	data = append(data, proof.C[:]...)
	for _, s := range signals {
		data = append(data, s[:]...)
	}
	data = binary.LittleEndian.AppendUint64(data, uint64(ext.ExtAmount))
	data = binary.LittleEndian.AppendUint64(data, ext.Fee)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(ext.EncryptedOutput1)))
	data = append(data, ext.EncryptedOutput1...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(ext.EncryptedOutput2)))
	data = append(data, ext.EncryptedOutput2...)
	return data, nil
}
