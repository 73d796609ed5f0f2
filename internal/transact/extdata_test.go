package transact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shieldpool/internal/ledger"
	"shieldpool/internal/shield"
)

func sampleExtData() *ExtData {
	return &ExtData{
		Recipient:        ledger.Address{1, 2, 3},
		ExtAmount:        1000,
		EncryptedOutput1: []byte{0xAA, 0xBB},
		EncryptedOutput2: []byte{0xCC},
		Fee:              10,
		FeeRecipient:     ledger.Address{4, 5},
		MintAddress:      ledger.Address{6},
	}
}

func TestExtDataHashDeterministic(t *testing.T) {
	a := sampleExtData().Hash()
	b := sampleExtData().Hash()
	assert.Equal(t, a, b)
}

func TestExtDataHashBindsEveryField(t *testing.T) {
	base := sampleExtData().Hash()

	mutations := []func(*ExtData){
		func(e *ExtData) { e.Recipient[0] ^= 1 },
		func(e *ExtData) { e.ExtAmount = -1000 },
		func(e *ExtData) { e.EncryptedOutput1 = []byte{0xAA} },
		func(e *ExtData) { e.EncryptedOutput2 = []byte{0xCC, 0x00} },
		func(e *ExtData) { e.Fee = 11 },
		func(e *ExtData) { e.FeeRecipient[0] ^= 1 },
		func(e *ExtData) { e.MintAddress[0] ^= 1 },
	}
	for i, mutate := range mutations {
		e := sampleExtData()
		mutate(e)
		assert.NotEqual(t, base, e.Hash(), "mutation %d must change the hash", i)
	}

	// Length-prefixing keeps boundaries unambiguous: moving a byte
	// between the two outputs changes the hash.
	e := sampleExtData()
	e.EncryptedOutput1 = []byte{0xAA}
	e.EncryptedOutput2 = []byte{0xBB, 0xCC}
	assert.NotEqual(t, base, e.Hash())
}

func TestExtDataHashFieldInRange(t *testing.T) {
	v := sampleExtData().HashField()
	assert.True(t, v.Sign() >= 0)
	assert.True(t, v.Cmp(shield.FieldSize()) < 0)
}
