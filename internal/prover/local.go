// local.go - In-process Groth16 prover.

package prover

import (
	"bytes"
	"context"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LocalProver compiles the transaction circuit once and proves with keys
// cached under KeyDir. Compilation and setup are deferred to the first
// Prove call, which can take minutes on a cold cache.
type LocalProver struct {
	levels int
	keyDir string
	log    zerolog.Logger

	once sync.Once
	ccs  constraint.ConstraintSystem
	pk   groth16.ProvingKey
	err  error
}

// NewLocalProver builds a prover for trees of the given depth, caching
// artifacts under keyDir (empty disables caching).
func NewLocalProver(levels int, keyDir string, log zerolog.Logger) *LocalProver {
	return &LocalProver{
		levels: levels,
		keyDir: keyDir,
		log:    log.With().Str("component", "prover").Logger(),
	}
}

var _ Prover = (*LocalProver)(nil)

func (p *LocalProver) init() {
	p.log.Info().Int("levels", p.levels).Msg("compiling transaction circuit")
	p.ccs, p.err = CompileCircuit(p.levels)
	if p.err != nil {
		return
	}
	p.pk, _, p.err = SetupOrLoadKeys(p.ccs, p.keyDir)
}

func (p *LocalProver) Prove(ctx context.Context, input *CircuitInput) (*Proof, []*big.Int, error) {
	p.once.Do(p.init)
	if p.err != nil {
		return nil, nil, p.err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	assignment, err := assign(input, p.levels)
	if err != nil {
		return nil, nil, err
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, errors.Wrap(err, "build witness")
	}
	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return nil, nil, errors.Wrap(err, "groth16 prove")
	}

	encoded, err := encodeProof(proof)
	if err != nil {
		return nil, nil, err
	}
	signals, err := PublicSignals(input)
	if err != nil {
		return nil, nil, err
	}
	p.log.Debug().Msg("proof generated")
	return encoded, signals, nil
}

// encodeProof renders the proof as the uncompressed A‖B‖C byte layout.
// WriteRawTo emits the three curve points first, in that order.
func encodeProof(proof groth16.Proof) (*Proof, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteRawTo(&buf); err != nil {
		return nil, errors.Wrap(err, "serialize proof")
	}
	raw := buf.Bytes()
	if len(raw) < 256 {
		return nil, errors.Errorf("serialized proof too short: %d bytes", len(raw))
	}
	var out Proof
	copy(out.A[:], raw[0:64])
	copy(out.B[:], raw[64:192])
	copy(out.C[:], raw[192:256])
	return &out, nil
}

func assign(input *CircuitInput, levels int) (*TransactionCircuit, error) {
	c := NewTransactionCircuit(levels)

	var err error
	set := func(s string) frontend.Variable {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok && err == nil {
			err = errors.Errorf("not a decimal field element: %q", s)
		}
		return v
	}

	c.Root = set(input.Root)
	c.PublicAmount = set(input.PublicAmount)
	c.ExtDataHash = set(input.ExtDataHash)
	c.MintAddress = set(input.MintAddress)
	for i := 0; i < Inputs; i++ {
		c.InputNullifier[i] = set(input.InputNullifier[i])
		c.InAmount[i] = set(input.InAmount[i])
		c.InPrivateKey[i] = set(input.InPrivateKey[i])
		c.InBlinding[i] = set(input.InBlinding[i])
		c.InPathIndices[i] = input.InPathIndices[i]
		if len(input.InPathElements[i]) != levels {
			return nil, errors.Errorf("input %d has %d path elements, circuit expects %d",
				i, len(input.InPathElements[i]), levels)
		}
		for j, el := range input.InPathElements[i] {
			c.InPathElements[i][j] = set(el)
		}
	}
	for i := 0; i < Outputs; i++ {
		c.OutputCommitment[i] = set(input.OutputCommitment[i])
		c.OutAmount[i] = set(input.OutAmount[i])
		c.OutBlinding[i] = set(input.OutBlinding[i])
		c.OutPubkey[i] = set(input.OutPubkey[i])
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
