// prover.go - The proving interface and its input/output records.
//
// The transaction builder assembles a CircuitInput and hands it to a
// Prover; everything past that point is opaque to the builder. Two
// implementations exist: LocalProver (in-process Groth16) and
// CommandProver (external proving binary).

package prover

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
)

// Inputs and Outputs are the fixed transaction arity: every shielded
// transaction spends exactly two inputs (padding with zero-amount
// dummies) and creates exactly two outputs.
const (
	Inputs  = 2
	Outputs = 2
)

// CircuitInput is the full witness for one shielded transaction. Field
// elements are decimal strings so the record survives JSON hand-off to
// an external prover unchanged.
type CircuitInput struct {
	// Public.
	Root             string          `json:"root"`
	PublicAmount     string          `json:"publicAmount"`
	ExtDataHash      string          `json:"extDataHash"`
	InputNullifier   [Inputs]string  `json:"inputNullifier"`
	OutputCommitment [Outputs]string `json:"outputCommitment"`

	// Private.
	InAmount       [Inputs]string   `json:"inAmount"`
	InPrivateKey   [Inputs]string   `json:"inPrivateKey"`
	InBlinding     [Inputs]string   `json:"inBlinding"`
	InPathIndices  [Inputs]uint64   `json:"inPathIndices"`
	InPathElements [Inputs][]string `json:"inPathElements"`
	OutAmount      [Outputs]string  `json:"outAmount"`
	OutBlinding    [Outputs]string  `json:"outBlinding"`
	OutPubkey      [Outputs]string  `json:"outPubkey"`
	MintAddress    string           `json:"mintAddress"`
}

// Proof is a Groth16 proof in the uncompressed point layout the on-chain
// verifier consumes.
type Proof struct {
	A [64]byte
	B [128]byte
	C [64]byte
}

// Prover turns a circuit input into a proof and its public signals.
type Prover interface {
	Prove(ctx context.Context, input *CircuitInput) (*Proof, []*big.Int, error)
}

// PublicSignals extracts the public field elements from the input in
// verifier order: root, public amount, ext-data hash, the two input
// nullifiers, the two output commitments.
func PublicSignals(input *CircuitInput) ([]*big.Int, error) {
	fields := []string{
		input.Root,
		input.PublicAmount,
		input.ExtDataHash,
		input.InputNullifier[0],
		input.InputNullifier[1],
		input.OutputCommitment[0],
		input.OutputCommitment[1],
	}
	signals := make([]*big.Int, len(fields))
	for i, s := range fields {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, errors.Errorf("public signal %d is not a decimal field element: %q", i, s)
		}
		signals[i] = v
	}
	return signals, nil
}
