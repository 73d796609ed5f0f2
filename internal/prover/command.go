// command.go - External proving binary driven over stdin/stdout.
//
// For deployments where proving keys live outside the client (or proving
// runs on beefier hardware), the circuit input is piped as JSON to a
// helper process which prints the proof and public signals back.

package prover

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os/exec"

	"github.com/pkg/errors"
)

// CommandProver shells out to an external proving binary.
type CommandProver struct {
	// Path is the proving binary.
	Path string
	// ArtifactsDir is passed as the first argument; the binary resolves
	// its circuit artifacts there.
	ArtifactsDir string
}

var _ Prover = (*CommandProver)(nil)

type commandOutput struct {
	Proof struct {
		A string `json:"a"`
		B string `json:"b"`
		C string `json:"c"`
	} `json:"proof"`
	PublicSignals []string `json:"publicSignals"`
}

func (p *CommandProver) Prove(ctx context.Context, input *CircuitInput) (*Proof, []*big.Int, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode circuit input")
	}

	cmd := exec.CommandContext(ctx, p.Path, p.ArtifactsDir)
	cmd.Stdin = bytes.NewReader(encoded)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, nil, errors.Wrapf(err, "prover %s failed: %s", p.Path, stderr.String())
	}

	var out commandOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, nil, errors.Wrap(err, "decode prover output")
	}

	var proof Proof
	if err := fillPoint(proof.A[:], out.Proof.A, "a"); err != nil {
		return nil, nil, err
	}
	if err := fillPoint(proof.B[:], out.Proof.B, "b"); err != nil {
		return nil, nil, err
	}
	if err := fillPoint(proof.C[:], out.Proof.C, "c"); err != nil {
		return nil, nil, err
	}

	signals := make([]*big.Int, len(out.PublicSignals))
	for i, s := range out.PublicSignals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, nil, errors.Errorf("prover returned malformed public signal %d: %q", i, s)
		}
		signals[i] = v
	}
	return &proof, signals, nil
}

func fillPoint(dst []byte, hexStr, name string) error {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return errors.Wrapf(err, "proof point %s", name)
	}
	if len(raw) != len(dst) {
		return errors.Errorf("proof point %s is %d bytes, want %d", name, len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
