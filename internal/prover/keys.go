// keys.go - Groth16 artifact caching on disk.
//
// Setup is expensive; compiled constraint systems and keys are cached
// under a directory and reloaded on the next run.

package prover

import (
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/pkg/errors"
)

const (
	provingKeyFile   = "transaction.pk"
	verifyingKeyFile = "transaction.vk"
)

// SetupOrLoadKeys loads cached Groth16 keys for the circuit, generating
// and caching them when absent. An empty dir disables caching.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, dir string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	if dir != "" {
		pk, pkErr := loadProvingKey(filepath.Join(dir, provingKeyFile))
		vk, vkErr := loadVerifyingKey(filepath.Join(dir, verifyingKeyFile))
		if pkErr == nil && vkErr == nil {
			return pk, vk, nil
		}
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "groth16 setup")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, errors.Wrap(err, "create key dir")
		}
		if err := saveKey(filepath.Join(dir, provingKeyFile), pk); err != nil {
			return nil, nil, err
		}
		if err := saveKey(filepath.Join(dir, verifyingKeyFile), vk); err != nil {
			return nil, nil, err
		}
	}
	return pk, vk, nil
}

// CompileCircuit compiles the transaction circuit for a tree depth.
func CompileCircuit(levels int) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewTransactionCircuit(levels))
	if err != nil {
		return nil, errors.Wrap(err, "compile transaction circuit")
	}
	return ccs, nil
}

func saveKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if _, err := key.WriteTo(f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func loadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(f); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return pk, nil
}

func loadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return vk, nil
}
