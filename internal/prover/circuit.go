// circuit.go - The 2-in/2-out shielded transaction circuit.

package prover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// TransactionCircuit proves, without revealing amounts or owners, that a
// transaction spends two committed UTXOs it owns and creates two new
// commitments, conserving value up to the declared public amount.
//
// Public inputs are declared first; their struct order is the verifier's
// signal order.
type TransactionCircuit struct {
	Root             frontend.Variable          `gnark:",public"`
	PublicAmount     frontend.Variable          `gnark:",public"`
	ExtDataHash      frontend.Variable          `gnark:",public"`
	InputNullifier   [Inputs]frontend.Variable  `gnark:",public"`
	OutputCommitment [Outputs]frontend.Variable `gnark:",public"`

	InAmount       [Inputs]frontend.Variable
	InPrivateKey   [Inputs]frontend.Variable
	InBlinding     [Inputs]frontend.Variable
	InPathIndices  [Inputs]frontend.Variable
	InPathElements [Inputs][]frontend.Variable
	OutAmount      [Outputs]frontend.Variable
	OutBlinding    [Outputs]frontend.Variable
	OutPubkey      [Outputs]frontend.Variable
	MintAddress    frontend.Variable
}

// NewTransactionCircuit allocates the path-element slices for a tree of
// the given depth. The circuit shape must match the depth the proving
// keys were generated for.
func NewTransactionCircuit(levels int) *TransactionCircuit {
	var c TransactionCircuit
	for i := 0; i < Inputs; i++ {
		c.InPathElements[i] = make([]frontend.Variable, levels)
	}
	return &c
}

func (c *TransactionCircuit) Define(api frontend.API) error {
	sumIns := frontend.Variable(0)
	for i := 0; i < Inputs; i++ {
		pubkey := mimcHash(api, c.InPrivateKey[i])
		commitment := mimcHash(api, c.InAmount[i], pubkey, c.InBlinding[i], c.MintAddress)

		signature := mimcHash(api, c.InPrivateKey[i], commitment, c.InPathIndices[i])
		nullifier := mimcHash(api, commitment, c.InPathIndices[i], signature)
		api.AssertIsEqual(c.InputNullifier[i], nullifier)

		// Walk the sibling path. A zero-amount dummy carries an arbitrary
		// path, so the root check is gated on the amount: either the
		// computed root matches, or the input is worthless.
		bits := api.ToBinary(c.InPathIndices[i], len(c.InPathElements[i]))
		node := commitment
		for level := 0; level < len(c.InPathElements[i]); level++ {
			sibling := c.InPathElements[i][level]
			left := api.Select(bits[level], sibling, node)
			right := api.Select(bits[level], node, sibling)
			node = mimcHash(api, left, right)
		}
		api.AssertIsEqual(api.Mul(api.Sub(node, c.Root), c.InAmount[i]), 0)

		sumIns = api.Add(sumIns, c.InAmount[i])
	}

	sumOuts := frontend.Variable(0)
	for i := 0; i < Outputs; i++ {
		commitment := mimcHash(api, c.OutAmount[i], c.OutPubkey[i], c.OutBlinding[i], c.MintAddress)
		api.AssertIsEqual(c.OutputCommitment[i], commitment)
		sumOuts = api.Add(sumOuts, c.OutAmount[i])
	}

	// Value conservation, with PublicAmount wrapping mod p for withdrawals.
	api.AssertIsEqual(api.Add(sumIns, c.PublicAmount), sumOuts)

	// Bind the external-data hash into the proof.
	api.Mul(c.ExtDataHash, c.ExtDataHash)

	return nil
}

func mimcHash(api frontend.API, ins ...frontend.Variable) frontend.Variable {
	hasher, _ := mimc.NewMiMC(api)
	hasher.Write(ins...)
	return hasher.Sum()
}
