// address.go - Base58 addresses and deterministic program-derived accounts.

package ledger

import (
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

// Address is a 32-byte ledger account identifier, rendered as base58.
type Address [32]byte

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := base58.Decode(s)
	if len(raw) != 32 {
		return a, errors.Errorf("address %q does not decode to 32 bytes", s)
	}
	copy(a[:], raw)
	return a, nil
}

// String renders the address as base58.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether the address is all zeroes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// pdaDomain separates program-derived accounts from ordinary key images.
const pdaDomain = "ProgramDerivedAddress"

// DeriveProgramAddress derives the account owned by a program for the given
// seeds. Deterministic: the same seeds and program always map to the same
// account, which is what lets clients locate state without an index.
func DeriveProgramAddress(program Address, seeds ...[]byte) Address {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaDomain))
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Seed prefixes for the two per-nullifier spent records. The live scheme
// stores spentness under both as a cross-check; either existing marks the
// UTXO spent.
var (
	seedNullifier0 = []byte("nullifier0")
	seedNullifier1 = []byte("nullifier1")
)

// NullifierAccounts returns the pair of accounts recording one nullifier.
func NullifierAccounts(program Address, nullifier [32]byte) (Address, Address) {
	return DeriveProgramAddress(program, seedNullifier0, nullifier[:]),
		DeriveProgramAddress(program, seedNullifier1, nullifier[:])
}

// ProgramAccounts returns the tree, tree-token and global-config accounts.
func ProgramAccounts(program Address) (tree, treeToken, globalConfig Address) {
	tree = DeriveProgramAddress(program, []byte("merkle_tree"))
	treeToken = DeriveProgramAddress(program, []byte("tree_token"))
	globalConfig = DeriveProgramAddress(program, []byte("global_config"))
	return
}

// TokenTreeAccount returns the per-mint accumulator account.
func TokenTreeAccount(program, mint Address) Address {
	return DeriveProgramAddress(program, []byte("merkle_tree"), mint[:])
}

// AssociatedTokenAddress returns the canonical token account for an owner.
func AssociatedTokenAddress(program, owner, mint Address) Address {
	return DeriveProgramAddress(program, []byte("associated_token"), owner[:], mint[:])
}

// NullifierBytes renders a nullifier field element as the fixed-width
// big-endian form the ledger stores.
func NullifierBytes(nullifier *big.Int) [32]byte {
	var out [32]byte
	nullifier.FillBytes(out[:])
	return out
}
