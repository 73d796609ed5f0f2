// Package shield implements the client-side core of the shielded pool: the
// field keypair and commitment scheme, the incremental Merkle accumulator,
// the versioned UTXO encryption layer, and the UTXO data model.
//
// Design notes:
//   - All protocol values are BN254 scalar field elements; the algebraic hash
//     is gnark-crypto's native MiMC, which is the same construction the
//     bundled proving circuit evaluates in-circuit.
//   - Commitments hide and bind UTXO contents; nullifiers are the
//     deterministic, owner-only double-spend keys.
//   - Decryption failure doubles as the ownership test during scanning and is
//     deliberately indistinguishable from data corruption.
//
// Everything here is pure computation; network and storage collaborators live
// in the sibling packages.
package shield
