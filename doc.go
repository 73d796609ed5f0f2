// doc.go - Package overview.

// Package shieldpool is a client for a shielded-balance UTXO pool.
//
// Funds are held as encrypted UTXOs committed into an on-chain Merkle
// accumulator. Only the wallet's derived keys can recognize and spend
// its outputs: ownership is established by trial decryption of the
// public encrypted-output log, spending is authorized by a zero-knowledge
// proof, and double-spends are prevented by nullifier accounts derived
// on the ledger.
//
// Construct a Client with New, then use Deposit/Withdraw and their token
// variants. All operations take a context and return errors as values.
package shieldpool
