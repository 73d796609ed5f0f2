// wallet.go - The holder's ed25519 wallet key.

package ledger

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/pkg/errors"
)

// Wallet signs messages with the holder's ledger key. Signatures are
// deterministic, which makes the encryption-key derivation a pure function
// of the wallet.
type Wallet struct {
	priv ed25519.PrivateKey
	addr Address
}

// NewWallet generates a fresh wallet key.
func NewWallet() (*Wallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate wallet key")
	}
	return walletFromPrivate(priv), nil
}

// WalletFromSeed rebuilds a wallet from its 32-byte seed.
func WalletFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("wallet seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return walletFromPrivate(ed25519.NewKeyFromSeed(seed)), nil
}

func walletFromPrivate(priv ed25519.PrivateKey) *Wallet {
	var addr Address
	copy(addr[:], priv.Public().(ed25519.PublicKey))
	return &Wallet{priv: priv, addr: addr}
}

// Address returns the wallet's ledger address.
func (w *Wallet) Address() Address {
	return w.addr
}

// SignMessage signs an off-chain message.
func (w *Wallet) SignMessage(msg []byte) []byte {
	return ed25519.Sign(w.priv, msg)
}
