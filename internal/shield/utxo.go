// utxo.go - The private balance fragment and its commitment/nullifier algebra.

package shield

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

// NativeAsset is the sentinel asset id for the chain's native token.
const NativeAsset = "11111111111111111111111111111112"

// Version tags the encryption/serialization format a UTXO was produced under.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

// Utxo is one unspent private balance fragment.
//
// A UTXO with zero amount is a dummy: it is never inserted into the
// accumulator and never nullified on-chain. After creation the only field
// ever corrected is Index, once the indexer reports the real tree position.
type Utxo struct {
	Amount   *big.Int
	Blinding *big.Int
	Owner    *Keypair
	Index    uint64
	AssetID  string
	Version  Version
}

// NewUtxo creates a UTXO with a fresh full-width blinding factor.
func NewUtxo(amount *big.Int, owner *Keypair, index uint64, assetID string, version Version) *Utxo {
	return &Utxo{
		Amount:   new(big.Int).Set(amount),
		Blinding: randomFieldElement(),
		Owner:    owner,
		Index:    index,
		AssetID:  assetID,
		Version:  version,
	}
}

// NewUtxoWithBlinding creates a UTXO with a caller-chosen blinding factor.
func NewUtxoWithBlinding(amount, blinding *big.Int, owner *Keypair, index uint64, assetID string, version Version) *Utxo {
	return &Utxo{
		Amount:   new(big.Int).Set(amount),
		Blinding: new(big.Int).Set(blinding),
		Owner:    owner,
		Index:    index,
		AssetID:  assetID,
		Version:  version,
	}
}

// DummyUtxo creates a zero-amount placeholder input.
func DummyUtxo(owner *Keypair, assetID string) *Utxo {
	return NewUtxo(big.NewInt(0), owner, 0, assetID, V2)
}

// IsDummy reports whether the UTXO carries no value.
func (u *Utxo) IsDummy() bool {
	return u.Amount.Sign() == 0
}

// AmountUint64 returns the amount clamped into uint64 range.
func (u *Utxo) AmountUint64() uint64 {
	if !u.Amount.IsUint64() {
		return 0
	}
	return u.Amount.Uint64()
}

// Commitment computes Hash(amount, owner public key, blinding, asset field).
// Deterministic: equal contents always commit to the same value.
func (u *Utxo) Commitment() (*big.Int, error) {
	asset, err := AssetField(u.AssetID)
	if err != nil {
		return nil, err
	}
	return Hash(u.Amount, u.Owner.pubkey, u.Blinding, asset), nil
}

// Nullifier computes Hash(commitment, index, sign(priv, commitment, index)).
// It is the double-spend key: deterministic for the owner, unpredictable
// without the private key.
func (u *Utxo) Nullifier() (*big.Int, error) {
	cm, err := u.Commitment()
	if err != nil {
		return nil, err
	}
	sig := u.Owner.Sign(cm, u.Index)
	return Hash(cm, new(big.Int).SetUint64(u.Index), sig), nil
}

// AssetField maps an asset id into the field for commitment hashing.
// The native sentinel is read as a decimal literal; token mints contribute the
// first 31 bytes of their decoded address, which always fits the field.
func AssetField(assetID string) (*big.Int, error) {
	if assetID == NativeAsset {
		v, ok := new(big.Int).SetString(assetID, 10)
		if !ok {
			return nil, errors.Wrap(ErrSerialization, "native asset sentinel")
		}
		return v, nil
	}
	raw := base58.Decode(assetID)
	if len(raw) != 32 {
		return nil, errors.Wrapf(ErrInvalidKeypair, "asset id %q is not a 32-byte address", assetID)
	}
	return new(big.Int).SetBytes(raw[:31]), nil
}

// Serialize renders the fields that travel inside the ciphertext.
func (u *Utxo) Serialize() string {
	return fmt.Sprintf("%s|%s|%d|%s", u.Amount, u.Blinding, u.Index, u.AssetID)
}

// ParseUtxo rebuilds a UTXO from its serialized form and the owning keypair.
func ParseUtxo(data string, owner *Keypair, version Version) (*Utxo, error) {
	parts := strings.Split(data, "|")
	if len(parts) != 4 {
		return nil, errors.Wrap(ErrDecryption, "wrong field count")
	}
	amount, ok := new(big.Int).SetString(parts[0], 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.Wrap(ErrDecryption, "bad amount")
	}
	blinding, ok := new(big.Int).SetString(parts[1], 10)
	if !ok {
		return nil, errors.Wrap(ErrDecryption, "bad blinding")
	}
	index, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, "bad index")
	}
	return &Utxo{
		Amount:   amount,
		Blinding: blinding,
		Owner:    owner,
		Index:    index,
		AssetID:  parts[3],
		Version:  version,
	}, nil
}

// Balance is a native-asset balance in base units.
type Balance struct {
	Lamports uint64
}

// TokenBalance is a token balance with its per-asset unit scale applied.
type TokenBalance struct {
	BaseUnits uint64
	Amount    float64
}

// BalanceFromUtxos sums the amounts of the given UTXOs.
// Dummies contribute nothing.
func BalanceFromUtxos(utxos []*Utxo) Balance {
	var total uint64
	for _, u := range utxos {
		total += u.AmountUint64()
	}
	return Balance{Lamports: total}
}

// TokenBalanceFromUtxos sums UTXO amounts and normalizes by unitsPerToken.
func TokenBalanceFromUtxos(utxos []*Utxo, unitsPerToken uint64) TokenBalance {
	if len(utxos) == 0 || unitsPerToken == 0 {
		return TokenBalance{}
	}
	var total uint64
	for _, u := range utxos {
		total += u.AmountUint64()
	}
	return TokenBalance{
		BaseUnits: total,
		Amount:    float64(total) / float64(unitsPerToken),
	}
}
