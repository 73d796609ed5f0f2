package scan

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldpool/internal/ledger"
	"shieldpool/internal/relayer"
	"shieldpool/internal/shield"
	"shieldpool/internal/storage"
)

type fakeRPC struct {
	existing map[ledger.Address]bool
}

func (f *fakeRPC) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeRPC) TokenAccountBalance(ctx context.Context, addr ledger.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeRPC) AccountsExist(ctx context.Context, addrs []ledger.Address) ([]bool, error) {
	out := make([]bool, len(addrs))
	for i, a := range addrs {
		out[i] = f.existing[a]
	}
	return out, nil
}

type scanFixture struct {
	scanner *Scanner
	enc     *shield.EncryptionService
	store   *storage.Memory
	rpc     *fakeRPC
	program ledger.Address

	// log is the full encrypted output log served in pages.
	log        []string
	rangeCalls []uint64
}

func newFixture(t *testing.T) *scanFixture {
	t.Helper()
	f := &scanFixture{
		rpc:   &fakeRPC{existing: make(map[ledger.Address]bool)},
		store: storage.NewMemory(),
	}
	copy(f.program[:], []byte("program-id-for-scanner-tests...."))

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	f.enc = shield.NewEncryptionService()
	require.NoError(t, f.enc.DeriveKeys(ed25519.Sign(priv, []byte(shield.KeyDerivationMessage))))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/utxos/range":
			start, _ := strconv.ParseUint(r.URL.Query().Get("start"), 10, 64)
			end, _ := strconv.ParseUint(r.URL.Query().Get("end"), 10, 64)
			f.rangeCalls = append(f.rangeCalls, start)
			if start > uint64(len(f.log)) {
				start = uint64(len(f.log))
			}
			if end > uint64(len(f.log)) {
				end = uint64(len(f.log))
			}
			json.NewEncoder(w).Encode(relayer.UtxoPage{
				EncryptedOutputs: f.log[start:end],
				HasMore:          end < uint64(len(f.log)),
				Total:            uint64(len(f.log)),
			})
		case "/utxos/indices":
			var body struct {
				EncryptedOutputs []string `json:"encrypted_outputs"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			// Authoritative index = position in the full log.
			position := make(map[string]uint64, len(f.log))
			for i, enc := range f.log {
				position[enc] = uint64(i)
			}
			indices := make([]uint64, len(body.EncryptedOutputs))
			for i, enc := range body.EncryptedOutputs {
				indices[i] = position[enc]
			}
			json.NewEncoder(w).Encode(map[string][]uint64{"indices": indices})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	var owner ledger.Address
	copy(owner[:], []byte("owner-address-for-scanner-tests."))
	f.scanner = New(f.rpc, relayer.New(srv.URL, zerolog.Nop()), f.enc, f.store, f.program, owner, zerolog.Nop())
	f.scanner.pageDelay = 0
	return f
}

// appendOwned encrypts a UTXO with the fixture's session key, appends it
// to the log at the next position, and returns the ciphertext hex.
func (f *scanFixture) appendOwned(t *testing.T, amount int64) string {
	t.Helper()
	owner, err := f.enc.UtxoKeypair(shield.V2)
	require.NoError(t, err)
	u := shield.NewUtxo(big.NewInt(amount), owner, uint64(len(f.log)), shield.NativeAsset, shield.V2)
	ct, err := f.enc.EncryptUtxo(u)
	require.NoError(t, err)
	encHex := hex.EncodeToString(ct)
	f.log = append(f.log, encHex)
	return encHex
}

// appendOwnedAsset is appendOwned for an arbitrary asset id.
func (f *scanFixture) appendOwnedAsset(t *testing.T, amount int64, assetID string) {
	t.Helper()
	owner, err := f.enc.UtxoKeypair(shield.V2)
	require.NoError(t, err)
	u := shield.NewUtxo(big.NewInt(amount), owner, uint64(len(f.log)), assetID, shield.V2)
	ct, err := f.enc.EncryptUtxo(u)
	require.NoError(t, err)
	f.log = append(f.log, hex.EncodeToString(ct))
}

// appendForeign appends an output owned by someone else.
func (f *scanFixture) appendForeign(t *testing.T) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	other := shield.NewEncryptionService()
	require.NoError(t, other.DeriveKeys(ed25519.Sign(priv, []byte(shield.KeyDerivationMessage))))
	owner, err := other.UtxoKeypair(shield.V2)
	require.NoError(t, err)
	u := shield.NewUtxo(big.NewInt(999), owner, uint64(len(f.log)), shield.NativeAsset, shield.V2)
	ct, err := other.EncryptUtxo(u)
	require.NoError(t, err)
	f.log = append(f.log, hex.EncodeToString(ct))
}

// markSpent records one of the UTXO's nullifier accounts on the ledger.
func (f *scanFixture) markSpent(t *testing.T, u *shield.Utxo) {
	t.Helper()
	nf, err := u.Nullifier()
	require.NoError(t, err)
	a0, _ := ledger.NullifierAccounts(f.program, ledger.NullifierBytes(nf))
	f.rpc.existing[a0] = true
}

func TestScanReconstructsBalance(t *testing.T) {
	f := newFixture(t)
	f.appendForeign(t)
	f.appendOwned(t, 100)
	f.appendOwned(t, 250)
	f.appendForeign(t)

	unspent, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, unspent, 2)
	assert.Equal(t, uint64(350), shield.BalanceFromUtxos(unspent).Lamports)

	// Authoritative indices come from the indexer, in log order.
	assert.Equal(t, uint64(1), unspent[0].Index)
	assert.Equal(t, uint64(2), unspent[1].Index)
}

func TestScanFiltersSpent(t *testing.T) {
	f := newFixture(t)
	f.appendOwned(t, 100)
	f.appendOwned(t, 250)

	first, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	f.markSpent(t, first[0])

	unspent, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, unspent, 1)
	assert.Equal(t, uint64(250), shield.BalanceFromUtxos(unspent).Lamports)
}

func TestScanResumesFromPersistedOffset(t *testing.T) {
	f := newFixture(t)
	f.appendOwned(t, 100)

	_, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, f.rangeCalls)

	// New log entry after the checkpoint; the next scan starts at 1 and
	// still reports the cached first UTXO.
	f.appendOwned(t, 50)
	unspent, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, f.rangeCalls)
	assert.Equal(t, uint64(150), shield.BalanceFromUtxos(unspent).Lamports)
}

func TestScanCacheSurvivesMissedPage(t *testing.T) {
	f := newFixture(t)
	encHex := f.appendOwned(t, 777)

	// Simulate a previous run that owned the output but whose offset
	// checkpoint already skipped past it.
	require.NoError(t, f.store.Set(f.scanner.storageKey(offsetKeyPrefix, f.scanner.owner.String()), "1"))
	require.NoError(t, f.store.Set(f.scanner.storageKey(outputsKeyPrefix, f.scanner.owner.String()),
		`["`+encHex+`"]`))

	unspent, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, unspent, 1)
	assert.Equal(t, uint64(777), shield.BalanceFromUtxos(unspent).Lamports)
}

func TestScanTokenFiltersOtherAssets(t *testing.T) {
	f := newFixture(t)
	var mint ledger.Address
	copy(mint[:], []byte("mint-address-for-scanner-tests.."))

	// Our own native-asset output served on the token-scoped page must
	// not count toward the token balance.
	f.appendOwnedAsset(t, 5000, shield.NativeAsset)
	f.appendOwnedAsset(t, 300, mint.String())

	unspent, err := f.scanner.ScanToken(context.Background(), "USDC", mint)
	require.NoError(t, err)
	require.Len(t, unspent, 1)
	assert.Equal(t, mint.String(), unspent[0].AssetID)
	assert.Equal(t, uint64(300), unspent[0].AmountUint64())

	// The native scan still sees the native UTXO.
	native, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, native, 1)
	assert.Equal(t, uint64(5000), native[0].AmountUint64())
}

func TestScanAborts(t *testing.T) {
	f := newFixture(t)
	f.appendOwned(t, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.scanner.Scan(ctx)
	require.ErrorIs(t, err, shield.ErrAborted)
}
