package transact

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldpool/internal/ledger"
	"shieldpool/internal/prover"
	"shieldpool/internal/relayer"
	"shieldpool/internal/scan"
	"shieldpool/internal/shield"
	"shieldpool/internal/storage"
)

type stubRPC struct {
	balance      uint64
	tokenBalance uint64
}

func (s *stubRPC) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	return s.balance, nil
}

func (s *stubRPC) TokenAccountBalance(ctx context.Context, addr ledger.Address) (uint64, error) {
	return s.tokenBalance, nil
}

func (s *stubRPC) AccountsExist(ctx context.Context, addrs []ledger.Address) ([]bool, error) {
	return make([]bool, len(addrs)), nil
}

// stubProver checks the assembled witness is internally consistent and
// returns a canned proof.
type stubProver struct {
	lastInput *prover.CircuitInput
}

func (p *stubProver) Prove(ctx context.Context, input *prover.CircuitInput) (*prover.Proof, []*big.Int, error) {
	p.lastInput = input
	signals, err := prover.PublicSignals(input)
	if err != nil {
		return nil, nil, err
	}
	return &prover.Proof{}, signals, nil
}

type builderFixture struct {
	builder   *Builder
	prover    *stubProver
	rpc       *stubRPC
	submitted []string
	confirmed bool

	// checkFailures makes that many confirmation polls return 500.
	checkFailures int
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()
	f := &builderFixture{
		rpc:       &stubRPC{balance: 1_000_000_000, tokenBalance: 1_000_000_000},
		prover:    &stubProver{},
		confirmed: true,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/merkle/root":
			json.NewEncoder(w).Encode(relayer.TreeState{
				Root:      shield.NewMerkleTree(shield.DefaultTreeDepth).Root().String(),
				NextIndex: 0,
			})
		case r.URL.Path == "/utxos/range":
			json.NewEncoder(w).Encode(relayer.UtxoPage{})
		case r.URL.Path == "/deposit/spl":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			f.submitted = append(f.submitted, body["signedTransaction"])
			json.NewEncoder(w).Encode(map[string]string{"signature": "sig-test"})
		case len(r.URL.Path) > len("/utxos/check/") && r.URL.Path[:13] == "/utxos/check/":
			if f.checkFailures > 0 {
				f.checkFailures--
				http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]bool{"exists": f.confirmed})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	enc := shield.NewEncryptionService()
	require.NoError(t, enc.DeriveKeys(ed25519.Sign(priv, []byte(shield.KeyDerivationMessage))))

	wallet, err := ledger.NewWallet()
	require.NoError(t, err)
	var program, feeRecipient ledger.Address
	copy(program[:], []byte("builder-test-program-id........."))
	copy(feeRecipient[:], []byte("builder-test-fee-recipient......"))

	relay := relayer.New(srv.URL, zerolog.Nop())
	scanner := scan.New(f.rpc, relay, enc, storage.NewMemory(), program, wallet.Address(), zerolog.Nop())

	f.builder = NewBuilder(f.rpc, relay, enc, scanner, f.prover, wallet, program, feeRecipient, zerolog.Nop())
	f.builder.confirmInterval = time.Millisecond
	f.builder.confirmRetries = 3
	return f
}

func TestDepositBuildsConsistentTransaction(t *testing.T) {
	f := newBuilderFixture(t)

	result, err := f.builder.Deposit(context.Background(), 10_000_000, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "sig-test", result.Signature)
	assert.Equal(t, uint64(10_000_000), result.OutputAmount)

	input := f.prover.lastInput
	require.NotNil(t, input)
	assert.Equal(t, "10000000", input.PublicAmount)
	assert.Equal(t, "10000000", input.OutAmount[0])
	assert.Equal(t, "0", input.OutAmount[1])
	// Fresh pool: both inputs are dummies with full-depth zero paths.
	assert.Equal(t, "0", input.InAmount[0])
	assert.Equal(t, "0", input.InAmount[1])
	assert.Len(t, input.InPathElements[0], shield.DefaultTreeDepth)

	// The relayer received a verifiable envelope.
	require.Len(t, f.submitted, 1)
	raw, err := base64.StdEncoding.DecodeString(f.submitted[0])
	require.NoError(t, err)
	var envelope signedEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, f.builder.wallet.Address().String(), envelope.Signer)
	message, err := base64.StdEncoding.DecodeString(envelope.Message)
	require.NoError(t, err)
	assert.Equal(t, transactDiscriminator[:], message[:8])
}

func TestDepositRequiresFunds(t *testing.T) {
	f := newBuilderFixture(t)
	f.rpc.balance = 100

	_, err := f.builder.Deposit(context.Background(), 10_000_000, 0, "")
	var insufficient *shield.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(10_000_000), insufficient.Need)
	assert.Equal(t, uint64(100), insufficient.Have)
}

func TestDepositTokenRequiresNativeFunds(t *testing.T) {
	f := newBuilderFixture(t)
	f.rpc.balance = 1_000_000 // plenty of tokens, not enough for costs

	var mint ledger.Address
	copy(mint[:], []byte("builder-test-mint-address......."))
	_, err := f.builder.DepositToken(context.Background(), "USDC", mint, 500_000, 0, "")
	var insufficient *shield.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(2_000_000), insufficient.Need)
	assert.Equal(t, uint64(1_000_000), insufficient.Have)
}

func TestWithdrawWithoutPrivateFunds(t *testing.T) {
	f := newBuilderFixture(t)

	var recipient ledger.Address
	recipient[0] = 9
	_, err := f.builder.Withdraw(context.Background(), 500, 10, recipient)
	var insufficient *shield.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(500), insufficient.Need)
	assert.Equal(t, uint64(0), insufficient.Have)
}

func TestConfirmationSurvivesPollErrors(t *testing.T) {
	f := newBuilderFixture(t)
	f.checkFailures = 2

	result, err := f.builder.Deposit(context.Background(), 1000, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "sig-test", result.Signature)
}

func TestConfirmationTimeout(t *testing.T) {
	f := newBuilderFixture(t)
	f.confirmed = false

	_, err := f.builder.Deposit(context.Background(), 1000, 0, "")
	var timeout *shield.ConfirmationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Retries)
}
