package relayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldpool/internal/shield"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, zerolog.Nop())
}

func TestRoot(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merkle/root", r.URL.Path)
		assert.Equal(t, "USDC", r.URL.Query().Get("token"))
		json.NewEncoder(w).Encode(TreeState{Root: "12345", NextIndex: 42})
	})
	state, err := client.Root(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, "12345", state.Root)
	assert.Equal(t, uint64(42), state.NextIndex)
}

func TestProof(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merkle/proof/777", r.URL.Path)
		json.NewEncoder(w).Encode(MerkleProof{
			PathElements: []string{"1", "2"},
			PathIndices:  []int{0, 1},
		})
	})
	proof, err := client.Proof(context.Background(), "777", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, proof.PathElements)
	assert.Equal(t, []int{0, 1}, proof.PathIndices)
}

func TestProofLengthMismatch(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MerkleProof{
			PathElements: []string{"1", "2"},
			PathIndices:  []int{0},
		})
	})
	_, err := client.Proof(context.Background(), "777", "")
	require.ErrorIs(t, err, shield.ErrSerialization)
}

func TestRangePagedShape(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("start"))
		assert.Equal(t, "100", r.URL.Query().Get("end"))
		json.NewEncoder(w).Encode(UtxoPage{
			EncryptedOutputs: []string{"aa", "bb"},
			HasMore:          true,
			Total:            250,
		})
	})
	page, err := client.Range(context.Background(), 0, 100, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, page.EncryptedOutputs)
	assert.True(t, page.HasMore)
	assert.Equal(t, uint64(250), page.Total)
}

func TestRangeLegacyShape(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"encrypted_output": "aa"},
			{"encrypted_output": "bb"},
		})
	})
	page, err := client.Range(context.Background(), 0, 100, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, page.EncryptedOutputs)
	assert.False(t, page.HasMore)
	assert.Equal(t, uint64(2), page.Total)
}

func TestIndices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			EncryptedOutputs []string `json:"encrypted_outputs"`
			Token            string   `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"aa", "bb"}, body.EncryptedOutputs)
		assert.Equal(t, "USDC", body.Token)
		json.NewEncoder(w).Encode(map[string][]uint64{"indices": {7, 9}})
	})
	indices, err := client.Indices(context.Background(), []string{"aa", "bb"}, "USDC")
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 9}, indices)
}

func TestIndicesCountMismatch(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]uint64{"indices": {7}})
	})
	_, err := client.Indices(context.Background(), []string{"aa", "bb"}, "")
	require.ErrorIs(t, err, shield.ErrSerialization)
}

func TestExists(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/utxos/check/deadbeef", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"exists": true})
	})
	ok, err := client.Exists(context.Background(), "deadbeef", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmit(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c2lnbmVk", body["signedTransaction"])
		assert.Equal(t, "sender", body["senderAddress"])
		assert.Equal(t, "mint", body["mintAddress"])
		_, hasReferrer := body["referralWalletAddress"]
		assert.False(t, hasReferrer)
		json.NewEncoder(w).Encode(map[string]string{"signature": "sig123"})
	})
	sig, err := client.Submit(context.Background(), "c2lnbmVk", "sender", "mint", "")
	require.NoError(t, err)
	assert.Equal(t, "sig123", sig)
}

func TestSubmitErrorSurfacesBody(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("relayer overloaded"))
	})
	_, err := client.Submit(context.Background(), "tx", "s", "m", "")
	var apiErr *shield.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Body, "relayer overloaded")
}

func TestConfig(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FeeConfig{
			DepositFeeRate:  0,
			WithdrawFeeRate: 0.0025,
			WithdrawRentFee: 0.001,
			RentFees:        map[string]float64{"USDC": 0.002},
		})
	})
	cfg, err := client.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0025, cfg.WithdrawFeeRate)
	assert.Equal(t, 0.002, cfg.RentFees["USDC"])
}
