// client.go - HTTP client for the relayer/indexer service.
//
// The relayer indexes the on-chain accumulator (root, proofs, encrypted
// outputs) and forwards signed shielded transactions so the depositor's
// wallet never appears as the fee payer. Every non-2xx response surfaces
// as an APIError carrying the body.

package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"shieldpool/internal/shield"
)

// Client talks to one relayer instance.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New constructs a client for the relayer at baseURL.
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "relayer").Logger(),
	}
}

// TreeState is the indexer's view of the accumulator head.
type TreeState struct {
	Root      string `json:"root"`
	NextIndex uint64 `json:"nextIndex"`
}

// MerkleProof is a sibling path for one commitment, leaf to root.
type MerkleProof struct {
	PathElements []string `json:"pathElements"`
	PathIndices  []int    `json:"pathIndices"`
}

// UtxoPage is one page of encrypted outputs from the range endpoint.
type UtxoPage struct {
	EncryptedOutputs []string `json:"encrypted_outputs"`
	HasMore          bool     `json:"hasMore"`
	Total            uint64   `json:"total"`
}

// FeeConfig is the relayer's published fee schedule.
type FeeConfig struct {
	DepositFeeRate      float64            `json:"deposit_fee_rate"`
	WithdrawFeeRate     float64            `json:"withdraw_fee_rate"`
	WithdrawRentFee     float64            `json:"withdraw_rent_fee"`
	USDCWithdrawRentFee float64            `json:"usdc_withdraw_rent_fee"`
	RentFees            map[string]float64 `json:"rent_fees"`
}

// Root returns the current root and next free leaf index. An empty token
// selects the native pool.
func (c *Client) Root(ctx context.Context, token string) (*TreeState, error) {
	var state TreeState
	if err := c.get(ctx, "/merkle/root", tokenQuery(token), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Proof returns the sibling path for a commitment, rendered decimal.
func (c *Client) Proof(ctx context.Context, commitment, token string) (*MerkleProof, error) {
	var proof MerkleProof
	path := "/merkle/proof/" + url.PathEscape(commitment)
	if err := c.get(ctx, path, tokenQuery(token), &proof); err != nil {
		return nil, err
	}
	if len(proof.PathElements) != len(proof.PathIndices) {
		return nil, errors.Wrap(shield.ErrSerialization, "merkle proof element/index length mismatch")
	}
	return &proof, nil
}

// Range fetches encrypted outputs for leaf positions [start, end).
// Older relayers return a bare array of objects; both shapes are handled.
func (c *Client) Range(ctx context.Context, start, end uint64, token string) (*UtxoPage, error) {
	query := tokenQuery(token)
	query.Set("start", fmt.Sprintf("%d", start))
	query.Set("end", fmt.Sprintf("%d", end))

	raw, err := c.getRaw(ctx, "/utxos/range", query)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// Legacy shape: [{"encrypted_output": "..."}, ...], no paging metadata.
		var legacy []struct {
			EncryptedOutput string `json:"encrypted_output"`
		}
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, errors.Wrap(shield.ErrSerialization, "unrecognized utxo range response")
		}
		outputs := make([]string, 0, len(legacy))
		for _, item := range legacy {
			outputs = append(outputs, item.EncryptedOutput)
		}
		return &UtxoPage{EncryptedOutputs: outputs, HasMore: false, Total: uint64(len(outputs))}, nil
	}

	var page UtxoPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, errors.Wrap(shield.ErrSerialization, "unrecognized utxo range response")
	}
	return &page, nil
}

// Indices resolves the authoritative tree index of each encrypted output.
// Client-side positions are provisional until the indexer confirms them.
func (c *Client) Indices(ctx context.Context, encryptedOutputs []string, token string) ([]uint64, error) {
	body := map[string]interface{}{"encrypted_outputs": encryptedOutputs}
	if token != "" {
		body["token"] = token
	}
	var result struct {
		Indices []uint64 `json:"indices"`
	}
	if err := c.post(ctx, "/utxos/indices", body, &result); err != nil {
		return nil, err
	}
	if len(result.Indices) != len(encryptedOutputs) {
		return nil, errors.Wrapf(shield.ErrSerialization,
			"indexer returned %d indices for %d outputs", len(result.Indices), len(encryptedOutputs))
	}
	return result.Indices, nil
}

// Exists reports whether an encrypted output (hex) has been indexed yet.
func (c *Client) Exists(ctx context.Context, encryptedHex, token string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	path := "/utxos/check/" + url.PathEscape(encryptedHex)
	if err := c.get(ctx, path, tokenQuery(token), &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

// Submit forwards a signed transaction for relaying. The referrer is
// optional and omitted when empty. Returns the ledger signature.
func (c *Client) Submit(ctx context.Context, signedTx, sender, mint, referrer string) (string, error) {
	body := map[string]interface{}{
		"signedTransaction": signedTx,
		"senderAddress":     sender,
		"mintAddress":       mint,
	}
	if referrer != "" {
		body["referralWalletAddress"] = referrer
	}
	var result struct {
		Signature string `json:"signature"`
	}
	if err := c.post(ctx, "/deposit/spl", body, &result); err != nil {
		return "", err
	}
	c.log.Info().Str("signature", result.Signature).Msg("transaction relayed")
	return result.Signature, nil
}

// Config fetches the relayer's fee schedule.
func (c *Client) Config(ctx context.Context) (*FeeConfig, error) {
	var cfg FeeConfig
	if err := c.get(ctx, "/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func tokenQuery(token string) url.Values {
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	raw, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(shield.ErrSerialization, "decode %s response: %v", path, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(shield.ErrSerialization, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(shield.ErrSerialization, "decode %s response: %v", path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "relayer %s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrapf(err, "relayer %s read body", req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &shield.APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
