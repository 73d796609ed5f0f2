// rpc.go - Minimal JSON-RPC surface of the underlying ledger node.
//
// Only what the client core needs: balance reads and batched account
// existence checks for nullifier-derived addresses. Transport-level
// retry/backoff is deliberately out of scope.

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// RPC is the ledger surface the client core depends on.
type RPC interface {
	// Balance returns the native balance of an account in base units.
	Balance(ctx context.Context, addr Address) (uint64, error)
	// TokenAccountBalance returns a token account balance in base units.
	TokenAccountBalance(ctx context.Context, addr Address) (uint64, error)
	// AccountsExist reports, per address, whether the account exists.
	AccountsExist(ctx context.Context, addrs []Address) ([]bool, error)
}

// RPCClient is a lightweight JSON-RPC client over HTTP.
type RPCClient struct {
	baseURL string
	http    *http.Client
	nextID  atomic.Int64
}

// NewRPCClient constructs a client for the given node URL.
func NewRPCClient(baseURL string) *RPCClient {
	return &RPCClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

var _ RPC = (*RPCClient)(nil)

func (c *RPCClient) Balance(ctx context.Context, addr Address) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{addr.String()}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (c *RPCClient) TokenAccountBalance(ctx context.Context, addr Address) (uint64, error) {
	var result struct {
		Value struct {
			Amount string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountBalance", []interface{}{addr.String()}, &result); err != nil {
		return 0, err
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "token balance amount")
	}
	return amount, nil
}

func (c *RPCClient) AccountsExist(ctx context.Context, addrs []Address) ([]bool, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	encoded := make([]string, len(addrs))
	for i, a := range addrs {
		encoded[i] = a.String()
	}
	var result struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := c.call(ctx, "getMultipleAccounts", []interface{}{encoded}, &result); err != nil {
		return nil, err
	}
	if len(result.Value) != len(addrs) {
		return nil, errors.Errorf("getMultipleAccounts returned %d entries for %d addresses",
			len(result.Value), len(addrs))
	}
	exists := make([]bool, len(addrs))
	for i, raw := range result.Value {
		exists[i] = len(raw) > 0 && string(raw) != "null"
	}
	return exists, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "ledger rpc %s", method)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("ledger rpc %s failed: status=%d", method, resp.StatusCode)
	}
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errors.Wrapf(err, "ledger rpc %s decode", method)
	}
	if rpcResp.Error != nil {
		return errors.Errorf("ledger rpc %s error: %s", method, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 {
		return errors.Errorf("ledger rpc %s returned empty result", method)
	}
	return json.Unmarshal(rpcResp.Result, out)
}
