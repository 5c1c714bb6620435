// Package rpcclient provides a JSON-RPC 2.0 client for ledger nodes.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/utxoledger/internal/rpc"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// DefaultTimeout bounds a single call when no timeout is given.
const DefaultTimeout = 10 * time.Second

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, DefaultTimeout)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// response mirrors rpc.Response but keeps the result raw.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpc.Error      `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(method string, params, result interface{}) error {
	return c.CallContext(context.Background(), method, params, result)
}

// CallContext is Call bounded by ctx.
func (c *Client) CallContext(ctx context.Context, method string, params, result interface{}) error {
	req := rpc.Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("http request: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// ChainInfo calls chain_getInfo.
func (c *Client) ChainInfo(ctx context.Context) (*rpc.ChainInfoResult, error) {
	var res rpc.ChainInfoResult
	if err := c.CallContext(ctx, "chain_getInfo", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BlockByHeight calls chain_getBlockByHeight.
func (c *Client) BlockByHeight(ctx context.Context, height uint64) (*rpc.BlockResult, error) {
	var res rpc.BlockResult
	if err := c.CallContext(ctx, "chain_getBlockByHeight", rpc.HeightParam{Height: height}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BlockByHash calls chain_getBlockByHash.
func (c *Client) BlockByHash(ctx context.Context, hash string) (*rpc.BlockResult, error) {
	var res rpc.BlockResult
	if err := c.CallContext(ctx, "chain_getBlockByHash", rpc.HashParam{Hash: hash}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Transaction calls chain_getTransaction.
func (c *Client) Transaction(ctx context.Context, id string) (*rpc.TxResult, error) {
	var res rpc.TxResult
	if err := c.CallContext(ctx, "chain_getTransaction", rpc.HashParam{Hash: id}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Balance calls utxo_getBalance.
func (c *Client) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	var res rpc.BalanceResult
	if err := c.CallContext(ctx, "utxo_getBalance", rpc.AddressParam{Address: string(addr)}, &res); err != nil {
		return 0, err
	}
	return res.Balance, nil
}

// UTXOs calls utxo_getByAddress.
func (c *Client) UTXOs(ctx context.Context, addr types.Address) (*rpc.UTXOListResult, error) {
	var res rpc.UTXOListResult
	if err := c.CallContext(ctx, "utxo_getByAddress", rpc.AddressParam{Address: string(addr)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Submit calls tx_submit and returns the accepted transaction id.
func (c *Client) Submit(ctx context.Context, t *tx.Transaction) (string, error) {
	var res rpc.TxSubmitResult
	if err := c.CallContext(ctx, "tx_submit", rpc.TxSubmitParam{Transaction: t}, &res); err != nil {
		return "", err
	}
	return res.TxID, nil
}

// Mempool calls mempool_getContent.
func (c *Client) Mempool(ctx context.Context) ([]string, error) {
	var res rpc.MempoolContentResult
	if err := c.CallContext(ctx, "mempool_getContent", nil, &res); err != nil {
		return nil, err
	}
	return res.Hashes, nil
}

// Mine calls mining_mine.
func (c *Client) Mine(ctx context.Context) (*rpc.MineResult, error) {
	var res rpc.MineResult
	if err := c.CallContext(ctx, "mining_mine", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Validate calls chain_validate.
func (c *Client) Validate(ctx context.Context) (*rpc.ValidateResult, error) {
	var res rpc.ValidateResult
	if err := c.CallContext(ctx, "chain_validate", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
