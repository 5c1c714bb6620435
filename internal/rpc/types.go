package rpc

import (
	"github.com/Klingon-tech/utxoledger/internal/utxo"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeRejected       = -32001 // Transaction or block refused by the ledger.
	CodeUnavailable    = -32002 // Feature not wired on this node.
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// HashParam is used by endpoints that take a single hash.
type HashParam struct {
	Hash string `json:"hash"`
}

// HeightParam is used by endpoints that take a block height.
type HeightParam struct {
	Height uint64 `json:"height"`
}

// OutpointParam is used by utxo_get.
type OutpointParam struct {
	TxID  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

// AddressParam is used by utxo_getByAddress and utxo_getBalance.
type AddressParam struct {
	Address string `json:"address"`
}

// TxSubmitParam is used by tx_submit and tx_validate.
type TxSubmitParam struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// ── Result types ────────────────────────────────────────────────────────

// BlockResult is a block as returned by the chain_getBlock* endpoints.
type BlockResult struct {
	Hash         string            `json:"hash"`
	Header       *block.Header     `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlockResult creates a BlockResult from a block.
func NewBlockResult(b *block.Block) *BlockResult {
	return &BlockResult{
		Hash:         b.Hash.String(),
		Header:       b.Header,
		Transactions: b.Transactions,
	}
}

// TxResult is returned by chain_getTransaction.
type TxResult struct {
	Transaction *tx.Transaction `json:"transaction"`
	Height      uint64          `json:"height"`
	Pending     bool            `json:"pending"`
}

// ChainInfoResult is returned by chain_getInfo.
type ChainInfoResult struct {
	Name           string `json:"name"`
	Height         uint64 `json:"height"`
	TipHash        string `json:"tip_hash"`
	Difficulty     int    `json:"difficulty"`
	Reward         uint64 `json:"reward"`
	Supply         uint64 `json:"supply"`
	UTXOCount      int    `json:"utxo_count"`
	UTXOCommitment string `json:"utxo_commitment"`
}

// ValidateResult is returned by chain_validate.
type ValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// BalanceResult is returned by utxo_getBalance.
type BalanceResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// UTXOListResult is returned by utxo_getByAddress.
type UTXOListResult struct {
	Address string      `json:"address"`
	UTXOs   []utxo.UTXO `json:"utxos"`
}

// TxSubmitResult is returned by tx_submit.
type TxSubmitResult struct {
	TxID string `json:"tx_id"`
}

// TxValidateResult is returned by tx_validate.
type TxValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// MempoolInfoResult is returned by mempool_getInfo.
type MempoolInfoResult struct {
	Count int `json:"count"`
}

// MempoolContentResult is returned by mempool_getContent.
type MempoolContentResult struct {
	Hashes []string `json:"hashes"`
}

// MineResult is returned by mining_mine.
type MineResult struct {
	Height uint64   `json:"height"`
	Hash   string   `json:"hash"`
	Nonce  uint64   `json:"nonce"`
	TxIDs  []string `json:"tx_ids"`
}
