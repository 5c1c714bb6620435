// Package rpc implements the JSON-RPC 2.0 API server.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Klingon-tech/utxoledger/internal/ledger"
	klog "github.com/Klingon-tech/utxoledger/internal/log"
	"github.com/Klingon-tech/utxoledger/internal/mempool"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/rs/zerolog"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// BlockProducer mines the pending pool into a block.
type BlockProducer interface {
	MinePending(ctx context.Context) (*block.Block, error)
}

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr        string
	ledger      *ledger.Ledger
	pool        *mempool.Pool
	producer    BlockProducer // nil disables mining_mine.
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.

	// Bounds mining_mine; cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new RPC server. allowedIPs holds IPs or CIDRs; empty
// allows every client.
func New(addr string, l *ledger.Ledger, pool *mempool.Pool, producer BlockProducer, allowedIPs []string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:        addr,
		ledger:      l,
		pool:        pool,
		producer:    producer,
		logger:      klog.WithComponent("rpc"),
		allowedNets: parseAllowedIPs(allowedIPs),
		ctx:         ctx,
		cancel:      cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Mining at high difficulty can take minutes.
		WriteTimeout: 10 * time.Minute,
	}

	return s
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("RPC server listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop aborts in-flight mining and gracefully shuts down the server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	// IP filtering.
	if len(s.allowedNets) > 0 {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ip := net.ParseIP(host)
		if ip == nil || !s.isIPAllowed(ip) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	result, rpcErr := s.dispatch(r.Context(), &req)
	if rpcErr != nil {
		s.logger.Debug().Str("method", req.Method).Int("code", rpcErr.Code).Msg(rpcErr.Message)
		writeJSON(w, Response{
			JSONRPC: "2.0",
			Error:   rpcErr,
			ID:      req.ID,
		})
		return
	}

	writeJSON(w, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	case "chain_getInfo":
		return s.handleChainGetInfo(req)
	case "chain_getBlockByHash":
		return s.handleChainGetBlockByHash(req)
	case "chain_getBlockByHeight":
		return s.handleChainGetBlockByHeight(req)
	case "chain_getTransaction":
		return s.handleChainGetTransaction(req)
	case "chain_validate":
		return s.handleChainValidate(req)
	case "utxo_get":
		return s.handleUTXOGet(req)
	case "utxo_getByAddress":
		return s.handleUTXOGetByAddress(req)
	case "utxo_getBalance":
		return s.handleUTXOGetBalance(req)
	case "tx_submit":
		return s.handleTxSubmit(req)
	case "tx_validate":
		return s.handleTxValidate(req)
	case "mempool_getInfo":
		return s.handleMempoolGetInfo(req)
	case "mempool_getContent":
		return s.handleMempoolGetContent(req)
	case "mining_mine":
		return s.handleMiningMine(ctx, req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// parseParams unmarshals the request params into the given target.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}

	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
