package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/utxoledger/internal/ledger"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// ── Chain endpoints ─────────────────────────────────────────────────────

func (s *Server) handleChainGetInfo(_ *Request) (interface{}, *Error) {
	st := s.ledger.State()
	return &ChainInfoResult{
		Name:           s.ledger.Name(),
		Height:         st.Height,
		TipHash:        st.TipHash.String(),
		Difficulty:     s.ledger.Difficulty(),
		Reward:         s.ledger.Reward(),
		Supply:         st.Supply,
		UTXOCount:      s.ledger.UTXOs().Len(),
		UTXOCommitment: s.ledger.UTXOCommitment().String(),
	}, nil
}

func (s *Server) handleChainGetBlockByHash(req *Request) (interface{}, *Error) {
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	hash, rpcErr := parseHash(params.Hash)
	if rpcErr != nil {
		return nil, rpcErr
	}

	blk, err := s.ledger.BlockByHash(hash)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block not found: %v", err)}
	}
	return NewBlockResult(blk), nil
}

func (s *Server) handleChainGetBlockByHeight(req *Request) (interface{}, *Error) {
	var params HeightParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	blk, err := s.ledger.Block(params.Height)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block not found at height %d: %v", params.Height, err)}
	}
	return NewBlockResult(blk), nil
}

func (s *Server) handleChainGetTransaction(req *Request) (interface{}, *Error) {
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	id, rpcErr := parseHash(params.Hash)
	if rpcErr != nil {
		return nil, rpcErr
	}

	// Check mempool first.
	if t := s.pool.Get(id); t != nil {
		return &TxResult{Transaction: t, Pending: true}, nil
	}

	t, height, err := s.ledger.FindTransaction(id)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: "transaction not found"}
	}
	return &TxResult{Transaction: t, Height: height}, nil
}

func (s *Server) handleChainValidate(_ *Request) (interface{}, *Error) {
	err := s.ledger.ValidateChain()
	if err == nil {
		err = s.ledger.CheckUTXOs()
	}
	if err != nil {
		return &ValidateResult{Valid: false, Error: err.Error()}, nil
	}
	return &ValidateResult{Valid: true}, nil
}

// ── UTXO endpoints ──────────────────────────────────────────────────────

func (s *Server) handleUTXOGet(req *Request) (interface{}, *Error) {
	var params OutpointParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	id, rpcErr := parseHash(params.TxID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	u, ok := s.ledger.UTXOs().Get(types.Outpoint{TxID: id, Index: params.Index})
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: "utxo not found"}
	}
	return u, nil
}

func (s *Server) handleUTXOGetByAddress(req *Request) (interface{}, *Error) {
	addr, rpcErr := parseAddressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &UTXOListResult{
		Address: string(addr),
		UTXOs:   s.ledger.UTXOs().ByOwner(addr),
	}, nil
}

func (s *Server) handleUTXOGetBalance(req *Request) (interface{}, *Error) {
	addr, rpcErr := parseAddressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &BalanceResult{
		Address: string(addr),
		Balance: s.ledger.Balance(addr),
	}, nil
}

// ── Transaction and mempool endpoints ───────────────────────────────────

func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	var params TxSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction is required"}
	}

	if err := s.pool.Add(params.Transaction); err != nil {
		return nil, &Error{Code: CodeRejected, Message: err.Error()}
	}
	s.logger.Info().
		Str("tx", params.Transaction.ID.Short()).
		Int("pending", s.pool.Count()).
		Msg("Transaction submitted")
	return &TxSubmitResult{TxID: params.Transaction.ID.String()}, nil
}

func (s *Server) handleTxValidate(req *Request) (interface{}, *Error) {
	var params TxSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	t := params.Transaction
	if t == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction is required"}
	}

	err := t.VerifyID()
	if err == nil {
		err = t.Verify(s.ledger)
	}
	if err != nil {
		return &TxValidateResult{Valid: false, Error: err.Error()}, nil
	}
	return &TxValidateResult{Valid: true}, nil
}

func (s *Server) handleMempoolGetInfo(_ *Request) (interface{}, *Error) {
	return &MempoolInfoResult{Count: s.pool.Count()}, nil
}

func (s *Server) handleMempoolGetContent(_ *Request) (interface{}, *Error) {
	ids := s.pool.Hashes()
	hashes := make([]string, len(ids))
	for i, id := range ids {
		hashes[i] = id.String()
	}
	return &MempoolContentResult{Hashes: hashes}, nil
}

// ── Mining endpoints ────────────────────────────────────────────────────

func (s *Server) handleMiningMine(ctx context.Context, _ *Request) (interface{}, *Error) {
	if s.producer == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "mining not enabled"}
	}

	// Stop or a dropped client cancels the search.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	blk, err := s.producer.MinePending(ctx)
	if err != nil {
		code := CodeInternalError
		if errors.Is(err, ledger.ErrInvalidTransaction) || errors.Is(err, ledger.ErrMiningCancelled) {
			code = CodeRejected
		}
		return nil, &Error{Code: code, Message: err.Error()}
	}

	ids := make([]string, len(blk.Transactions))
	for i, t := range blk.Transactions {
		ids[i] = t.ID.String()
	}
	return &MineResult{
		Height: blk.Header.Index,
		Hash:   blk.Hash.String(),
		Nonce:  blk.Header.Nonce,
		TxIDs:  ids,
	}, nil
}

// ── Param helpers ───────────────────────────────────────────────────────

func parseHash(s string) (types.Hash, *Error) {
	if s == "" {
		return types.Hash{}, &Error{Code: CodeInvalidParams, Message: "hash is required"}
	}
	h, err := types.HexToHash(s)
	if err != nil {
		return types.Hash{}, &Error{Code: CodeInvalidParams, Message: "invalid hash: must be 32-byte hex"}
	}
	return h, nil
}

func parseAddressParam(req *Request) (types.Address, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return "", err
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		return "", &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address: %v", err)}
	}
	return addr, nil
}
