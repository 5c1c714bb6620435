package consensus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// PoW errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrBadDifficulty    = errors.New("difficulty out of range")
	ErrNonceExhausted   = errors.New("nonce space exhausted")
	ErrNilBlock         = errors.New("nil block or header")
)

// cancelCheckInterval is how many nonces are tried between context checks.
const cancelCheckInterval = 4096

// errFound stops sibling workers once one of them has a nonce.
var errFound = errors.New("nonce found")

// PoW implements proof-of-work consensus. A block is sealed when the hex
// form of its hash starts with Difficulty '0' characters.
type PoW struct {
	Difficulty int

	// Threads controls the number of parallel mining goroutines.
	// 0 or 1 = single-threaded (default). Each goroutine searches a
	// strided partition of the nonce space.
	Threads int
}

// NewPoW creates a new PoW engine. Difficulty must be in [0, 64].
func NewPoW(difficulty int) (*PoW, error) {
	if difficulty < 0 || difficulty > config.MaxDifficulty {
		return nil, fmt.Errorf("%w: %d", ErrBadDifficulty, difficulty)
	}
	return &PoW{Difficulty: difficulty}, nil
}

// VerifyHeader checks that the header hash meets the engine difficulty.
func (p *PoW) VerifyHeader(header *block.Header) error {
	if header == nil {
		return ErrNilBlock
	}
	if !block.MeetsDifficulty(header.ComputeHash(), p.Difficulty) {
		return ErrInsufficientWork
	}
	return nil
}

// Seal mines the block by iterating the nonce until the header hash meets
// the target. On success the header nonce and the block hash are set.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines the block with cancellation support.
// When the context is cancelled, mining stops and ctx.Err() is returned;
// the block is left untouched.
// If Threads > 1, mining runs in parallel goroutines with strided nonce partitioning.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return ErrNilBlock
	}

	var (
		nonce uint64
		hash  types.Hash
		err   error
	)
	if p.Threads <= 1 {
		nonce, hash, err = search(ctx, blk.Header, p.Difficulty, 0, 1)
	} else {
		nonce, hash, err = p.sealParallel(ctx, blk.Header)
	}
	if err != nil {
		return err
	}
	blk.Header.Nonce = nonce
	blk.Hash = hash
	return nil
}

// sealParallel runs Threads workers; worker i tries nonces i, i+Threads, ...
func (p *PoW) sealParallel(ctx context.Context, h *block.Header) (uint64, types.Hash, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu    sync.Mutex
		found bool
		nonce uint64
		hash  types.Hash
	)
	for i := 0; i < p.Threads; i++ {
		start := uint64(i)
		stride := uint64(p.Threads)
		g.Go(func() error {
			n, hs, err := search(gctx, h, p.Difficulty, start, stride)
			switch {
			case errors.Is(err, ErrNonceExhausted):
				return nil
			case err != nil:
				return err
			}
			mu.Lock()
			if !found {
				found, nonce, hash = true, n, hs
			}
			mu.Unlock()
			return errFound
		})
	}

	err := g.Wait()
	if found {
		return nonce, hash, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, types.Hash{}, ctxErr
	}
	if err != nil && !errors.Is(err, errFound) {
		return 0, types.Hash{}, err
	}
	return 0, types.Hash{}, ErrNonceExhausted
}

// search tries start, start+stride, ... without wrapping past MaxUint64.
func search(ctx context.Context, h *block.Header, difficulty int, start, stride uint64) (uint64, types.Hash, error) {
	prefix, suffix := h.SealParts()
	buf := make([]byte, 0, len(prefix)+20+len(suffix))
	buf = append(buf, prefix...)

	for nonce, tries := start, uint64(0); ; nonce, tries = nonce+stride, tries+1 {
		if tries%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, types.Hash{}, err
			}
		}

		buf = strconv.AppendUint(buf[:len(prefix)], nonce, 10)
		buf = append(buf, suffix...)
		hash := crypto.Hash(buf)
		if block.MeetsDifficulty(hash, difficulty) {
			return nonce, hash, nil
		}

		if nonce > math.MaxUint64-stride {
			return 0, types.Hash{}, ErrNonceExhausted
		}
	}
}
