/*

The runner drives the indexer. It walks the chain head-ward in fixed
block ranges, fetches the logs of the watched contracts, and hands them
to the dispatcher strictly in chain order. An event that fails with a
retryable error blocks the stream and is retried in place, so state
never reflects a partially applied or out-of-order history.

*/

package source

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/energyfi-network/stakeledger/internal/logger"
	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// Client is the chain surface the runner needs. *ethclient.Client
// satisfies it.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
}

const retryDelay = 5 * time.Second

var (
	errNilClient     = errors.New("runner requires a chain client")
	errNilDispatcher = errors.New("runner requires a dispatcher")
)

// Runner polls for new logs and feeds them to the dispatcher in order.
type Runner struct {
	client     Client
	dispatcher *Dispatcher

	next  uint64 // next block to scan
	batch uint64 // blocks per FilterLogs range
	poll  time.Duration

	log zerolog.Logger
}

// RunnerConfig carries the dependencies and tuning of a Runner.
type RunnerConfig struct {
	Client     Client
	Dispatcher *Dispatcher
	StartBlock uint64
	BatchSize  uint64
	Poll       time.Duration
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Client == nil {
		return nil, errNilClient
	}
	if cfg.Dispatcher == nil {
		return nil, errNilDispatcher
	}
	batch := cfg.BatchSize
	if batch == 0 {
		batch = 1
	}
	poll := cfg.Poll
	if poll <= 0 {
		poll = retryDelay
	}
	return &Runner{
		client:     cfg.Client,
		dispatcher: cfg.Dispatcher,
		next:       cfg.StartBlock,
		batch:      batch,
		poll:       poll,
		log:        logger.GetForComponent("runner"),
	}, nil
}

// Run loops until the context is cancelled. It only returns the context's
// error; every chain or handler failure is retried in place.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Uint64("start_block", r.next).Uint64("batch", r.batch).Msg("starting log stream")

	for {
		head, err := r.client.BlockNumber(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("failed to fetch chain head")
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return err
			}
			continue
		}

		if r.next > head {
			if err := sleepCtx(ctx, r.poll); err != nil {
				return err
			}
			continue
		}

		to := r.next + r.batch - 1
		if to > head {
			to = head
		}
		if err := r.scanRange(ctx, r.next, to); err != nil {
			return err
		}
		r.next = to + 1
	}
}

// scanRange fetches and applies every log in [from, to]. It returns only
// on context cancellation.
func (r *Runner) scanRange(ctx context.Context, from, to uint64) error {
	var logs []ethtypes.Log
	for {
		var err error
		logs, err = r.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: r.dispatcher.Addresses(),
		})
		if err == nil {
			break
		}
		r.log.Error().Err(err).Uint64("from", from).Uint64("to", to).Msg("failed to fetch logs")
		if err := sleepCtx(ctx, retryDelay); err != nil {
			return err
		}
	}

	// Node responses are already ordered, but the ordering is the one
	// invariant everything downstream leans on.
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	times := make(map[uint64]int64, 4)
	for _, lg := range logs {
		if lg.Removed {
			r.log.Warn().Uint64("block", lg.BlockNumber).Msg("reorged log, skipping")
			continue
		}

		blockTime, err := r.blockTime(ctx, times, lg.BlockNumber)
		if err != nil {
			return err
		}

		for {
			err := r.dispatcher.Dispatch(ctx, lg, blockTime)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error().Err(err).
				Uint64("block", lg.BlockNumber).
				Str("tx", lg.TxHash.Hex()).
				Msg("failed to apply event, retrying")
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// blockTime resolves a block's timestamp, memoized per scan range.
func (r *Runner) blockTime(ctx context.Context, cache map[uint64]int64, number uint64) (int64, error) {
	if ts, ok := cache[number]; ok {
		return ts, nil
	}
	for {
		header, err := r.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err == nil {
			ts := int64(header.Time)
			cache[number] = ts
			return ts, nil
		}
		r.log.Error().Err(err).Uint64("block", number).Msg("failed to fetch block header")
		if err := sleepCtx(ctx, retryDelay); err != nil {
			return 0, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
