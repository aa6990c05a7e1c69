// Package watcher polls DEX program signatures and emits pool-creation
// events for newly listed WSOL-quoted pools.
package watcher

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/solana"
)

// Defaults for the poll loop.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultSignatureLimit = 25
	DefaultMaxProcessed   = 10_000
	DefaultEventBuffer    = 64
)

// Options configures the Watcher.
type Options struct {
	RPC            solana.RPCClient
	Programs       []string // program addresses to poll; defaults to Raydium AMM v4
	PollInterval   time.Duration
	SignatureLimit int
	MaxProcessed   int          // processed-signature cache cap (FIFO eviction)
	Backoff        retry.Policy // rate-limit backoff between polls
	Logger         *log.Logger
}

// Watcher is a sequential poll loop over program signatures. One loop,
// no concurrent transaction fetches: ordering of emitted events follows
// chain order per program.
type Watcher struct {
	rpc            solana.RPCClient
	programs       []string
	pollInterval   time.Duration
	signatureLimit int
	backoff        retry.Policy
	logger         *log.Logger

	parser *PoolParser
	events chan *domain.PoolCreated

	processed     map[string]struct{}
	processedFIFO []string
	maxProcessed  int

	rateLimitStreak int
}

// New creates a Watcher.
func New(opts Options) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SignatureLimit <= 0 {
		opts.SignatureLimit = DefaultSignatureLimit
	}
	if opts.MaxProcessed <= 0 {
		opts.MaxProcessed = DefaultMaxProcessed
	}
	if opts.Backoff.MaxAttempts == 0 {
		opts.Backoff = retry.DefaultPolicy()
	}
	if len(opts.Programs) == 0 {
		opts.Programs = []string{solana.RaydiumAMMV4Program}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Watcher{
		rpc:            opts.RPC,
		programs:       opts.Programs,
		pollInterval:   opts.PollInterval,
		signatureLimit: opts.SignatureLimit,
		backoff:        opts.Backoff,
		logger:         opts.Logger,
		parser:         NewPoolParser(),
		events:         make(chan *domain.PoolCreated, DefaultEventBuffer),
		processed:      make(map[string]struct{}),
		maxProcessed:   opts.MaxProcessed,
	}
}

// Events returns the pool-creation event stream. Closed when Run returns.
func (w *Watcher) Events() <-chan *domain.PoolCreated {
	return w.events
}

// Run polls until ctx is cancelled. Individual transaction failures are
// logged and skipped; rate limiting backs the whole loop off.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	w.logger.Printf("starting poll loop: %d program(s), interval %s", len(w.programs), w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := w.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, solana.ErrRateLimited) {
				w.rateLimitStreak++
				observability.RecordWatcherBackoff()
				delay := w.backoff.Delay(w.rateLimitStreak)
				w.logger.Printf("rate limited, backing off %s (streak %d)", delay, w.rateLimitStreak)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			w.logger.Printf("poll error: %v", err)
		} else {
			w.rateLimitStreak = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce scans each program's recent signatures oldest-first.
func (w *Watcher) pollOnce(ctx context.Context) error {
	for _, program := range w.programs {
		sigs, err := w.rpc.GetSignaturesForAddress(ctx, program, &solana.SignaturesOpts{
			Limit: w.signatureLimit,
		})
		if err != nil {
			return err
		}

		// RPC returns newest first; process in chain order.
		for i := len(sigs) - 1; i >= 0; i-- {
			sig := sigs[i]
			if sig.Err != nil {
				continue
			}
			if w.seen(sig.Signature) {
				continue
			}

			if err := w.processSignature(ctx, sig.Signature); err != nil {
				if errors.Is(err, solana.ErrRateLimited) || ctx.Err() != nil {
					return err
				}
				// Transaction-level failure: log, mark, move on.
				w.logger.Printf("process %s: %v", sig.Signature, err)
			}
			w.markProcessed(sig.Signature)
		}
	}
	return nil
}

func (w *Watcher) processSignature(ctx context.Context, signature string) error {
	tx, err := w.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}

	event := w.parser.Parse(tx, time.Now().UnixMilli())
	if event == nil {
		return nil
	}

	observability.RecordPoolDetected(event.Source.String())
	w.logger.Printf("pool detected: %s mint=%s source=%s liquidity=%d lamports",
		event.PoolAddress, event.BaseMint, event.Source, event.InitialLiquidity)

	select {
	case w.events <- event:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *Watcher) seen(signature string) bool {
	_, ok := w.processed[signature]
	return ok
}

// markProcessed records a signature, evicting the oldest entry once the
// cache is full.
func (w *Watcher) markProcessed(signature string) {
	if _, ok := w.processed[signature]; ok {
		return
	}
	if len(w.processedFIFO) >= w.maxProcessed {
		oldest := w.processedFIFO[0]
		w.processedFIFO = w.processedFIFO[1:]
		delete(w.processed, oldest)
	}
	w.processed[signature] = struct{}{}
	w.processedFIFO = append(w.processedFIFO, signature)
}
