// Package sniper executes trade entries for screened pools and serves the
// balance/price/sell primitives the exit monitors run on.
package sniper

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/jupiter"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/wallet"
)

// Execution defaults.
const (
	DefaultEntryAmountLamports = 100_000_000 // 0.1 SOL
	DefaultSlippageBps         = 300
	DefaultConfirmTimeout      = 45 * time.Second
)

// Registrar takes ownership of a freshly entered position.
type Registrar interface {
	Open(ctx context.Context, pos *domain.Position) error
}

// Options configures the Executor.
type Options struct {
	RPC                 solana.RPCClient
	Quoter              jupiter.Quoter
	Wallet              *wallet.Wallet
	Registrar           Registrar
	EntryAmountLamports uint64
	SlippageBps         int
	PriorityFeeLamports uint64
	ConfirmTimeout      time.Duration
	Logger              *log.Logger
}

// Executor runs the entry path for one pool at a time per mint. The caller
// must not invoke Enter concurrently for the same mint.
type Executor struct {
	rpc            solana.RPCClient
	quoter         jupiter.Quoter
	wallet         *wallet.Wallet
	registrar      Registrar
	entryAmount    uint64
	slippageBps    int
	priorityFee    uint64
	confirmTimeout time.Duration
	logger         *log.Logger
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.EntryAmountLamports == 0 {
		opts.EntryAmountLamports = DefaultEntryAmountLamports
	}
	if opts.SlippageBps == 0 {
		opts.SlippageBps = DefaultSlippageBps
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Executor{
		rpc:            opts.RPC,
		quoter:         opts.Quoter,
		wallet:         opts.Wallet,
		registrar:      opts.Registrar,
		entryAmount:    opts.EntryAmountLamports,
		slippageBps:    opts.SlippageBps,
		priorityFee:    opts.PriorityFeeLamports,
		confirmTimeout: opts.ConfirmTimeout,
		logger:         opts.Logger,
	}
}

// Enter buys into a pool: quote, build, simulate, sign, submit, confirm,
// then read back what actually arrived. Failures are terminal for the
// attempt; nothing past confirmation is retried.
func (e *Executor) Enter(ctx context.Context, pool *domain.PoolCreated) (*domain.Position, error) {
	observability.RecordEntryAttempt()
	start := time.Now()

	quote, err := e.quoter.Quote(ctx, solana.WSOLMint, pool.BaseMint, e.entryAmount, e.slippageBps)
	if err != nil {
		return nil, e.fail(EntryNoRoute, pool.BaseMint, err)
	}

	txBase64, err := e.quoter.BuildSwapTransaction(ctx, quote, e.wallet.Address(), e.priorityFee)
	if err != nil {
		return nil, e.fail(EntryBuildFailed, pool.BaseMint, err)
	}

	sim, err := e.rpc.SimulateTransaction(ctx, txBase64)
	if err != nil {
		return nil, e.fail(EntrySimulationFailed, pool.BaseMint, err)
	}
	if sim.Failed() {
		return nil, e.fail(EntrySimulationFailed, pool.BaseMint, fmt.Errorf("simulation error: %v", sim.Err))
	}

	signed, err := e.wallet.SignTransaction(txBase64)
	if err != nil {
		return nil, e.fail(EntryBuildFailed, pool.BaseMint, err)
	}

	signature, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return nil, e.fail(EntrySubmitFailed, pool.BaseMint, err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	err = e.rpc.ConfirmTransaction(confirmCtx, signature)
	cancel()
	if err != nil {
		return nil, e.fail(EntryConfirmFailed, pool.BaseMint, err)
	}

	tokens := e.receivedTokens(ctx, pool.BaseMint, quote.OutAmount)
	if tokens == 0 {
		return nil, e.fail(EntryNoTokensReceived, pool.BaseMint, nil)
	}

	now := time.Now()
	pos := &domain.Position{
		ID:               signature,
		TokenMint:        pool.BaseMint,
		PoolAddress:      pool.PoolAddress,
		EntryAmount:      e.entryAmount,
		EntryTokens:      tokens,
		EntryPrice:       float64(e.entryAmount) / float64(tokens),
		EntrySignature:   signature,
		EntryAt:          now.UnixMilli(),
		InitialLiquidity: pool.InitialLiquidity,
		Status:           domain.StatusOpen,
	}

	if e.registrar != nil {
		if err := e.registrar.Open(ctx, pos); err != nil {
			return nil, fmt.Errorf("register position %s: %w", pos.ID, err)
		}
	}

	observability.RecordEntryFilled(time.Since(start).Seconds())
	e.logger.Printf("entered %s: %d lamports -> %d tokens (price %.9f) sig=%s",
		pool.BaseMint, e.entryAmount, tokens, pos.EntryPrice, signature)

	return pos, nil
}

// receivedTokens reads the wallet's actual post-fill balance, falling back
// to the quoted out-amount when the read itself fails.
func (e *Executor) receivedTokens(ctx context.Context, mint string, quoted uint64) uint64 {
	balance, err := e.rpc.GetTokenBalanceByOwner(ctx, e.wallet.Address(), mint)
	if err != nil {
		e.logger.Printf("balance read after entry %s failed, using quoted amount: %v", mint, err)
		return quoted
	}
	return balance
}

func (e *Executor) fail(kind EntryErrorKind, mint string, err error) error {
	observability.RecordEntryFailure(kind.String())
	failure := entryErr(kind, mint, err)
	e.logger.Printf("%v", failure)
	return failure
}
