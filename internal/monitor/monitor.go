// Package monitor runs the tiered exit state machine: one timer-driven
// task per open position, racing price moves, timeouts and liquidity drops.
package monitor

import (
	"context"
	"log"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
)

// Exit policy defaults.
const (
	DefaultTickInterval         = 3 * time.Second
	DefaultTier1Multiplier      = 2.0
	DefaultTier2Multiplier      = 3.0
	DefaultTier3Multiplier      = 5.0
	DefaultStopLossPct          = 30.0
	DefaultMaxTimeToFirstTarget = 10 * time.Minute
	DefaultLiquidityDropPct     = 50.0

	// Reverse-quote sample: 1% of the current balance, at least one unit.
	priceSampleDivisor = 100
)

// Trader provides the balance, price, sell and liquidity primitives the
// monitor evaluates against each tick.
type Trader interface {
	TokenBalance(ctx context.Context, mint string) (uint64, error)
	Price(ctx context.Context, mint string, sampleTokens uint64) (float64, error)
	Sell(ctx context.Context, mint string, tokens uint64) (signature string, recoveredLamports uint64, err error)
	PoolLiquidity(ctx context.Context, poolAddress string) (uint64, error)
}

// TickRecorder receives per-tick samples. Failures are ignored.
type TickRecorder interface {
	Insert(ctx context.Context, sample *domain.TickSample) error
}

// Options configures a Monitor.
type Options struct {
	Trader   Trader
	Position *domain.Position
	Notify   func(domain.PositionUpdate)
	Ticks    TickRecorder

	TickInterval         time.Duration
	Tier1Multiplier      float64
	Tier2Multiplier      float64
	Tier3Multiplier      float64
	StopLossPct          float64
	MaxTimeToFirstTarget time.Duration
	LiquidityDropPct     float64

	Logger *log.Logger
}

// Monitor is the sole mutator of its position. Ticks evaluate the exit
// rules in fixed priority order; a confirmed sell is the only thing that
// ever advances the tier flags.
type Monitor struct {
	trader Trader
	pos    *domain.Position
	notify func(domain.PositionUpdate)
	ticks  TickRecorder

	tickInterval  time.Duration
	tier1         float64
	tier2         float64
	tier3         float64
	stopLossPct   float64
	maxFirstTgt   time.Duration
	liquidityDrop float64

	logger *log.Logger
	now    func() time.Time
}

// New creates a Monitor for one open position.
func New(opts Options) *Monitor {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Tier1Multiplier == 0 {
		opts.Tier1Multiplier = DefaultTier1Multiplier
	}
	if opts.Tier2Multiplier == 0 {
		opts.Tier2Multiplier = DefaultTier2Multiplier
	}
	if opts.Tier3Multiplier == 0 {
		opts.Tier3Multiplier = DefaultTier3Multiplier
	}
	if opts.StopLossPct == 0 {
		opts.StopLossPct = DefaultStopLossPct
	}
	if opts.MaxTimeToFirstTarget <= 0 {
		opts.MaxTimeToFirstTarget = DefaultMaxTimeToFirstTarget
	}
	if opts.LiquidityDropPct == 0 {
		opts.LiquidityDropPct = DefaultLiquidityDropPct
	}
	if opts.Notify == nil {
		opts.Notify = func(domain.PositionUpdate) {}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Monitor{
		trader:        opts.Trader,
		pos:           opts.Position,
		notify:        opts.Notify,
		ticks:         opts.Ticks,
		tickInterval:  opts.TickInterval,
		tier1:         opts.Tier1Multiplier,
		tier2:         opts.Tier2Multiplier,
		tier3:         opts.Tier3Multiplier,
		stopLossPct:   opts.StopLossPct,
		maxFirstTgt:   opts.MaxTimeToFirstTarget,
		liquidityDrop: opts.LiquidityDropPct,
		logger:        opts.Logger,
		now:           time.Now,
	}
}

// Run ticks until the position closes or ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.tick(ctx) {
				return
			}
		}
	}
}

// tick evaluates one cycle. Returns true when the position is closed.
func (m *Monitor) tick(ctx context.Context) bool {
	if m.pos.Status == domain.StatusClosed {
		return true
	}

	balance, err := m.trader.TokenBalance(ctx, m.pos.TokenMint)
	if err != nil {
		m.logger.Printf("position %s: balance read failed: %v", m.pos.ID, err)
		return false
	}
	if balance == 0 {
		// Externally emptied. Terminal, no exit reason.
		m.pos.Status = domain.StatusClosed
		m.pos.ClosedAt = m.now().UnixMilli()
		m.pos.RealizedPnL = int64(m.pos.RecoveredLamports) - int64(m.pos.EntryAmount)
		observability.RecordExit("emptied")
		m.logger.Printf("position %s: balance empty, closing", m.pos.ID)
		m.emit(domain.UpdateClosed)
		return true
	}

	sample := balance / priceSampleDivisor
	if sample == 0 {
		sample = 1
	}
	price, err := m.trader.Price(ctx, m.pos.TokenMint, sample)
	if err != nil {
		m.logger.Printf("position %s: price quote failed: %v", m.pos.ID, err)
		return false
	}

	multiple := m.pos.Multiple(price)
	elapsed := time.Duration(m.now().UnixMilli()-m.pos.EntryAt) * time.Millisecond

	liquidity := m.recordTick(ctx, balance, price, multiple)

	switch {
	case multiple < (100-m.stopLossPct)/100:
		return m.liquidate(ctx, balance, domain.ExitStopLoss)

	case !m.pos.Tier1Sold && elapsed > m.maxFirstTgt:
		return m.liquidate(ctx, balance, domain.ExitTimeout)

	case m.rugDetected(liquidity):
		return m.liquidate(ctx, balance, domain.ExitRugDetected)

	case !m.pos.Tier1Sold && multiple >= m.tier1:
		m.sellTier1(ctx, balance)

	case m.pos.Tier1Sold && !m.pos.Tier2Sold && multiple >= m.tier2:
		m.sellTier2(ctx, balance)

	case m.pos.Tier1Sold && m.pos.Tier2Sold && !m.pos.Tier3Sold && multiple >= m.tier3:
		return m.sellTier3(ctx, balance)
	}

	return m.pos.Status == domain.StatusClosed
}

// rugDetected compares current pool liquidity against the entry-time
// level. A failed read (liquidity < 0 sentinel) skips the rule.
func (m *Monitor) rugDetected(liquidity int64) bool {
	if liquidity < 0 || m.pos.InitialLiquidity == 0 {
		return false
	}
	floor := float64(m.pos.InitialLiquidity) * (100 - m.liquidityDrop) / 100
	return float64(liquidity) < floor
}

// recordTick samples the tick for analytics and returns the pool
// liquidity, -1 when the read failed.
func (m *Monitor) recordTick(ctx context.Context, balance uint64, price, multiple float64) int64 {
	liquidity := int64(-1)
	if liq, err := m.trader.PoolLiquidity(ctx, m.pos.PoolAddress); err == nil {
		liquidity = int64(liq)
	}

	if m.ticks != nil {
		sampleLiq := uint64(0)
		if liquidity >= 0 {
			sampleLiq = uint64(liquidity)
		}
		_ = m.ticks.Insert(ctx, &domain.TickSample{
			PositionID: m.pos.ID,
			TokenMint:  m.pos.TokenMint,
			Price:      price,
			Multiple:   multiple,
			Balance:    balance,
			Liquidity:  sampleLiq,
			At:         m.now().UnixMilli(),
		})
	}
	return liquidity
}

// liquidate sells the full balance and closes the position. A failed sell
// leaves everything untouched for the next tick.
func (m *Monitor) liquidate(ctx context.Context, balance uint64, reason domain.ExitReason) bool {
	signature, recovered, err := m.trader.Sell(ctx, m.pos.TokenMint, balance)
	if err != nil {
		observability.RecordSellFailure()
		m.logger.Printf("position %s: %s liquidation failed: %v", m.pos.ID, reason, err)
		return false
	}

	m.pos.RecoveredLamports += recovered
	if reason == domain.ExitTier3 {
		m.pos.Tier3Sold = true
		m.pos.Tier3Signature = signature
		observability.RecordTierFill("tier3")
	}
	m.close(reason)
	return true
}

func (m *Monitor) sellTier1(ctx context.Context, balance uint64) {
	amount := balance / 2
	if amount == 0 {
		amount = balance
	}

	signature, recovered, err := m.trader.Sell(ctx, m.pos.TokenMint, amount)
	if err != nil {
		observability.RecordSellFailure()
		m.logger.Printf("position %s: tier1 sell failed: %v", m.pos.ID, err)
		return
	}

	m.pos.Tier1Sold = true
	m.pos.Tier1Signature = signature
	m.pos.RecoveredLamports += recovered
	m.pos.Status = domain.StatusPartial
	observability.RecordTierFill("tier1")
	m.logger.Printf("position %s: tier1 filled, sold %d recovered %d", m.pos.ID, amount, recovered)
	m.emit(domain.UpdateTierFill)
}

func (m *Monitor) sellTier2(ctx context.Context, balance uint64) {
	// Quarter of the original entry size, capped at what is left.
	amount := m.pos.EntryTokens / 4
	if amount > balance {
		amount = balance
	}
	if amount == 0 {
		amount = balance
	}

	signature, recovered, err := m.trader.Sell(ctx, m.pos.TokenMint, amount)
	if err != nil {
		observability.RecordSellFailure()
		m.logger.Printf("position %s: tier2 sell failed: %v", m.pos.ID, err)
		return
	}

	m.pos.Tier2Sold = true
	m.pos.Tier2Signature = signature
	m.pos.RecoveredLamports += recovered
	observability.RecordTierFill("tier2")
	m.logger.Printf("position %s: tier2 filled, sold %d recovered %d", m.pos.ID, amount, recovered)
	m.emit(domain.UpdateTierFill)
}

func (m *Monitor) sellTier3(ctx context.Context, balance uint64) bool {
	return m.liquidate(ctx, balance, domain.ExitTier3)
}

func (m *Monitor) close(reason domain.ExitReason) {
	m.pos.Status = domain.StatusClosed
	m.pos.ExitReason = reason
	m.pos.ClosedAt = m.now().UnixMilli()
	m.pos.RealizedPnL = int64(m.pos.RecoveredLamports) - int64(m.pos.EntryAmount)
	observability.RecordExit(reason.String())
	m.logger.Printf("position %s: closed reason=%s recovered=%d pnl=%d",
		m.pos.ID, reason, m.pos.RecoveredLamports, m.pos.RealizedPnL)
	m.emit(domain.UpdateClosed)
}

func (m *Monitor) emit(kind domain.UpdateKind) {
	m.notify(domain.PositionUpdate{
		Kind:     kind,
		Position: *m.pos,
		At:       m.now().UnixMilli(),
	})
}
