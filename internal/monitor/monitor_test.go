package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-pool-sniper/internal/domain"
)

type sellCall struct {
	mint   string
	tokens uint64
}

// fakeTrader returns scripted market observations and records sells.
type fakeTrader struct {
	balance      uint64
	balanceErr   error
	price        float64
	priceErr     error
	liquidity    uint64
	liquidityErr error
	sellErr      error

	sells      []sellCall
	priceCalls int
}

func (f *fakeTrader) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeTrader) Price(ctx context.Context, mint string, sampleTokens uint64) (float64, error) {
	f.priceCalls++
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

func (f *fakeTrader) Sell(ctx context.Context, mint string, tokens uint64) (string, uint64, error) {
	if f.sellErr != nil {
		return "", 0, f.sellErr
	}
	f.sells = append(f.sells, sellCall{mint: mint, tokens: tokens})
	f.balance -= tokens
	return "sellsig111", uint64(float64(tokens) * f.price), nil
}

func (f *fakeTrader) PoolLiquidity(ctx context.Context, poolAddress string) (uint64, error) {
	if f.liquidityErr != nil {
		return 0, f.liquidityErr
	}
	return f.liquidity, nil
}

func openPosition() *domain.Position {
	return &domain.Position{
		ID:               "entrysig111",
		TokenMint:        "mint111",
		PoolAddress:      "pool111",
		EntryAmount:      1000,
		EntryTokens:      1000,
		EntryPrice:       1.0,
		EntryAt:          time.Now().UnixMilli(),
		InitialLiquidity: 10_000_000_000,
		Status:           domain.StatusOpen,
	}
}

func testMonitor(trader Trader, pos *domain.Position, updates *[]domain.PositionUpdate) *Monitor {
	notify := func(domain.PositionUpdate) {}
	if updates != nil {
		notify = func(u domain.PositionUpdate) { *updates = append(*updates, u) }
	}
	return New(Options{
		Trader:   trader,
		Position: pos,
		Notify:   notify,
	})
}

func TestMonitor_Tier1AtBoundaryMultiple(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 2.05, liquidity: 10_000_000_000}
	pos := openPosition()
	var updates []domain.PositionUpdate
	m := testMonitor(trader, pos, &updates)

	if done := m.tick(context.Background()); done {
		t.Fatal("tier1 fill must not close the position")
	}

	if len(trader.sells) != 1 || trader.sells[0].tokens != 500 {
		t.Fatalf("expected one sell of exactly 500, got %+v", trader.sells)
	}
	if !pos.Tier1Sold || pos.Status != domain.StatusPartial {
		t.Errorf("expected tier1Sold and partial status, got %v/%s", pos.Tier1Sold, pos.Status)
	}
	if pos.Tier1Signature != "sellsig111" {
		t.Errorf("expected tier1 signature recorded, got %q", pos.Tier1Signature)
	}
	if len(updates) != 1 || updates[0].Kind != domain.UpdateTierFill {
		t.Errorf("expected one tier-fill update, got %+v", updates)
	}
}

func TestMonitor_TierBoundaryInclusive(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 2.0, liquidity: 10_000_000_000}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	m.tick(context.Background())
	if !pos.Tier1Sold {
		t.Error("multiple exactly equal to tier1 threshold must trigger")
	}
}

func TestMonitor_TierOrdering(t *testing.T) {
	// Multiple jumps straight past tier2: tier1 must fill first, one tier
	// per tick.
	trader := &fakeTrader{balance: 1000, price: 3.5, liquidity: 10_000_000_000}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	m.tick(context.Background())
	if !pos.Tier1Sold || pos.Tier2Sold {
		t.Fatalf("expected only tier1 after first tick, got %v/%v", pos.Tier1Sold, pos.Tier2Sold)
	}

	m.tick(context.Background())
	if !pos.Tier2Sold {
		t.Fatal("expected tier2 on second tick")
	}
	// Tier2 sells 25% of the original entry token amount.
	if trader.sells[1].tokens != 250 {
		t.Errorf("expected tier2 sell of 250, got %d", trader.sells[1].tokens)
	}
	if pos.Status != domain.StatusPartial {
		t.Errorf("expected partial status, got %s", pos.Status)
	}
}

func TestMonitor_Tier2CappedAtBalance(t *testing.T) {
	trader := &fakeTrader{balance: 100, price: 3.0, liquidity: 10_000_000_000}
	pos := openPosition()
	pos.Tier1Sold = true
	pos.Status = domain.StatusPartial
	m := testMonitor(trader, pos, nil)

	m.tick(context.Background())
	if len(trader.sells) != 1 || trader.sells[0].tokens != 100 {
		t.Errorf("expected tier2 capped at balance 100, got %+v", trader.sells)
	}
}

func TestMonitor_Tier3Liquidates(t *testing.T) {
	trader := &fakeTrader{balance: 400, price: 5.0, liquidity: 10_000_000_000}
	pos := openPosition()
	pos.Tier1Sold = true
	pos.Tier2Sold = true
	pos.Status = domain.StatusPartial
	var updates []domain.PositionUpdate
	m := testMonitor(trader, pos, &updates)

	if done := m.tick(context.Background()); !done {
		t.Fatal("tier3 must close the position")
	}

	if trader.sells[0].tokens != 400 {
		t.Errorf("expected full liquidation of 400, got %d", trader.sells[0].tokens)
	}
	if !pos.Tier3Sold || pos.Status != domain.StatusClosed || pos.ExitReason != domain.ExitTier3 {
		t.Errorf("expected closed tier3 position, got %+v", pos)
	}
	if pos.RealizedPnL != int64(pos.RecoveredLamports)-int64(pos.EntryAmount) {
		t.Errorf("realized pnl mismatch: %d", pos.RealizedPnL)
	}
	if len(updates) != 1 || updates[0].Kind != domain.UpdateClosed {
		t.Errorf("expected one closed update, got %+v", updates)
	}
}

func TestMonitor_StopLossDrawdown(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 0.65, liquidity: 10_000_000_000}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	if done := m.tick(context.Background()); !done {
		t.Fatal("stop loss must close the position")
	}
	if pos.ExitReason != domain.ExitStopLoss {
		t.Errorf("expected stop_loss, got %s", pos.ExitReason)
	}
	if trader.sells[0].tokens != 1000 {
		t.Errorf("expected full liquidation, got %d", trader.sells[0].tokens)
	}
}

func TestMonitor_StopLossBoundaryStrict(t *testing.T) {
	// Exactly at the floor (1 - 30/100 = 0.7) is not a drawdown breach.
	trader := &fakeTrader{balance: 1000, price: 0.70, liquidity: 10_000_000_000}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	m.tick(context.Background())
	if pos.Status == domain.StatusClosed {
		t.Error("multiple exactly at the stop-loss floor must not trigger")
	}
}

func TestMonitor_TimeoutWindow(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 1.8, liquidity: 10_000_000_000}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)
	m.maxFirstTgt = 600 * time.Second

	// 599s elapsed: inside the window, nothing happens.
	m.now = func() time.Time { return time.UnixMilli(pos.EntryAt + 599_000) }
	m.tick(context.Background())
	if pos.Status == domain.StatusClosed {
		t.Fatal("599s must not time out a 600s window")
	}

	// 601s elapsed with tier1 unfilled: force close.
	m.now = func() time.Time { return time.UnixMilli(pos.EntryAt + 601_000) }
	if done := m.tick(context.Background()); !done {
		t.Fatal("601s must time out a 600s window")
	}
	if pos.ExitReason != domain.ExitTimeout {
		t.Errorf("expected timeout, got %s", pos.ExitReason)
	}
}

func TestMonitor_TimeoutSkippedAfterTier1(t *testing.T) {
	trader := &fakeTrader{balance: 500, price: 1.8, liquidity: 10_000_000_000}
	pos := openPosition()
	pos.Tier1Sold = true
	pos.Status = domain.StatusPartial
	m := testMonitor(trader, pos, nil)
	m.maxFirstTgt = 600 * time.Second
	m.now = func() time.Time { return time.UnixMilli(pos.EntryAt + 3_600_000) }

	m.tick(context.Background())
	if pos.Status == domain.StatusClosed {
		t.Error("timeout only applies while tier1 is unfilled")
	}
}

func TestMonitor_RugDetection(t *testing.T) {
	// Liquidity fell 10 SOL -> 4 SOL: a 60% drop against a 50% threshold,
	// triggered even while in profit.
	trader := &fakeTrader{balance: 1000, price: 1.5, liquidity: 4_000_000_000}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	if done := m.tick(context.Background()); !done {
		t.Fatal("rug must close the position")
	}
	if pos.ExitReason != domain.ExitRugDetected {
		t.Errorf("expected rug_detected, got %s", pos.ExitReason)
	}
}

func TestMonitor_LiquidityReadFailureSkipsRule(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 1.5, liquidityErr: errors.New("timeout")}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	m.tick(context.Background())
	if pos.Status == domain.StatusClosed {
		t.Error("a failed liquidity read must skip the rug rule, not match it")
	}
}

func TestMonitor_ZeroBalanceCloses(t *testing.T) {
	trader := &fakeTrader{balance: 0}
	pos := openPosition()
	var updates []domain.PositionUpdate
	m := testMonitor(trader, pos, &updates)

	if done := m.tick(context.Background()); !done {
		t.Fatal("zero balance must close the position")
	}
	if pos.ExitReason != "" {
		t.Errorf("external empty sets no exit reason, got %s", pos.ExitReason)
	}
	if len(trader.sells) != 0 {
		t.Errorf("nothing to sell on empty balance, got %+v", trader.sells)
	}
	if len(updates) != 1 || updates[0].Kind != domain.UpdateClosed {
		t.Errorf("expected closed update, got %+v", updates)
	}
}

func TestMonitor_FailedSellPreservesState(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 2.5, liquidity: 10_000_000_000, sellErr: errors.New("blockhash expired")}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	if done := m.tick(context.Background()); done {
		t.Fatal("failed sell must not close the position")
	}
	if pos.Tier1Sold || pos.Status != domain.StatusOpen || pos.RecoveredLamports != 0 {
		t.Errorf("failed sell must leave state untouched, got %+v", pos)
	}

	// Condition re-evaluates next tick once sells recover.
	trader.sellErr = nil
	m.tick(context.Background())
	if !pos.Tier1Sold {
		t.Error("expected tier1 on the retried tick")
	}
}

func TestMonitor_PriceFailureSkipsTick(t *testing.T) {
	trader := &fakeTrader{balance: 1000, priceErr: errors.New("no route")}
	pos := openPosition()
	m := testMonitor(trader, pos, nil)

	if done := m.tick(context.Background()); done {
		t.Fatal("price failure must not close the position")
	}
	if len(trader.sells) != 0 {
		t.Error("no rule may run without a price")
	}
}

func TestMonitor_ClosedPositionStopsTicking(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 2.0}
	pos := openPosition()
	pos.Status = domain.StatusClosed
	m := testMonitor(trader, pos, nil)

	if done := m.tick(context.Background()); !done {
		t.Fatal("a closed position must stop the monitor")
	}
	if trader.priceCalls != 0 {
		t.Error("no market reads for a closed position")
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	trader := &fakeTrader{balance: 1000, price: 1.2, liquidity: 10_000_000_000}
	pos := openPosition()
	m := New(Options{
		Trader:       trader,
		Position:     pos,
		TickInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancellation")
	}
}

func TestMonitor_TickRecorder(t *testing.T) {
	var samples []*domain.TickSample
	recorder := tickRecorderFunc(func(ctx context.Context, s *domain.TickSample) error {
		samples = append(samples, s)
		return nil
	})

	trader := &fakeTrader{balance: 1000, price: 1.5, liquidity: 9_000_000_000}
	pos := openPosition()
	m := New(Options{Trader: trader, Position: pos, Ticks: recorder})

	m.tick(context.Background())
	if len(samples) != 1 {
		t.Fatalf("expected one sample, got %d", len(samples))
	}
	if samples[0].Multiple != 1.5 || samples[0].Liquidity != 9_000_000_000 {
		t.Errorf("unexpected sample %+v", samples[0])
	}
}

type tickRecorderFunc func(ctx context.Context, sample *domain.TickSample) error

func (f tickRecorderFunc) Insert(ctx context.Context, sample *domain.TickSample) error {
	return f(ctx, sample)
}
