// Package config holds the immutable runtime configuration of the sniper.
package config

import (
	"fmt"
	"time"

	"solana-pool-sniper/internal/solana"
)

// Config is assembled once at startup and never mutated afterwards.
type Config struct {
	// Endpoints
	RPCEndpoint    string
	JupiterBaseURL string
	PostgresDSN    string
	ClickHouseDSN  string
	UseMemory      bool
	HTTPAddr       string

	// Watch targets
	Programs []string

	// Entry
	EntryAmountLamports uint64
	SlippageBps         int
	PriorityFeeLamports uint64
	ConfirmTimeout      time.Duration

	// Exit policy
	Tier1Multiplier      float64
	Tier2Multiplier      float64
	Tier3Multiplier      float64
	StopLossPct          float64
	MaxTimeToFirstTarget time.Duration
	LiquidityDropPct     float64

	// Loop cadence
	PollInterval time.Duration
	TickInterval time.Duration

	// Safety thresholds
	LiquidityFloorLamports uint64
	PoolAgeFloorMs         int64
	HolderCeilingPct       float64
	PassThreshold          int
}

// Default returns the baseline configuration. Endpoint fields start
// empty and must be filled in before Validate passes.
func Default() Config {
	return Config{
		JupiterBaseURL: "https://quote-api.jup.ag/v6",
		HTTPAddr:       ":8080",
		Programs:       []string{solana.RaydiumAMMV4Program, solana.PumpFunProgram},

		EntryAmountLamports: 100_000_000, // 0.1 SOL
		SlippageBps:         300,
		ConfirmTimeout:      45 * time.Second,

		Tier1Multiplier:      2.0,
		Tier2Multiplier:      3.0,
		Tier3Multiplier:      5.0,
		StopLossPct:          30.0,
		MaxTimeToFirstTarget: 10 * time.Minute,
		LiquidityDropPct:     50.0,

		PollInterval: 2 * time.Second,
		TickInterval: 3 * time.Second,

		LiquidityFloorLamports: 5 * solana.LamportsPerSOL,
		PoolAgeFloorMs:         0,
		HolderCeilingPct:       70.0,
		PassThreshold:          60,
	}
}

// Validate reports the first configuration error found.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickHouseDSN == "") {
		return fmt.Errorf("postgres and clickhouse DSNs are required unless in-memory storage is enabled")
	}
	if len(c.Programs) == 0 {
		return fmt.Errorf("at least one program address is required")
	}
	if c.EntryAmountLamports == 0 {
		return fmt.Errorf("entry amount must be positive")
	}
	if c.SlippageBps <= 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("slippage bps must be in (0, 10000], got %d", c.SlippageBps)
	}
	if !(c.Tier1Multiplier > 1 && c.Tier2Multiplier > c.Tier1Multiplier && c.Tier3Multiplier > c.Tier2Multiplier) {
		return fmt.Errorf("tier multipliers must satisfy 1 < tier1 < tier2 < tier3")
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 100 {
		return fmt.Errorf("stop-loss pct must be in (0, 100), got %v", c.StopLossPct)
	}
	if c.LiquidityDropPct <= 0 || c.LiquidityDropPct > 100 {
		return fmt.Errorf("liquidity-drop pct must be in (0, 100], got %v", c.LiquidityDropPct)
	}
	if c.MaxTimeToFirstTarget <= 0 {
		return fmt.Errorf("max time to first target must be positive")
	}
	if c.PollInterval <= 0 || c.TickInterval <= 0 {
		return fmt.Errorf("poll and tick intervals must be positive")
	}
	if c.HolderCeilingPct <= 0 || c.HolderCeilingPct > 100 {
		return fmt.Errorf("holder ceiling pct must be in (0, 100], got %v", c.HolderCeilingPct)
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return fmt.Errorf("pass threshold must be in [0, 100], got %d", c.PassThreshold)
	}
	return nil
}
