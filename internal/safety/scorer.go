// Package safety screens newly detected pools against on-chain heuristics
// before any capital is committed.
package safety

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/solana"
)

// Hard-reject reasons.
const (
	RejectMintNotFound      = "mint not found"
	RejectMintNotParseable  = "mint not parseable"
	RejectMintAuthority     = "mint authority not revoked"
	RejectFreezeAuthority   = "freeze authority not revoked"
	RejectLowLiquidity      = "liquidity below floor"
	RejectPoolTooNew        = "pool age below floor"
	RejectHolderConcentrate = "top holder concentration above ceiling"
)

// Scoring defaults.
const (
	DefaultLiquidityFloorLamports = 5 * solana.LamportsPerSOL
	DefaultPoolAgeFloorMs         = 0
	DefaultHolderCeilingPct       = 70.0
	DefaultPassThreshold          = 60

	topHolderCount = 10

	// Sub-score values where the full tier tables do not apply.
	lpLockMax        = 25
	lpLockMid        = 12
	lpLockUnresolved = 5
	metadataFloor    = 5
)

// Options configures the Scorer.
type Options struct {
	RPC                    solana.RPCClient
	LiquidityFloorLamports uint64
	PoolAgeFloorMs         int64
	HolderCeilingPct       float64
	PassThreshold          int
	Logger                 *log.Logger
}

// Scorer evaluates pools: six ordered hard checks, then four weighted
// sub-scores. Read-only against the chain.
type Scorer struct {
	rpc            solana.RPCClient
	liquidityFloor uint64
	ageFloorMs     int64
	holderCeiling  float64
	passThreshold  int
	logger         *log.Logger

	now func() time.Time
}

// New creates a Scorer.
func New(opts Options) *Scorer {
	if opts.LiquidityFloorLamports == 0 {
		opts.LiquidityFloorLamports = DefaultLiquidityFloorLamports
	}
	if opts.HolderCeilingPct == 0 {
		opts.HolderCeilingPct = DefaultHolderCeilingPct
	}
	if opts.PassThreshold == 0 {
		opts.PassThreshold = DefaultPassThreshold
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Scorer{
		rpc:            opts.RPC,
		liquidityFloor: opts.LiquidityFloorLamports,
		ageFloorMs:     opts.PoolAgeFloorMs,
		holderCeiling:  opts.HolderCeilingPct,
		passThreshold:  opts.PassThreshold,
		logger:         opts.Logger,
		now:            time.Now,
	}
}

// Evaluate screens a pool. The error return covers transport failures
// during the hard checks only; a clean rejection comes back as a result
// with Passed false and RejectReason set.
func (s *Scorer) Evaluate(ctx context.Context, pool *domain.PoolCreated) (*domain.SafetyResult, error) {
	result := &domain.SafetyResult{
		Mint:        pool.BaseMint,
		PoolAddress: pool.PoolAddress,
		ScoredAt:    s.now().UnixMilli(),
	}
	result.Metrics.LiquidityLamports = pool.InitialLiquidity
	result.Metrics.PoolAgeMs = s.now().UnixMilli() - pool.DetectedAt

	mint, reason, err := s.hardChecks(ctx, pool, &result.Metrics)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		result.RejectReason = reason
		observability.RecordSafetyOutcome("rejected", 0)
		s.logger.Printf("rejected %s: %s", pool.BaseMint, reason)
		return result, nil
	}

	result.SubScores = domain.SubScores{
		Liquidity:     liquidityScore(pool.InitialLiquidity),
		Concentration: concentrationScore(result.Metrics.TopHolderPct),
		LPLock:        s.lpLockScore(ctx, pool.LPMint, &result.Metrics),
		Metadata:      s.metadataScore(ctx, pool.BaseMint, &result.Metrics),
	}
	result.Score = result.SubScores.Total()
	result.Passed = result.Score > s.passThreshold

	outcome := "passed"
	if !result.Passed {
		outcome = "failed_score"
	}
	observability.RecordSafetyOutcome(outcome, result.Score)
	s.logger.Printf("scored %s: %d (liq=%d conc=%d lp=%d meta=%d) passed=%v supply=%d",
		pool.BaseMint, result.Score, result.SubScores.Liquidity, result.SubScores.Concentration,
		result.SubScores.LPLock, result.SubScores.Metadata, result.Passed, mint.Supply)

	return result, nil
}

// hardChecks runs the six ordered rejection checks. Returns the decoded
// mint on success, or the first reject reason. RPC failures abort.
func (s *Scorer) hardChecks(ctx context.Context, pool *domain.PoolCreated, metrics *domain.SafetyMetrics) (*solana.Mint, string, error) {
	info, err := s.rpc.GetAccountInfo(ctx, pool.BaseMint)
	if err != nil {
		return nil, "", fmt.Errorf("fetch mint %s: %w", pool.BaseMint, err)
	}
	if info == nil {
		return nil, RejectMintNotFound, nil
	}

	mint, err := decodeMint(info)
	if err != nil || !mint.Initialized {
		return nil, RejectMintNotParseable, nil
	}

	if mint.MintAuthority != "" {
		return nil, RejectMintAuthority, nil
	}
	if mint.FreezeAuthority != "" {
		return nil, RejectFreezeAuthority, nil
	}

	if pool.InitialLiquidity < s.liquidityFloor {
		return nil, RejectLowLiquidity, nil
	}

	if metrics.PoolAgeMs < s.ageFloorMs {
		return nil, RejectPoolTooNew, nil
	}

	topPct, err := s.topHolderShare(ctx, pool.BaseMint, mint.Supply)
	if err != nil {
		return nil, "", fmt.Errorf("holder concentration %s: %w", pool.BaseMint, err)
	}
	metrics.TopHolderPct = topPct
	if topPct > s.holderCeiling {
		return nil, RejectHolderConcentrate, nil
	}

	return mint, "", nil
}

// topHolderShare returns the top-10 holders' share of supply in percent.
func (s *Scorer) topHolderShare(ctx context.Context, mintAddr string, supply uint64) (float64, error) {
	if supply == 0 {
		return 0, nil
	}

	accounts, err := s.rpc.GetTokenLargestAccounts(ctx, mintAddr)
	if err != nil {
		return 0, err
	}

	var held uint64
	for i, acct := range accounts {
		if i >= topHolderCount {
			break
		}
		held += parseAmount(acct.Amount.Amount)
	}
	return float64(held) / float64(supply) * 100, nil
}

// liquidityScore maps the seeded quote-side liquidity to a 0-25 tier.
func liquidityScore(lamports uint64) int {
	sol := float64(lamports) / float64(solana.LamportsPerSOL)
	switch {
	case sol >= 50:
		return 25
	case sol >= 20:
		return 20
	case sol >= 10:
		return 15
	case sol >= 5:
		return 10
	default:
		return 5
	}
}

// concentrationScore maps the top-10 holder share to a 0-25 tier; lower
// concentration scores higher.
func concentrationScore(topPct float64) int {
	switch {
	case topPct <= 20:
		return 25
	case topPct <= 35:
		return 20
	case topPct <= 50:
		return 15
	case topPct <= 70:
		return 10
	default:
		return 5
	}
}

// lpLockScore checks whether the LP mint is locked: a revoked mint
// authority with positive supply means nobody can mint more LP tokens.
// Unresolvable state degrades to a low fixed value, never aborts.
func (s *Scorer) lpLockScore(ctx context.Context, lpMint string, metrics *domain.SafetyMetrics) int {
	info, err := s.rpc.GetAccountInfo(ctx, lpMint)
	if err != nil || info == nil {
		return lpLockUnresolved
	}

	mint, err := decodeMint(info)
	if err != nil {
		return lpLockUnresolved
	}

	if accounts, err := s.rpc.GetTokenLargestAccounts(ctx, lpMint); err == nil && len(accounts) > 0 && mint.Supply > 0 {
		metrics.LPLargestPct = float64(parseAmount(accounts[0].Amount.Amount)) / float64(mint.Supply) * 100
	}

	if mint.MintAuthority == "" && mint.Supply > 0 {
		return lpLockMax
	}
	return lpLockMid
}

// metadataScore reads the Metaplex metadata account. A confirmed-absent
// account scores zero; an unreachable or unparseable one gets a small
// floor to distinguish the two cases.
func (s *Scorer) metadataScore(ctx context.Context, mintAddr string, metrics *domain.SafetyMetrics) int {
	addr, err := solana.MetadataAddress(mintAddr)
	if err != nil {
		return metadataFloor
	}

	info, err := s.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return metadataFloor
	}
	if info == nil {
		return 0
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return metadataFloor
	}
	md, err := solana.ParseMetadata(data)
	if err != nil {
		return metadataFloor
	}

	metrics.HasMetadata = true
	score := 10
	if md.Name != "" {
		score += 5
	}
	if md.Symbol != "" {
		score += 5
	}
	if md.URI != "" {
		score += 5
	}
	metrics.MetadataComplete = md.Name != "" && md.Symbol != "" && md.URI != ""
	return score
}

func decodeMint(info *solana.AccountInfo) (*solana.Mint, error) {
	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, err
	}
	return solana.ParseMint(data)
}

// parseAmount converts a raw decimal amount string to uint64, zero on junk.
func parseAmount(s string) uint64 {
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint64(c-'0')
	}
	return v
}
