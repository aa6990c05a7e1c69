package domain

// SubScores holds the four weighted safety components, each in [0, 25].
type SubScores struct {
	Liquidity     int
	Concentration int
	LPLock        int
	Metadata      int
}

// Total returns the composite score in [0, 100].
func (s SubScores) Total() int {
	return s.Liquidity + s.Concentration + s.LPLock + s.Metadata
}

// SafetyMetrics carries the raw observations the score was derived from,
// kept for logging and post-trade review.
type SafetyMetrics struct {
	LiquidityLamports uint64
	PoolAgeMs         int64
	TopHolderPct      float64 // top-10 holders share of supply, 0..100
	LPLargestPct      float64 // largest LP token holder share, 0..100
	HasMetadata       bool
	MetadataComplete  bool
}

// SafetyResult is the outcome of scoring one pool. Exactly one of the
// two shapes occurs: a hard rejection (Passed false, RejectReason set,
// Score zero) or a scored result (RejectReason empty).
type SafetyResult struct {
	Mint         string
	PoolAddress  string
	Passed       bool
	Score        int // 0..100
	SubScores    SubScores
	RejectReason string // set only on hard-check rejection
	Metrics      SafetyMetrics
	ScoredAt     int64 // unix milliseconds
}
