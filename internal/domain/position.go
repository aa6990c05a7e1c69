package domain

// Status represents the lifecycle state of a position.
// Transitions are forward-only: open -> partial -> closed.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPartial Status = "partial"
	StatusClosed  Status = "closed"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusPartial || s == StatusClosed
}

// ExitReason records why a position was fully closed.
type ExitReason string

const (
	ExitTier3       ExitReason = "tier3"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTimeout     ExitReason = "timeout"
	ExitRugDetected ExitReason = "rug_detected"
)

// String returns the string representation of ExitReason.
func (r ExitReason) String() string {
	return string(r)
}

// IsValid checks if the exit reason is a valid value.
func (r ExitReason) IsValid() bool {
	switch r {
	case ExitTier3, ExitStopLoss, ExitTimeout, ExitRugDetected:
		return true
	}
	return false
}

// Position is the record of one entered trade and its partial exits.
// The registry owns the canonical copy; everything else works on copies.
type Position struct {
	ID          string // position identifier, the entry signature
	TokenMint   string
	PoolAddress string

	EntryAmount      uint64  // lamports spent on entry
	EntryTokens      uint64  // token base units actually received
	EntryPrice       float64 // lamports per base unit at entry
	EntrySignature   string
	EntryAt          int64  // unix milliseconds
	InitialLiquidity uint64 // pool liquidity in lamports at entry

	Status Status

	Tier1Sold bool
	Tier2Sold bool
	Tier3Sold bool

	Tier1Signature string
	Tier2Signature string
	Tier3Signature string

	RecoveredLamports uint64 // cumulative lamports received from sells
	RealizedPnL       int64  // RecoveredLamports - EntryAmount, meaningful once closed

	ExitReason ExitReason // set exactly once, when Status becomes closed
	ClosedAt   int64      // unix milliseconds, zero while open
}

// Multiple returns current price over entry price, or zero when the
// entry price is not meaningful.
func (p *Position) Multiple(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return currentPrice / p.EntryPrice
}

// UpdateKind classifies a position update event.
type UpdateKind string

const (
	UpdateOpened   UpdateKind = "opened"
	UpdateTierFill UpdateKind = "tier_fill"
	UpdateClosed   UpdateKind = "closed"
)

// PositionUpdate is a point-in-time snapshot emitted after each confirmed
// state change. Position is a copy, safe to hold.
type PositionUpdate struct {
	Kind     UpdateKind
	Position Position
	At       int64 // unix milliseconds
}
