package domain

// TickSample is one monitor observation, recorded for post-trade review.
type TickSample struct {
	PositionID string
	TokenMint  string
	Price      float64 // lamports per base unit
	Multiple   float64
	Balance    uint64
	Liquidity  uint64 // pool lamports, zero when the read was skipped
	At         int64  // unix milliseconds
}
