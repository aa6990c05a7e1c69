package domain

// PoolCreated is an immutable record of a newly detected liquidity pool.
// Once emitted by the watcher it is never mutated downstream.
type PoolCreated struct {
	PoolAddress      string // pool state account (base58)
	BaseMint         string // mint of the new token
	QuoteMint        string // always WSOL for pools we act on
	LPMint           string // LP token mint, empty when not recoverable from the tx
	InitialLiquidity uint64 // quote-side liquidity at creation, in lamports
	Source           Source
	TxSignature      string // creation transaction signature
	Slot             int64
	DetectedAt       int64 // unix milliseconds, local detection time
}
