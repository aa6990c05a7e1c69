package storage

import (
	"context"

	"solana-pool-sniper/internal/domain"
)

// PositionStore provides access to position history storage.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, pos *domain.Position) error

	// Update overwrites the mutable state of an existing position.
	// Returns ErrNotFound if the ID does not exist.
	Update(ctx context.Context, pos *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// GetOpen retrieves all positions not yet closed, ordered by entry time ASC.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetAll retrieves all positions, ordered by entry time ASC.
	GetAll(ctx context.Context) ([]*domain.Position, error)
}

// TickStore provides access to monitor tick-sample storage.
type TickStore interface {
	// Insert adds one tick sample.
	Insert(ctx context.Context, sample *domain.TickSample) error

	// InsertBulk adds multiple samples in one batch.
	InsertBulk(ctx context.Context, samples []*domain.TickSample) error

	// GetByPosition retrieves all samples for a position, ordered by time ASC.
	GetByPosition(ctx context.Context, positionID string) ([]*domain.TickSample, error)
}
