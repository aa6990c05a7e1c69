package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// Insert adds one tick sample.
func (s *TickStore) Insert(ctx context.Context, sample *domain.TickSample) error {
	return s.InsertBulk(ctx, []*domain.TickSample{sample})
}

// InsertBulk adds multiple samples in one batch.
func (s *TickStore) InsertBulk(ctx context.Context, samples []*domain.TickSample) error {
	if len(samples) == 0 {
		return nil
	}

	for _, sample := range samples {
		if sample == nil || sample.PositionID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO position_ticks (
			position_id, token_mint, price, multiple, balance, liquidity, at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		err = batch.Append(
			sample.PositionID, sample.TokenMint,
			sample.Price, sample.Multiple,
			sample.Balance, sample.Liquidity, uint64(sample.At),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	start := time.Now()
	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_ticks", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPosition retrieves all samples for a position, ordered by time ASC.
func (s *TickStore) GetByPosition(ctx context.Context, positionID string) ([]*domain.TickSample, error) {
	query := `
		SELECT position_id, token_mint, price, multiple, balance, liquidity, at_ms
		FROM position_ticks
		WHERE position_id = ?
		ORDER BY at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query ticks by position: %w", err)
	}
	defer rows.Close()

	var samples []*domain.TickSample
	for rows.Next() {
		var sample domain.TickSample
		var atMs uint64

		err := rows.Scan(
			&sample.PositionID, &sample.TokenMint,
			&sample.Price, &sample.Multiple,
			&sample.Balance, &sample.Liquidity, &atMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}

		sample.At = int64(atMs)
		samples = append(samples, &sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}
	return samples, nil
}
