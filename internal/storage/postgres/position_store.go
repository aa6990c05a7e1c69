package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if the ID exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	if p.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (
			id, token_mint, pool_address,
			entry_amount, entry_tokens, entry_price, entry_signature, entry_at, initial_liquidity,
			status,
			tier1_sold, tier2_sold, tier3_sold,
			tier1_signature, tier2_signature, tier3_signature,
			recovered_lamports, realized_pnl,
			exit_reason, closed_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18,
			$19, $20
		)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.TokenMint, p.PoolAddress,
		int64(p.EntryAmount), int64(p.EntryTokens), p.EntryPrice, p.EntrySignature, p.EntryAt, int64(p.InitialLiquidity),
		p.Status.String(),
		p.Tier1Sold, p.Tier2Sold, p.Tier3Sold,
		p.Tier1Signature, p.Tier2Signature, p.Tier3Signature,
		int64(p.RecoveredLamports), p.RealizedPnL,
		p.ExitReason.String(), p.ClosedAt,
	)
	observability.RecordDBQuery("postgres", "insert_position", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update overwrites the mutable state of a position. Returns ErrNotFound
// if the ID does not exist.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	query := `
		UPDATE positions SET
			status = $2,
			tier1_sold = $3, tier2_sold = $4, tier3_sold = $5,
			tier1_signature = $6, tier2_signature = $7, tier3_signature = $8,
			recovered_lamports = $9, realized_pnl = $10,
			exit_reason = $11, closed_at = $12
		WHERE id = $1
	`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query,
		p.ID,
		p.Status.String(),
		p.Tier1Sold, p.Tier2Sold, p.Tier3Sold,
		p.Tier1Signature, p.Tier2Signature, p.Tier3Signature,
		int64(p.RecoveredLamports), p.RealizedPnL,
		p.ExitReason.String(), p.ClosedAt,
	)
	observability.RecordDBQuery("postgres", "update_position", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	row := s.pool.QueryRow(ctx, selectPositions+` WHERE id = $1`, id)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all positions not yet closed, ordered by entry time ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, selectPositions+` WHERE status != 'closed' ORDER BY entry_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetAll retrieves all positions, ordered by entry time ASC.
func (s *PositionStore) GetAll(ctx context.Context) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, selectPositions+` ORDER BY entry_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

const selectPositions = `
	SELECT
		id, token_mint, pool_address,
		entry_amount, entry_tokens, entry_price, entry_signature, entry_at, initial_liquidity,
		status,
		tier1_sold, tier2_sold, tier3_sold,
		tier1_signature, tier2_signature, tier3_signature,
		recovered_lamports, realized_pnl,
		exit_reason, closed_at
	FROM positions
`

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var entryAmount, entryTokens, initialLiquidity, recovered int64
	var status, exitReason string

	err := row.Scan(
		&p.ID, &p.TokenMint, &p.PoolAddress,
		&entryAmount, &entryTokens, &p.EntryPrice, &p.EntrySignature, &p.EntryAt, &initialLiquidity,
		&status,
		&p.Tier1Sold, &p.Tier2Sold, &p.Tier3Sold,
		&p.Tier1Signature, &p.Tier2Signature, &p.Tier3Signature,
		&recovered, &p.RealizedPnL,
		&exitReason, &p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	p.EntryAmount = uint64(entryAmount)
	p.EntryTokens = uint64(entryTokens)
	p.InitialLiquidity = uint64(initialLiquidity)
	p.RecoveredLamports = uint64(recovered)
	p.Status = domain.Status(status)
	p.ExitReason = domain.ExitReason(exitReason)
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
