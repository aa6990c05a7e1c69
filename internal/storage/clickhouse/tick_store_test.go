package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

func TestTickStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op.
	require.NoError(t, store.InsertBulk(ctx, nil))

	samples := []*domain.TickSample{
		{PositionID: "pos1", TokenMint: "mint111", Price: 1.5, Multiple: 1.5, Balance: 1000, Liquidity: 8_000_000_000, At: 2000},
		{PositionID: "pos1", TokenMint: "mint111", Price: 1.0, Multiple: 1.0, Balance: 1000, Liquidity: 8_000_000_000, At: 1000},
		{PositionID: "pos2", TokenMint: "mint222", Price: 0.5, Multiple: 0.5, Balance: 400, Liquidity: 2_000_000_000, At: 1500},
	}
	require.NoError(t, store.InsertBulk(ctx, samples))

	got, err := store.GetByPosition(ctx, "pos1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].At)
	assert.Equal(t, int64(2000), got[1].At)
	assert.Equal(t, 1.0, got[0].Price)
	assert.Equal(t, uint64(8_000_000_000), got[0].Liquidity)
}

func TestTickStore_Insert(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	ctx := context.Background()

	sample := &domain.TickSample{PositionID: "pos1", TokenMint: "mint111", Price: 2.0, Multiple: 2.0, Balance: 500, At: 3000}
	require.NoError(t, store.Insert(ctx, sample))

	got, err := store.GetByPosition(ctx, "pos1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Multiple)
}

func TestTickStore_InsertInvalid(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	err := store.Insert(context.Background(), &domain.TickSample{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
