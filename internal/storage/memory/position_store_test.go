package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

func testPosition(id string, entryAt int64) *domain.Position {
	return &domain.Position{
		ID:          id,
		TokenMint:   "mint111",
		PoolAddress: "pool111",
		EntryAmount: 1000,
		EntryTokens: 2000,
		EntryPrice:  0.5,
		EntryAt:     entryAt,
		Status:      domain.StatusOpen,
	}
}

func TestPositionStore_InsertAndGet(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	pos := testPosition("pos1", 1000)
	require.NoError(t, store.Insert(ctx, pos))

	got, err := store.GetByID(ctx, "pos1")
	require.NoError(t, err)
	assert.Equal(t, "pos1", got.ID)
	assert.Equal(t, domain.StatusOpen, got.Status)

	// The store holds its own copy.
	pos.Status = domain.StatusClosed
	got, err = store.GetByID(ctx, "pos1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
}

func TestPositionStore_InsertDuplicate(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPosition("pos1", 1000)))
	err := store.Insert(ctx, testPosition("pos1", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPositionStore_InsertInvalid(t *testing.T) {
	store := NewPositionStore()
	err := store.Insert(context.Background(), &domain.Position{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPositionStore_Update(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	pos := testPosition("pos1", 1000)
	require.NoError(t, store.Insert(ctx, pos))

	pos.Status = domain.StatusPartial
	pos.Tier1Sold = true
	pos.Tier1Signature = "tier1sig"
	pos.RecoveredLamports = 750
	require.NoError(t, store.Update(ctx, pos))

	got, err := store.GetByID(ctx, "pos1")
	require.NoError(t, err)
	assert.True(t, got.Tier1Sold)
	assert.Equal(t, domain.StatusPartial, got.Status)
	assert.Equal(t, uint64(750), got.RecoveredLamports)
}

func TestPositionStore_UpdateMissing(t *testing.T) {
	store := NewPositionStore()
	err := store.Update(context.Background(), testPosition("ghost", 1000))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_GetByIDMissing(t *testing.T) {
	store := NewPositionStore()
	_, err := store.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_GetOpenAndGetAll(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	open := testPosition("pos1", 2000)
	closed := testPosition("pos2", 1000)
	closed.Status = domain.StatusClosed
	closed.ExitReason = domain.ExitTier3

	require.NoError(t, store.Insert(ctx, open))
	require.NoError(t, store.Insert(ctx, closed))

	onlyOpen, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, onlyOpen, 1)
	assert.Equal(t, "pos1", onlyOpen[0].ID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Ordered by entry time ascending.
	assert.Equal(t, "pos2", all[0].ID)
	assert.Equal(t, "pos1", all[1].ID)
}
