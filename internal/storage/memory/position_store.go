// Package memory provides in-memory store implementations for tests and
// for running without external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if the ID exists.
func (s *PositionStore) Insert(_ context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[pos.ID]; exists {
		return storage.ErrDuplicateKey
	}
	posCopy := *pos
	s.data[pos.ID] = &posCopy
	return nil
}

// Update overwrites an existing position. Returns ErrNotFound if missing.
func (s *PositionStore) Update(_ context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[pos.ID]; !exists {
		return storage.ErrNotFound
	}
	posCopy := *pos
	s.data[pos.ID] = &posCopy
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	posCopy := *pos
	return &posCopy, nil
}

// GetOpen retrieves all positions not yet closed, ordered by entry time ASC.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, pos := range s.data {
		if pos.Status != domain.StatusClosed {
			posCopy := *pos
			result = append(result, &posCopy)
		}
	}
	sortByEntry(result)
	return result, nil
}

// GetAll retrieves all positions, ordered by entry time ASC.
func (s *PositionStore) GetAll(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, pos := range s.data {
		posCopy := *pos
		result = append(result, &posCopy)
	}
	sortByEntry(result)
	return result, nil
}

func sortByEntry(positions []*domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].EntryAt != positions[j].EntryAt {
			return positions[i].EntryAt < positions[j].EntryAt
		}
		return positions[i].ID < positions[j].ID
	})
}
