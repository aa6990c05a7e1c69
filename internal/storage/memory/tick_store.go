package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data []*domain.TickSample
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// Insert adds one tick sample.
func (s *TickStore) Insert(_ context.Context, sample *domain.TickSample) error {
	if sample == nil || sample.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sampleCopy := *sample
	s.data = append(s.data, &sampleCopy)
	return nil
}

// InsertBulk adds multiple samples.
func (s *TickStore) InsertBulk(ctx context.Context, samples []*domain.TickSample) error {
	for _, sample := range samples {
		if err := s.Insert(ctx, sample); err != nil {
			return err
		}
	}
	return nil
}

// GetByPosition retrieves all samples for a position, ordered by time ASC.
func (s *TickStore) GetByPosition(_ context.Context, positionID string) ([]*domain.TickSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TickSample
	for _, sample := range s.data {
		if sample.PositionID == positionID {
			sampleCopy := *sample
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].At < result[j].At
	})
	return result, nil
}
