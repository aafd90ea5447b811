package memory

import (
	"context"
	"fmt"
	"sync"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
)

// MemoryStationRepository keeps the catalog in process memory, in catalog order.
type MemoryStationRepository struct {
	stations map[domain.StationID]domain.Station
	order    []domain.StationID
	mu       sync.RWMutex
}

func NewMemoryStationRepository() ports.StationRepository {
	return &MemoryStationRepository{
		stations: make(map[domain.StationID]domain.Station),
	}
}

func (r *MemoryStationRepository) List(ctx context.Context) ([]domain.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stations := make([]domain.Station, 0, len(r.order))
	for _, id := range r.order {
		stations = append(stations, r.stations[id])
	}
	return stations, nil
}

func (r *MemoryStationRepository) Get(ctx context.Context, id domain.StationID) (*domain.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	station, exists := r.stations[id]
	if !exists {
		return nil, domain.ErrStationNotFound
	}
	return &station, nil
}

func (r *MemoryStationRepository) ReplaceAll(ctx context.Context, stations []domain.Station) error {
	next := make(map[domain.StationID]domain.Station, len(stations))
	order := make([]domain.StationID, 0, len(stations))
	for _, s := range stations {
		if _, exists := next[s.ID]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateStation, s.ID)
		}
		next[s.ID] = s
		order = append(order, s.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations = next
	r.order = order
	return nil
}
