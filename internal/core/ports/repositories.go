package ports

import (
	"context"

	"eclairia/internal/core/domain"
)

// StationRepository stores the station catalog. List keeps catalog order.
type StationRepository interface {
	List(ctx context.Context) ([]domain.Station, error)
	Get(ctx context.Context, id domain.StationID) (*domain.Station, error)
	ReplaceAll(ctx context.Context, stations []domain.Station) error
}
