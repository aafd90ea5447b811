package ports

import (
	"context"
	"time"

	"eclairia/internal/core/domain"
)

// Prober checks one station stream endpoint. Implementations must honor ctx;
// failures should be *domain.ProbeError when the kind is known.
type Prober interface {
	Probe(ctx context.Context, station domain.Station) (domain.ProbeOutcome, error)
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context, station domain.Station) (domain.ProbeOutcome, error)

func (f ProbeFunc) Probe(ctx context.Context, station domain.Station) (domain.ProbeOutcome, error) {
	return f(ctx, station)
}

// ResultSink receives each terminal station result as soon as it is known,
// then the run summary exactly once.
type ResultSink interface {
	OnResult(runID string, result domain.StationResult, progress domain.Progress)
	OnSummary(summary *domain.Summary)
}

// ValidationObserver receives low level validator signals (metrics).
type ValidationObserver interface {
	ProbeStarted()
	ProbeFinished(kind domain.ErrorKind, duration time.Duration)
	StationCompleted(result domain.ValidationResult)
	RunFinished(summary *domain.Summary)
}

// EventPublisher fans validation events out to live subscribers.
type EventPublisher interface {
	Publish(event domain.Event)
}

// RunGuard serializes validation runs across server instances.
type RunGuard interface {
	TryAcquire(ctx context.Context, holder string) (bool, error)
	Release(ctx context.Context) error
}

type StationService interface {
	ListStations(ctx context.Context) ([]domain.Station, error)
	GetStation(ctx context.Context, id domain.StationID) (*domain.Station, error)
	StartValidation(ctx context.Context, overrides domain.ValidationOverrides) (string, error)
	RunValidation(ctx context.Context, overrides domain.ValidationOverrides) (*domain.Summary, error)
	Latest() (*domain.RunSnapshot, error)
}
