package services

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
	"eclairia/pkg/logger"
	"eclairia/pkg/utils"

	"go.uber.org/zap"
)

const guardReleaseTimeout = 5 * time.Second

// StationService serves the station catalog and runs validations against it.
// Only one validation runs at a time; its snapshot replaces the previous one.
type StationService struct {
	repo      ports.StationRepository
	validator *Validator
	prober    ports.Prober
	publisher ports.EventPublisher
	guard     ports.RunGuard
	logger    *zap.SugaredLogger

	mu       sync.RWMutex
	running  bool
	snapshot *domain.RunSnapshot

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ ports.StationService = (*StationService)(nil)

func NewStationService(
	repo ports.StationRepository,
	validator *Validator,
	prober ports.Prober,
	publisher ports.EventPublisher,
	logger *zap.SugaredLogger,
) *StationService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StationService{
		repo:      repo,
		validator: validator,
		prober:    prober,
		publisher: publisher,
		logger:    logger,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// SetRunGuard makes runs exclusive across every instance sharing guard.
// Call it before serving requests.
func (s *StationService) SetRunGuard(guard ports.RunGuard) {
	s.guard = guard
}

func (s *StationService) ListStations(ctx context.Context) ([]domain.Station, error) {
	return s.repo.List(ctx)
}

func (s *StationService) GetStation(ctx context.Context, id domain.StationID) (*domain.Station, error) {
	return s.repo.Get(ctx, id)
}

// StartValidation launches a run in the background and returns its id.
// The run outlives the request that started it; Close cancels it.
func (s *StationService) StartValidation(ctx context.Context, overrides domain.ValidationOverrides) (string, error) {
	validator, stations, err := s.prepare(ctx, overrides)
	if err != nil {
		return "", err
	}

	runID, prev, err := s.begin(ctx, len(stations))
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runCtx := logger.WithRunID(s.baseCtx, runID)
		if _, err := s.execute(runCtx, validator, stations, runID, prev); err != nil {
			s.logger.Errorw("background validation failed", "run_id", runID, "error", err)
		}
	}()

	return runID, nil
}

// RunValidation runs a validation and waits for its summary.
func (s *StationService) RunValidation(ctx context.Context, overrides domain.ValidationOverrides) (*domain.Summary, error) {
	validator, stations, err := s.prepare(ctx, overrides)
	if err != nil {
		return nil, err
	}

	runID, prev, err := s.begin(ctx, len(stations))
	if err != nil {
		return nil, err
	}

	return s.execute(logger.WithRunID(ctx, runID), validator, stations, runID, prev)
}

func (s *StationService) Latest() (*domain.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, domain.ErrNoRun
	}
	snap := *s.snapshot
	snap.Results = maps.Clone(s.snapshot.Results)
	return &snap, nil
}

// Close cancels a run in progress and waits for it to settle.
func (s *StationService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *StationService) prepare(ctx context.Context, overrides domain.ValidationOverrides) (*Validator, []domain.Station, error) {
	validator := s.validator
	opts, changed := applyOverrides(validator.Options(), overrides)
	if changed {
		var err error
		if validator, err = validator.WithOptions(opts); err != nil {
			return nil, nil, err
		}
	}

	if len(overrides.StationIDs) == 0 {
		stations, err := s.repo.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list stations: %w", err)
		}
		return validator, stations, nil
	}

	stations := make([]domain.Station, 0, len(overrides.StationIDs))
	for _, id := range overrides.StationIDs {
		station, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("station %s: %w", id, err)
		}
		stations = append(stations, *station)
	}
	// a bad selection fails here, before the run slot is claimed or
	// run_started goes out
	if err := checkStations(stations); err != nil {
		return nil, nil, err
	}
	return validator, stations, nil
}

func applyOverrides(opts ValidatorOptions, o domain.ValidationOverrides) (ValidatorOptions, bool) {
	changed := false
	if o.MaxConcurrent > 0 {
		opts.MaxConcurrent = o.MaxConcurrent
		changed = true
	}
	if o.RetryAttempts > 0 {
		opts.RetryAttempts = o.RetryAttempts
		changed = true
	}
	if o.TimeoutMs > 0 {
		opts.Timeout = time.Duration(o.TimeoutMs) * time.Millisecond
		changed = true
	}
	return opts, changed
}

// begin claims the single run slot and resets the snapshot.
func (s *StationService) begin(ctx context.Context, total int) (string, *domain.RunSnapshot, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", nil, domain.ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	runID := utils.NewRunID()
	if s.guard != nil {
		ok, err := s.guard.TryAcquire(ctx, runID)
		if err != nil || !ok {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			if err != nil {
				return "", nil, fmt.Errorf("failed to acquire run lock: %w", err)
			}
			return "", nil, domain.ErrRunInProgress
		}
	}

	s.mu.Lock()
	prev := s.snapshot
	s.snapshot = &domain.RunSnapshot{
		RunID:     runID,
		State:     domain.RunStateRunning,
		Progress:  domain.Progress{Total: total},
		Results:   make(map[domain.StationID]domain.ValidationResult, total),
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	s.publish(domain.Event{
		Type:     domain.EventRunStarted,
		RunID:    runID,
		Progress: domain.Progress{Total: total},
	})
	return runID, prev, nil
}

func (s *StationService) execute(ctx context.Context, validator *Validator, stations []domain.Station, runID string, prev *domain.RunSnapshot) (*domain.Summary, error) {
	summary, err := validator.ValidateAll(ctx, stations, s.prober, &runSink{service: s, runID: runID})

	if s.guard != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), guardReleaseTimeout)
		if relErr := s.guard.Release(releaseCtx); relErr != nil {
			s.logger.Warnw("failed to release run lock", "run_id", runID, "error", relErr)
		}
		cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		if s.snapshot != nil && s.snapshot.RunID == runID {
			s.snapshot = prev
		}
		return nil, err
	}
	return summary, nil
}

func (s *StationService) publish(event domain.Event) {
	if s.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.publisher.Publish(event)
}

// runSink binds validator callbacks to one run so late callbacks of an
// older run never touch a newer snapshot.
type runSink struct {
	service *StationService
	runID   string
}

func (r *runSink) OnResult(runID string, result domain.StationResult, progress domain.Progress) {
	s := r.service
	s.mu.Lock()
	if s.snapshot != nil && s.snapshot.RunID == r.runID {
		s.snapshot.Results[result.Station.ID] = result.Result
		s.snapshot.Progress = progress
	}
	s.mu.Unlock()

	s.publish(domain.Event{
		Type:     domain.EventStationResult,
		RunID:    r.runID,
		Progress: progress,
		Result:   &result,
	})
}

func (r *runSink) OnSummary(summary *domain.Summary) {
	s := r.service
	s.mu.Lock()
	if s.snapshot != nil && s.snapshot.RunID == r.runID {
		s.snapshot.State = domain.RunStateCompleted
		s.snapshot.Summary = summary
		s.snapshot.Progress = domain.Progress{Completed: summary.Total, Total: summary.Total}
	}
	s.mu.Unlock()

	s.logger.Infow("validation run completed",
		"run_id", r.runID,
		"ok", summary.OK,
		"total", summary.Total,
	)
	s.publish(domain.Event{
		Type:     domain.EventRunCompleted,
		RunID:    r.runID,
		Progress: domain.Progress{Completed: summary.Total, Total: summary.Total},
		Summary:  summary,
	})
}
