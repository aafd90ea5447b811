package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockStationRepository struct {
	mock.Mock
}

func (m *MockStationRepository) List(ctx context.Context) ([]domain.Station, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Station), args.Error(1)
}

func (m *MockStationRepository) Get(ctx context.Context, id domain.StationID) (*domain.Station, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Station), args.Error(1)
}

func (m *MockStationRepository) ReplaceAll(ctx context.Context, stations []domain.Station) error {
	args := m.Called(ctx, stations)
	return args.Error(0)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *fakePublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestStationService(t *testing.T, repo ports.StationRepository, prober ports.Prober, pub ports.EventPublisher) *StationService {
	t.Helper()
	v := newTestValidator(t, fastOptions())
	svc := NewStationService(repo, v, prober, pub, zaptest.NewLogger(t).Sugar())
	t.Cleanup(svc.Close)
	return svc
}

func TestStationService_RunValidation(t *testing.T) {
	repo := new(MockStationRepository)
	stations := makeStations(3)
	repo.On("List", mock.Anything).Return(stations, nil)

	pub := &fakePublisher{}
	svc := newTestStationService(t, repo, okProber, pub)

	summary, err := svc.RunValidation(context.Background(), domain.ValidationOverrides{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.OK)

	snap, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, snap.RunID)
	assert.Equal(t, domain.RunStateCompleted, snap.State)
	assert.Equal(t, domain.Progress{Completed: 3, Total: 3}, snap.Progress)
	assert.Len(t, snap.Results, 3)
	assert.Same(t, summary, snap.Summary)

	assert.Equal(t, []domain.EventType{
		domain.EventRunStarted,
		domain.EventStationResult,
		domain.EventStationResult,
		domain.EventStationResult,
		domain.EventRunCompleted,
	}, pub.types())
	repo.AssertExpectations(t)
}

func TestStationService_LatestBeforeAnyRun(t *testing.T) {
	svc := newTestStationService(t, new(MockStationRepository), okProber, nil)

	snap, err := svc.Latest()
	assert.ErrorIs(t, err, domain.ErrNoRun)
	assert.Nil(t, snap)
}

func TestStationService_StartValidationRejectsConcurrentRun(t *testing.T) {
	repo := new(MockStationRepository)
	repo.On("List", mock.Anything).Return(makeStations(2), nil)

	release := make(chan struct{})
	prober := ports.ProbeFunc(func(ctx context.Context, s domain.Station) (domain.ProbeOutcome, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return domain.ProbeOutcome{StatusCode: 200}, nil
	})
	svc := newTestStationService(t, repo, prober, nil)

	runID, err := svc.StartValidation(context.Background(), domain.ValidationOverrides{TimeoutMs: 5000})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	_, err = svc.StartValidation(context.Background(), domain.ValidationOverrides{})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	snap, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, runID, snap.RunID)
	assert.Equal(t, domain.RunStateRunning, snap.State)

	close(release)
	assert.Eventually(t, func() bool {
		snap, err := svc.Latest()
		return err == nil && snap.State == domain.RunStateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := svc.StartValidation(context.Background(), domain.ValidationOverrides{})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStationService_ValidatesSelectedStations(t *testing.T) {
	repo := new(MockStationRepository)
	stations := makeStations(3)
	repo.On("Get", mock.Anything, domain.StationID("st-2")).Return(&stations[2], nil)

	var mu sync.Mutex
	var probed []domain.StationID
	prober := ports.ProbeFunc(func(ctx context.Context, s domain.Station) (domain.ProbeOutcome, error) {
		mu.Lock()
		probed = append(probed, s.ID)
		mu.Unlock()
		return domain.ProbeOutcome{StatusCode: 200}, nil
	})
	svc := newTestStationService(t, repo, prober, nil)

	summary, err := svc.RunValidation(context.Background(), domain.ValidationOverrides{
		StationIDs: []domain.StationID{"st-2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, []domain.StationID{"st-2"}, probed)
	repo.AssertNotCalled(t, "List", mock.Anything)
}

func TestStationService_UnknownSelectedStation(t *testing.T) {
	repo := new(MockStationRepository)
	repo.On("Get", mock.Anything, domain.StationID("missing")).Return(nil, domain.ErrStationNotFound)
	svc := newTestStationService(t, repo, okProber, nil)

	_, err := svc.StartValidation(context.Background(), domain.ValidationOverrides{
		StationIDs: []domain.StationID{"missing"},
	})
	assert.ErrorIs(t, err, domain.ErrStationNotFound)

	_, err = svc.Latest()
	assert.ErrorIs(t, err, domain.ErrNoRun)
}

func TestStationService_DuplicateSelectionFailsBeforeRun(t *testing.T) {
	repo := new(MockStationRepository)
	stations := makeStations(1)
	repo.On("Get", mock.Anything, domain.StationID("st-0")).Return(&stations[0], nil)
	pub := &fakePublisher{}
	guard := &fakeGuard{}
	svc := newTestStationService(t, repo, okProber, pub)
	svc.SetRunGuard(guard)

	runID, err := svc.StartValidation(context.Background(), domain.ValidationOverrides{
		StationIDs: []domain.StationID{"st-0", "st-0"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateStation)
	assert.Empty(t, runID)

	_, err = svc.RunValidation(context.Background(), domain.ValidationOverrides{
		StationIDs: []domain.StationID{"st-0", "st-0"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateStation)

	_, err = svc.Latest()
	assert.ErrorIs(t, err, domain.ErrNoRun)
	assert.Empty(t, pub.types())
	assert.Zero(t, guard.released)
	assert.Empty(t, guard.holder)

	// the slot is still free
	_, err = svc.RunValidation(context.Background(), domain.ValidationOverrides{
		StationIDs: []domain.StationID{"st-0"},
	})
	require.NoError(t, err)
}

func TestStationService_OverridesApply(t *testing.T) {
	base := fastOptions()

	opts, changed := applyOverrides(base, domain.ValidationOverrides{})
	assert.False(t, changed)
	assert.Equal(t, base, opts)

	opts, changed = applyOverrides(base, domain.ValidationOverrides{
		MaxConcurrent: 7,
		RetryAttempts: 4,
		TimeoutMs:     1500,
	})
	assert.True(t, changed)
	assert.Equal(t, 7, opts.MaxConcurrent)
	assert.Equal(t, 4, opts.RetryAttempts)
	assert.Equal(t, 1500*time.Millisecond, opts.Timeout)
	assert.Equal(t, base.BackoffStep, opts.BackoffStep)
}

func TestStationService_CloseCancelsRun(t *testing.T) {
	repo := new(MockStationRepository)
	repo.On("List", mock.Anything).Return(makeStations(4), nil)

	prober := ports.ProbeFunc(func(ctx context.Context, s domain.Station) (domain.ProbeOutcome, error) {
		<-ctx.Done()
		return domain.ProbeOutcome{}, ctx.Err()
	})
	v := newTestValidator(t, fastOptions())
	svc := NewStationService(repo, v, prober, nil, zaptest.NewLogger(t).Sugar())

	_, err := svc.StartValidation(context.Background(), domain.ValidationOverrides{TimeoutMs: 10000})
	require.NoError(t, err)

	svc.Close()

	snap, err := svc.Latest()
	require.NoError(t, err)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 4, snap.Summary.Failed)
	for _, r := range snap.Results {
		assert.Equal(t, domain.ErrorKindCancelled, r.Error)
	}
}

func TestStationService_ListAndGet(t *testing.T) {
	repo := new(MockStationRepository)
	stations := makeStations(2)
	repo.On("List", mock.Anything).Return(stations, nil)
	repo.On("Get", mock.Anything, domain.StationID("st-1")).Return(&stations[1], nil)
	svc := newTestStationService(t, repo, okProber, nil)

	list, err := svc.ListStations(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := svc.GetStation(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Equal(t, "Station 1", got.Name)
}

type fakeGuard struct {
	mu       sync.Mutex
	deny     bool
	holder   string
	released int
}

func (g *fakeGuard) TryAcquire(ctx context.Context, holder string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deny || g.holder != "" {
		return false, nil
	}
	g.holder = holder
	return true, nil
}

func (g *fakeGuard) Release(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holder = ""
	g.released++
	return nil
}

func TestStationService_RunGuardHeldElsewhere(t *testing.T) {
	repo := new(MockStationRepository)
	repo.On("List", mock.Anything).Return(makeStations(2), nil)
	svc := newTestStationService(t, repo, okProber, nil)
	svc.SetRunGuard(&fakeGuard{deny: true})

	_, err := svc.RunValidation(context.Background(), domain.ValidationOverrides{})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	_, err = svc.Latest()
	assert.ErrorIs(t, err, domain.ErrNoRun)
}

func TestStationService_RunGuardReleasedAfterRun(t *testing.T) {
	repo := new(MockStationRepository)
	repo.On("List", mock.Anything).Return(makeStations(2), nil)
	svc := newTestStationService(t, repo, okProber, nil)
	guard := &fakeGuard{}
	svc.SetRunGuard(guard)

	summary, err := svc.RunValidation(context.Background(), domain.ValidationOverrides{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OK)

	_, err = svc.RunValidation(context.Background(), domain.ValidationOverrides{})
	require.NoError(t, err)
	assert.Equal(t, 2, guard.released)
	assert.Empty(t, guard.holder)
}
