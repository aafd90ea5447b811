package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
	"eclairia/pkg/logger"
	"eclairia/pkg/retry"
	"eclairia/pkg/tracing"
	"eclairia/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ValidatorOptions controls how a validation run schedules its probes.
type ValidatorOptions struct {
	MaxConcurrent int           // probes in flight at once
	RetryAttempts int           // total attempts per station, first try included
	Timeout       time.Duration // per attempt
	DispatchDelay time.Duration // spacing between dispatches of one dispatch loop
	// BackoffStep is multiplied by the number of failed attempts so far to get
	// the wait before the next one (500ms, 1s, 1.5s...). The growth is linear.
	BackoffStep time.Duration
}

func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		MaxConcurrent: 3,
		RetryAttempts: 2,
		Timeout:       10 * time.Second,
		DispatchDelay: 50 * time.Millisecond,
		BackoffStep:   500 * time.Millisecond,
	}
}

func (o ValidatorOptions) Validate() error {
	switch {
	case o.MaxConcurrent < 1:
		return fmt.Errorf("%w: max concurrent must be >= 1, got %d", domain.ErrInvalidOptions, o.MaxConcurrent)
	case o.RetryAttempts < 1:
		return fmt.Errorf("%w: retry attempts must be >= 1, got %d", domain.ErrInvalidOptions, o.RetryAttempts)
	case o.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be > 0, got %s", domain.ErrInvalidOptions, o.Timeout)
	case o.DispatchDelay < 0:
		return fmt.Errorf("%w: dispatch delay must be >= 0, got %s", domain.ErrInvalidOptions, o.DispatchDelay)
	case o.BackoffStep < 0:
		return fmt.Errorf("%w: backoff step must be >= 0, got %s", domain.ErrInvalidOptions, o.BackoffStep)
	}
	return nil
}

// Validator probes a set of stations with bounded concurrency and retries.
// Dispatch loops hand terminal results over a channel to the goroutine that
// called ValidateAll, which alone owns the result map and talks to the sink.
type Validator struct {
	opts     ValidatorOptions
	observer ports.ValidationObserver
	logger   *zap.SugaredLogger
}

func NewValidator(opts ValidatorOptions, observer ports.ValidationObserver, logger *zap.SugaredLogger) (*Validator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Validator{opts: opts, observer: observer, logger: logger}, nil
}

func (v *Validator) Options() ValidatorOptions {
	return v.opts
}

// WithOptions returns a validator sharing this one's observer and logger.
func (v *Validator) WithOptions(opts ValidatorOptions) (*Validator, error) {
	return NewValidator(opts, v.observer, v.logger)
}

type stationOutcome struct {
	index  int
	result domain.StationResult
}

// ValidateAll probes every station and returns the run summary once all of
// them are terminal. The run id is taken from ctx (logger.WithRunID) when set.
// Cancelling ctx stops dispatching; stations that were not finished get a
// Cancelled result so that every station still reports exactly once.
func (v *Validator) ValidateAll(ctx context.Context, stations []domain.Station, prober ports.Prober, sink ports.ResultSink) (*domain.Summary, error) {
	if prober == nil {
		return nil, domain.ErrNilProber
	}
	if err := checkStations(stations); err != nil {
		return nil, err
	}

	runID := logger.RunIDFromContext(ctx)
	if runID == "" {
		runID = utils.NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}
	startedAt := time.Now()
	total := len(stations)

	ctx, span := tracing.TraceValidationRun(ctx, runID, total)
	defer span.End()

	log := v.logger.With("run_id", runID)
	log.Infow("starting station validation",
		"stations", total,
		"max_concurrent", v.opts.MaxConcurrent,
		"retry_attempts", v.opts.RetryAttempts,
		"timeout", v.opts.Timeout,
	)

	queue := make(chan int, total)
	for i := range stations {
		queue <- i
	}
	close(queue)

	outcomes := make(chan stationOutcome, total)

	var g errgroup.Group
	for w := 0; w < min(v.opts.MaxConcurrent, total); w++ {
		g.Go(func() error {
			v.dispatchLoop(ctx, stations, queue, outcomes, prober)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	results := make(map[domain.StationID]domain.ValidationResult, total)
	ordered := make([]domain.StationResult, total)
	completed := 0
	progressEvery := max(1, total/10)

	for out := range outcomes {
		id := out.result.Station.ID
		if _, seen := results[id]; seen {
			log.Errorw("duplicate terminal result dropped", "station_id", id)
			continue
		}
		results[id] = out.result.Result
		ordered[out.index] = out.result
		completed++

		progress := domain.Progress{Completed: completed, Total: total}
		v.observer.StationCompleted(out.result.Result)
		logResult(log, out.result)
		if sink != nil {
			v.notify(log, "result", func() { sink.OnResult(runID, out.result, progress) })
		}
		if completed%progressEvery == 0 {
			log.Infow("validation progress",
				"percent", progress.Percent(),
				"completed", completed,
				"total", total,
			)
		}
	}

	summary := domain.NewSummary(runID, ordered, startedAt, time.Now())
	v.observer.RunFinished(summary)
	log.Infow("validation finished",
		"ok", summary.OK,
		"total", summary.Total,
		"success_percent", summary.SuccessPercent(),
		"elapsed", summary.FinishedAt.Sub(startedAt),
	)
	if sink != nil {
		v.notify(log, "summary", func() { sink.OnSummary(summary) })
	}

	return summary, nil
}

// dispatchLoop pulls stations off the shared FIFO queue and drives each one
// to a terminal result. A loop owns at most one station at a time, which is
// what bounds the number of probes in flight. The dispatch delay is spent
// between stations with nothing taken off the queue.
func (v *Validator) dispatchLoop(ctx context.Context, stations []domain.Station, queue <-chan int, out chan<- stationOutcome, prober ports.Prober) {
	for idx := range queue {
		station := stations[idx]

		var result domain.ValidationResult
		if err := ctx.Err(); err != nil {
			result = domain.ValidationResult{Error: domain.ErrorKindCancelled, Message: err.Error()}
		} else {
			result = v.validateStation(ctx, station, prober)
		}

		out <- stationOutcome{index: idx, result: domain.StationResult{Station: station, Result: result}}

		// the queue is filled before the loops start, so empty means drained
		if v.opts.DispatchDelay > 0 && len(queue) > 0 {
			sleep(ctx, v.opts.DispatchDelay)
		}
	}
}

// validateStation runs the bounded attempt loop for one station.
func (v *Validator) validateStation(ctx context.Context, station domain.Station, prober ports.Prober) domain.ValidationResult {
	var (
		attempts     int
		lastDuration time.Duration
		lastErr      error
	)

	cfg := retry.Config{
		Enabled:     true,
		MaxAttempts: v.opts.RetryAttempts,
		Backoff:     retry.Linear(v.opts.BackoffStep),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			v.logger.Debugw("retrying station probe",
				"station_id", station.ID,
				"next_attempt", attempt+1,
				"max_attempts", v.opts.RetryAttempts,
				"delay", delay,
				"error", err,
			)
		},
	}

	outcome, err := retry.RetryWithResult(ctx, cfg, func(attempt int) (domain.ProbeOutcome, error) {
		attempts = attempt
		start := time.Now()
		outcome, err := v.attempt(ctx, station, prober, attempt)
		lastDuration = time.Since(start)
		lastErr = err
		return outcome, err
	})

	result := domain.ValidationResult{
		DurationMs: lastDuration.Milliseconds(),
		Attempts:   attempts,
	}
	if err == nil {
		result.OK = true
		result.Status = outcome.StatusCode
		result.ContentType = outcome.ContentType
		return result
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.Error = domain.ErrorKindCancelled
		result.Message = ctxErr.Error()
		return result
	}
	if lastErr == nil {
		lastErr = err
	}
	result.Error, result.Message = classify(lastErr)
	return result
}

type probeReply struct {
	outcome domain.ProbeOutcome
	err     error
}

// attempt runs one probe under its own timeout. The attempt ends at the
// deadline even when the prober ignores its context.
func (v *Validator) attempt(ctx context.Context, station domain.Station, prober ports.Prober, attempt int) (domain.ProbeOutcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	attemptCtx, span := tracing.TraceProbeAttempt(attemptCtx, string(station.ID), station.StreamURL, attempt)
	defer span.End()

	v.observer.ProbeStarted()
	start := time.Now()

	done := make(chan probeReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeReply{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		outcome, err := prober.Probe(attemptCtx, station)
		done <- probeReply{outcome: outcome, err: err}
	}()

	var reply probeReply
	select {
	case reply = <-done:
	case <-attemptCtx.Done():
		reply = probeReply{err: attemptCtx.Err()}
	}

	kind := domain.ErrorKindNone
	if reply.err != nil {
		if _, ok := domain.AsProbeError(reply.err); !ok && ctx.Err() == nil &&
			errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			reply.err = &domain.ProbeError{
				Kind:    domain.ErrorKindTimeout,
				Message: fmt.Sprintf("no response within %s", v.opts.Timeout),
			}
		}
		kind, _ = classify(reply.err)
		tracing.AddSpanAttributes(attemptCtx, tracing.ErrorKindKey.String(string(kind)))
		tracing.RecordError(attemptCtx, reply.err)
	} else {
		tracing.AddSpanAttributes(attemptCtx, tracing.StatusCodeKey.Int(reply.outcome.StatusCode))
	}
	v.observer.ProbeFinished(kind, time.Since(start))

	return reply.outcome, reply.err
}

// classify maps a failed attempt onto the error taxonomy. Deadline errors
// become Timeout; anything unclassified is treated as a network failure.
func classify(err error) (domain.ErrorKind, string) {
	if pe, ok := domain.AsProbeError(err); ok {
		return pe.Kind, pe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorKindTimeout, "timeout"
	}
	return domain.ErrorKindNetwork, err.Error()
}

func checkStations(stations []domain.Station) error {
	seen := make(map[domain.StationID]struct{}, len(stations))
	for i, s := range stations {
		if s.ID == "" {
			return fmt.Errorf("%w: station at index %d has no id", domain.ErrInvalidStation, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateStation, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// notify shields the run from a misbehaving sink.
func (v *Validator) notify(log *zap.SugaredLogger, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("result sink panicked", "callback", callback, "panic", r)
		}
	}()
	fn()
}

func logResult(log *zap.SugaredLogger, r domain.StationResult) {
	if r.Result.OK {
		log.Debugw("station reachable",
			"station_id", r.Station.ID,
			"name", r.Station.Name,
			"status", r.Result.Status,
			"duration_ms", r.Result.DurationMs,
		)
		return
	}
	log.Debugw("station unreachable",
		"station_id", r.Station.ID,
		"name", r.Station.Name,
		"error", r.Result.Error,
		"message", r.Result.Message,
		"attempts", r.Result.Attempts,
	)
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type noopObserver struct{}

func (noopObserver) ProbeStarted()                                 {}
func (noopObserver) ProbeFinished(domain.ErrorKind, time.Duration) {}
func (noopObserver) StationCompleted(domain.ValidationResult)      {}
func (noopObserver) RunFinished(*domain.Summary)                   {}
