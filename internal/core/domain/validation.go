package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrorKind classifies why a probe attempt (and ultimately a station) failed.
type ErrorKind string

const (
	ErrorKindNone    ErrorKind = ""
	ErrorKindTimeout ErrorKind = "Timeout"
	ErrorKindNetwork ErrorKind = "NetworkError"
	ErrorKindHTTP    ErrorKind = "HttpError"
	// ErrorKindCancelled marks stations left unfinished by run cancellation.
	ErrorKindCancelled ErrorKind = "Cancelled"
)

// ProbeOutcome is what a successful probe reports about a stream endpoint.
type ProbeOutcome struct {
	StatusCode  int
	ContentType string
}

// ProbeError is a classified probe failure.
type ProbeError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewHTTPError reports a response that arrived but was not a success.
func NewHTTPError(statusCode int, status string) *ProbeError {
	return &ProbeError{Kind: ErrorKindHTTP, StatusCode: statusCode, Message: status}
}

// NewNetworkError reports a transport level failure.
func NewNetworkError(err error) *ProbeError {
	return &ProbeError{Kind: ErrorKindNetwork, Message: err.Error()}
}

// AsProbeError extracts a ProbeError from an error chain.
func AsProbeError(err error) (*ProbeError, bool) {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ValidationResult is the terminal outcome of probing one station.
// It is built once per station per run and never mutated afterwards.
type ValidationResult struct {
	OK          bool      `json:"ok"`
	Status      int       `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Error       ErrorKind `json:"error,omitempty"`
	Message     string    `json:"message,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Attempts    int       `json:"attempts"`
}

type StationResult struct {
	Station Station          `json:"station"`
	Result  ValidationResult `json:"result"`
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent is the rounded completion percentage.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return int((float64(p.Completed)/float64(p.Total))*100 + 0.5)
}

type Summary struct {
	RunID       string          `json:"run_id"`
	Total       int             `json:"total"`
	OK          int             `json:"ok"`
	Failed      int             `json:"failed"`
	SuccessRate float64         `json:"success_rate"`
	Results     []StationResult `json:"results"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// SuccessPercent is the success rate rounded to a whole percentage.
func (s *Summary) SuccessPercent() int {
	return int(s.SuccessRate*100 + 0.5)
}

// NewSummary counts the results and orders them with successful stations
// first. The sort is stable, so the incoming order is kept within each group.
func NewSummary(runID string, results []StationResult, startedAt, finishedAt time.Time) *Summary {
	sorted := make([]StationResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Result.OK && !sorted[j].Result.OK
	})

	summary := &Summary{
		RunID:      runID,
		Total:      len(sorted),
		Results:    sorted,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	for _, r := range sorted {
		if r.Result.OK {
			summary.OK++
		}
	}
	summary.Failed = summary.Total - summary.OK
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.OK) / float64(summary.Total)
	}
	return summary
}

type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
)

// RunSnapshot is a point-in-time view of the latest validation run.
type RunSnapshot struct {
	RunID     string                         `json:"run_id"`
	State     RunState                       `json:"state"`
	Progress  Progress                       `json:"progress"`
	Results   map[StationID]ValidationResult `json:"results"`
	Summary   *Summary                       `json:"summary,omitempty"`
	StartedAt time.Time                      `json:"started_at"`
}

type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventStationResult EventType = "station_result"
	EventRunCompleted  EventType = "run_completed"
)

// Event is pushed to live subscribers while a run progresses.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Progress  Progress       `json:"progress"`
	Result    *StationResult `json:"result,omitempty"`
	Summary   *Summary       `json:"summary,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ValidationOverrides adjusts the configured validator options for one run.
// Zero values keep the configured option.
type ValidationOverrides struct {
	MaxConcurrent int         `json:"max_concurrent" binding:"omitempty,min=1,max=64"`
	RetryAttempts int         `json:"retry_attempts" binding:"omitempty,min=1,max=10"`
	TimeoutMs     int         `json:"timeout_ms" binding:"omitempty,min=100,max=120000"`
	StationIDs    []StationID `json:"station_ids" binding:"omitempty,max=1000"`
}
