package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

var errBusy = errors.New("run already in progress")

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test error")
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := Wrap(originalErr, ErrCodeInternal, "wrapped error")

	if !errors.Is(err, originalErr) {
		t.Errorf("expected wrapped error to match cause")
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if err.HTTPStatus != 500 {
		t.Errorf("HTTPStatus = %d, want 500", err.HTTPStatus)
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := NewConflictError("validation run already in progress")
	err.WithDetail("run_id", "abc").WithDetail("completed", 3)

	if err.Details["run_id"] != "abc" {
		t.Errorf("Details[run_id] = %v, want 'abc'", err.Details["run_id"])
	}
	if err.Details["completed"] != 3 {
		t.Errorf("Details[completed] = %v, want 3", err.Details["completed"])
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"invalid input", NewInvalidInputError("bad"), ErrCodeInvalidInput, 400},
		{"not found", NewNotFoundError("station"), ErrCodeNotFound, 404},
		{"conflict", NewConflictError("busy"), ErrCodeConflict, 409},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, 429},
		{"internal", NewInternalError("boom"), ErrCodeInternal, 500},
		{"unavailable", NewServiceUnavailableError("down"), ErrCodeServiceUnavailable, 503},
		{"unknown code", New("TEAPOT", "short and stout"), "TEAPOT", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %v, want %v", tt.err.HTTPStatus, tt.status)
			}
		})
	}

	if msg := NewNotFoundError("station").Message; msg != "station not found" {
		t.Errorf("Message = %q", msg)
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotFoundError("station")
	wrapped := fmt.Errorf("handler: %w", appErr)

	if got := GetAppError(wrapped); got != appErr {
		t.Errorf("GetAppError() = %v, want %v", got, appErr)
	}
	if got := GetAppError(errors.New("plain")); got != nil {
		t.Errorf("GetAppError() = %v, want nil", got)
	}
	if got := GetAppError(nil); got != nil {
		t.Errorf("GetAppError(nil) = %v, want nil", got)
	}
}

func TestMap(t *testing.T) {
	mappings := []Mapping{
		{Target: errBusy, Code: ErrCodeConflict, Message: "try again later"},
		{Target: errInvalid, Code: ErrCodeInvalidInput},
	}

	got := Map(fmt.Errorf("start: %w", errBusy), mappings...)
	if got.Code != ErrCodeConflict || got.Message != "try again later" || got.HTTPStatus != 409 {
		t.Errorf("Map(busy) = %+v", got)
	}
	if !errors.Is(got, errBusy) {
		t.Errorf("mapped error should keep its cause")
	}

	got = Map(fmt.Errorf("field x: %w", errInvalid), mappings...)
	if got.Code != ErrCodeInvalidInput || got.Message != "field x: invalid" {
		t.Errorf("Map(invalid) = %+v", got)
	}

	got = Map(errors.New("disk on fire"), mappings...)
	if got.Code != ErrCodeInternal || got.Message != "internal error" {
		t.Errorf("Map(unknown) = %+v", got)
	}

	existing := NewNotFoundError("station")
	if got := Map(fmt.Errorf("wrapped: %w", existing), mappings...); got != existing {
		t.Errorf("Map should return an AppError already in the chain")
	}
}

var errInvalid = errors.New("invalid")
