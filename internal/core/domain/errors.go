package domain

import "errors"

var (
	ErrStationNotFound  = errors.New("station not found")
	ErrInvalidStation   = errors.New("invalid station")
	ErrDuplicateStation = errors.New("duplicate station id")
	ErrInvalidOptions   = errors.New("invalid validation options")
	ErrNilProber        = errors.New("prober is required")
	ErrRunInProgress    = errors.New("validation run already in progress")
	ErrNoRun            = errors.New("no validation run yet")
)
