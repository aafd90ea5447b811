package utils

import (
	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier for a validation run
func NewRunID() string {
	return uuid.NewString()
}

// NewRequestID returns a fresh identifier for an HTTP request
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// NewInstanceID returns a fresh identifier for a server process
func NewInstanceID() string {
	return "inst_" + uuid.NewString()
}
