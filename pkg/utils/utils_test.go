package utils

import (
	"strings"
	"testing"
	"time"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Errorf("expected distinct run ids, got %s twice", a)
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
	if !strings.HasPrefix(NewRequestID(), "req_") {
		t.Errorf("request id should carry req_ prefix")
	}
	if !strings.HasPrefix(NewInstanceID(), "inst_") {
		t.Errorf("instance id should carry inst_ prefix")
	}
}

func TestCleanToken(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"  Radio Nova  ", 0, "Radio Nova"},
		{"FIP\x00\x07", 0, "FIP"},
		{"TSF\tJazz\n", 0, "TSFJazz"},
		{"Radio France Culture", 12, "Radio France"},
		{"Fréquence", 3, "Fré"},
	}
	for _, tt := range tests {
		if got := CleanToken(tt.in, tt.max); got != tt.want {
			t.Errorf("CleanToken(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
