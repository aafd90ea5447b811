package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// StationIDRegex validates station ID format
	StationIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

	// RunIDRegex validates run ID format (uuid)
	RunIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// ValidateStationID validates station ID
func ValidateStationID(id string) error {
	if id == "" {
		return fmt.Errorf("station ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("station ID is too long (max 100 characters)")
	}
	if !StationIDRegex.MatchString(id) {
		return fmt.Errorf("invalid station ID format")
	}
	return nil
}

// ValidateStationName validates station display name
func ValidateStationName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("station name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("station name contains invalid characters")
	}
	if utf8.RuneCountInString(name) > 200 {
		return fmt.Errorf("station name is too long (max 200 characters)")
	}
	return nil
}

// ValidateStreamURL validates a station stream endpoint. Only http and https
// streams can be probed.
func ValidateStreamURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("stream URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid stream URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid stream URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("stream URL must have a host")
	}
	return nil
}

// ValidateRunID validates a validation run ID
func ValidateRunID(runID string) error {
	if !RunIDRegex.MatchString(runID) {
		return fmt.Errorf("invalid run ID format")
	}
	return nil
}

// ValidateRange validates that an integer option lies within [min, max]
func ValidateRange(value, min, max int, fieldName string) error {
	if value < min {
		return fmt.Errorf("%s must be at least %d", fieldName, min)
	}
	if value > max {
		return fmt.Errorf("%s is too high (max %d)", fieldName, max)
	}
	return nil
}
