package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"eclairia/internal/core/domain"
)

// LoadFile reads a station catalog from a JSON file.
func LoadFile(path string) ([]domain.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	stations, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return stations, nil
}

// Decode accepts either a bare array of stations or an object with a
// "stations" array. Every station is validated and ids must be unique.
func Decode(r io.Reader) ([]domain.Station, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	var stations []domain.Station
	if data[0] == '[' {
		err = json.Unmarshal(data, &stations)
	} else {
		var wrapped struct {
			Stations []domain.Station `json:"stations"`
		}
		err = json.Unmarshal(data, &wrapped)
		stations = wrapped.Stations
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := make(map[domain.StationID]struct{}, len(stations))
	for i, s := range stations {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateStation, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	if stations == nil {
		stations = []domain.Station{}
	}
	return stations, nil
}
