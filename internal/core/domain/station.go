package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"eclairia/pkg/validation"
)

// StationID is an opaque station identifier. Catalogs use both JSON strings
// and JSON numbers for ids, so both decode into the same string form.
type StationID string

func (id *StationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StationID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("station id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("station id must be a string or number: %w", err)
	}
	*id = StationID(n.String())
	return nil
}

type Station struct {
	ID        StationID `json:"id"`
	Name      string    `json:"name"`
	StreamURL string    `json:"stream"`
	Country   string    `json:"country,omitempty"`
	Genre     string    `json:"genre,omitempty"`
}

// UnmarshalJSON accepts the stream endpoint under "stream", "streamUrl" or "url".
func (s *Station) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        StationID `json:"id"`
		Name      string    `json:"name"`
		Stream    string    `json:"stream"`
		StreamURL string    `json:"streamUrl"`
		URL       string    `json:"url"`
		Country   string    `json:"country"`
		Genre     string    `json:"genre"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.ID = raw.ID
	s.Name = raw.Name
	s.Country = raw.Country
	s.Genre = raw.Genre
	switch {
	case raw.Stream != "":
		s.StreamURL = raw.Stream
	case raw.StreamURL != "":
		s.StreamURL = raw.StreamURL
	default:
		s.StreamURL = raw.URL
	}
	return nil
}

// Validate checks the descriptor fields required to probe a station.
func (s Station) Validate() error {
	if err := validation.ValidateStationID(string(s.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStation, err)
	}
	if err := validation.ValidateStationName(s.Name); err != nil {
		return fmt.Errorf("%w: station %s: %v", ErrInvalidStation, s.ID, err)
	}
	if err := validation.ValidateStreamURL(s.StreamURL); err != nil {
		return fmt.Errorf("%w: station %s: %v", ErrInvalidStation, s.ID, err)
	}
	return nil
}
