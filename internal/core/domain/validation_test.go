package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(id string, ok bool) StationResult {
	return StationResult{
		Station: Station{ID: StationID(id), Name: id},
		Result:  ValidationResult{OK: ok},
	}
}

func TestNewSummary_OrdersSuccessFirst(t *testing.T) {
	start := time.Now()
	in := []StationResult{
		result("a", false),
		result("b", true),
		result("c", false),
		result("d", true),
		result("e", true),
	}

	s := NewSummary("run-1", in, start, start.Add(time.Second))

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.OK)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 0.6, s.SuccessRate, 1e-9)
	assert.Equal(t, 60, s.SuccessPercent())

	var order []StationID
	for _, r := range s.Results {
		order = append(order, r.Station.ID)
	}
	assert.Equal(t, []StationID{"b", "d", "e", "a", "c"}, order)
	assert.Equal(t, StationID("a"), in[0].Station.ID, "input must not be reordered")
}

func TestNewSummary_Empty(t *testing.T) {
	s := NewSummary("run-1", nil, time.Time{}, time.Time{})
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.SuccessRate)
	assert.Empty(t, s.Results)
}

func TestProgress_Percent(t *testing.T) {
	assert.Equal(t, 100, Progress{}.Percent())
	assert.Equal(t, 33, Progress{Completed: 1, Total: 3}.Percent())
	assert.Equal(t, 67, Progress{Completed: 2, Total: 3}.Percent())
}

func TestProbeError(t *testing.T) {
	httpErr := NewHTTPError(404, "Not Found")
	assert.Equal(t, "HttpError: Not Found (status 404)", httpErr.Error())

	netErr := NewNetworkError(errors.New("connection refused"))
	assert.Equal(t, "NetworkError: connection refused", netErr.Error())

	pe, ok := AsProbeError(fmt.Errorf("attempt 2: %w", httpErr))
	require.True(t, ok)
	assert.Equal(t, ErrorKindHTTP, pe.Kind)

	_, ok = AsProbeError(errors.New("plain"))
	assert.False(t, ok)
}
