package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"eclairia/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RecordsValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.ProbeStarted()
	c.ProbeStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.probesInFlight))

	c.ProbeFinished(domain.ErrorKindNone, 120*time.Millisecond)
	c.ProbeFinished(domain.ErrorKindTimeout, 10*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.probesInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.probeAttempts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.probeAttempts.WithLabelValues("Timeout")))

	c.StationCompleted(domain.ValidationResult{OK: true})
	c.StationCompleted(domain.ValidationResult{Error: domain.ErrorKindHTTP})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stationsValidated.WithLabelValues("HttpError")))

	start := time.Unix(1_700_000_000, 0)
	c.RunFinished(&domain.Summary{Total: 5, OK: 3, SuccessRate: 0.6, StartedAt: start, FinishedAt: start.Add(4 * time.Second)})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.lastRunStations))
	assert.Equal(t, 0.6, testutil.ToFloat64(c.lastRunSuccessRate))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.lastRunDuration))

	c.RecordHTTPRequest("GET", "/api/stations", 200, 3*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/stations", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestHealthChecker_CheckAll(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("fine", func(ctx context.Context) error { return nil }, time.Second)
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("broken", func(ctx context.Context) error { return errors.New("redis down") }, time.Second)
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["fine"].Status)
	assert.Equal(t, "redis down", status.Checks["broken"].Error)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Error)
	assert.GreaterOrEqual(t, status.Checks["slow"].LatencyMs, int64(10))
	assert.False(t, h.IsReady(context.Background()))
}
