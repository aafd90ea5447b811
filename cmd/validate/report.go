package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/pkg/utils"
)

// reportSink prints each station line as soon as its result is known.
type reportSink struct {
	mu         sync.Mutex
	out        io.Writer
	onlyFailed bool
}

func (r *reportSink) OnResult(_ string, result domain.StationResult, progress domain.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onlyFailed && result.Result.OK {
		return
	}
	fmt.Fprintf(r.out, "[%3d%%] %s\n", progress.Percent(), formatLine(result))
}

func (r *reportSink) OnSummary(*domain.Summary) {}

func formatLine(r domain.StationResult) string {
	res := r.Result
	elapsed := utils.FormatDuration(time.Duration(res.DurationMs) * time.Millisecond)
	if res.OK {
		return fmt.Sprintf("✅ %s - %d %s (%s)", r.Station.Name, res.Status, res.ContentType, elapsed)
	}
	reason := string(res.Error)
	if res.Message != "" && res.Message != reason {
		reason = fmt.Sprintf("%s: %s", reason, res.Message)
	}
	return fmt.Sprintf("❌ %s - %s (%s, %d attempts)", r.Station.Name, reason, elapsed, res.Attempts)
}

func writeSummary(w io.Writer, s *domain.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d/%d stations actives (%d%%) in %s\n",
		s.OK, s.Total, s.SuccessPercent(), utils.FormatDuration(s.FinishedAt.Sub(s.StartedAt)))

	if s.Failed == 0 {
		return
	}
	fmt.Fprintf(w, "\nUnreachable stations (%d):\n", s.Failed)
	for _, r := range s.Results {
		if !r.Result.OK {
			fmt.Fprintf(w, "  - %s [%s] %s\n", r.Station.Name, r.Station.ID, r.Station.StreamURL)
		}
	}
}
