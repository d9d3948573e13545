package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
)

// SeriesResult is the outcome of one series in a run
type SeriesResult struct {
	SeriesID     string
	Stage        contracts.Stage // set only on failure
	Err          error
	Observations int
	Metrics      int
	Dropped      int
	Duration     time.Duration
}

func (r SeriesResult) failedStage() contracts.Stage {
	if r.Err == nil {
		return ""
	}
	return r.Stage
}

// SeriesFailure names a failed series, the stage it failed in and why
type SeriesFailure struct {
	SeriesID string          `json:"series_id"`
	Stage    contracts.Stage `json:"stage"`
	Error    string          `json:"error"`
	Err      error           `json:"-"`
}

// RunSummary reports a finished run
type RunSummary struct {
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Status       string          `json:"status"`
	Total        int             `json:"total"`
	Succeeded    int             `json:"succeeded"`
	Observations int             `json:"observations"`
	Dropped      int             `json:"dropped"`
	Rebuild      bool            `json:"rebuild"`
	Failures     []SeriesFailure `json:"failures"`
}

// Failed returns the number of failed series
func (s *RunSummary) Failed() int {
	return len(s.Failures)
}

// Duration is the wall time of the run
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailedIDs lists the failed series, sorted
func (s *RunSummary) FailedIDs() []string {
	out := make([]string, len(s.Failures))
	for i, f := range s.Failures {
		out[i] = f.SeriesID
	}
	return out
}

// Failure returns the failure of one series, if any
func (s *RunSummary) Failure(seriesID string) (SeriesFailure, bool) {
	for _, f := range s.Failures {
		if f.SeriesID == seriesID {
			return f, true
		}
	}
	return SeriesFailure{}, false
}

func (s *RunSummary) finish(results []SeriesResult, finished time.Time) {
	s.FinishedAt = finished
	for _, r := range results {
		if r.Err != nil {
			s.Failures = append(s.Failures, SeriesFailure{
				SeriesID: r.SeriesID,
				Stage:    r.Stage,
				Error:    r.Err.Error(),
				Err:      r.Err,
			})
			continue
		}
		s.Succeeded++
		s.Observations += r.Observations
		s.Dropped += r.Dropped
	}
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].SeriesID < s.Failures[j].SeriesID })

	switch {
	case s.Failed() == 0:
		s.Status = store.RunSucceeded
	case s.Succeeded > 0:
		s.Status = store.RunPartial
	default:
		s.Status = store.RunFailed
	}
}

// Record converts the summary to an etl_runs row
func (s *RunSummary) Record(registryHash string) store.RunRecord {
	return store.RunRecord{
		ID:           s.RunID,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		Status:       s.Status,
		SeriesTotal:  s.Total,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed(),
		Rebuild:      s.Rebuild,
		RegistryHash: registryHash,
		FailedSeries: strings.Join(s.FailedIDs(), ","),
	}
}
