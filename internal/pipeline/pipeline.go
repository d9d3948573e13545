// Package pipeline runs the batch ETL: for every tracked series it resolves
// the descriptor, pulls observations, recomputes metrics over the stored
// history and writes the series in one transaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/engine"
	"github.com/RuizOsvaldo/economic-dashboard/internal/monitoring"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Invalidator drops cached read models after a run
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Settings are the run defaults
type Settings struct {
	Workers int
	Start   time.Time // earliest observation date requested from the provider
}

// Options narrow a single run
type Options struct {
	SeriesIDs []string  // empty means the whole registry
	Rebuild   bool      // clear observations and metrics first
	Start     time.Time // overrides Settings.Start
	Workers   int       // overrides Settings.Workers
}

// Pipeline orchestrates extract, transform and load
// ⭐ SSOT: the only writer of observations and calculated metrics
type Pipeline struct {
	provider contracts.Provider
	store    store.Store
	registry *registry.Registry
	settings Settings
	logger   *logger.Logger

	metrics *monitoring.Metrics
	views   Invalidator
	now     func() time.Time
	newID   func() string

	// one run at a time; the scheduler and the API can both trigger runs
	running sync.Mutex
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records Prometheus instruments
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithInvalidator clears view caches after successful writes
func WithInvalidator(v Invalidator) Option {
	return func(p *Pipeline) { p.views = v }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline
func New(provider contracts.Provider, st store.Store, reg *registry.Registry, settings Settings, log *logger.Logger, opts ...Option) *Pipeline {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	p := &Pipeline{
		provider: provider,
		store:    st,
		registry: reg,
		settings: settings,
		logger:   log.Module("pipeline"),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ErrRunInProgress is returned when another run holds the pipeline
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Run executes one batch. Per-series failures land in the summary; the
// returned error is reserved for failures of the run itself.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	ids := opts.SeriesIDs
	if len(ids) == 0 {
		ids = p.registry.IDs()
	}
	ids = dedupe(ids)

	workers := p.settings.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	start := p.settings.Start
	if !opts.Start.IsZero() {
		start = opts.Start
	}

	summary := &RunSummary{
		RunID:     p.newID(),
		StartedAt: p.now().UTC(),
		Total:     len(ids),
		Rebuild:   opts.Rebuild,
	}
	log := p.logger.WithRun(summary.RunID)

	log.WithFields(map[string]interface{}{
		"series":  len(ids),
		"workers": workers,
		"start":   contracts.FormatDate(start),
		"rebuild": opts.Rebuild,
	}).Info("Starting pipeline run")

	if opts.Rebuild {
		if err := p.store.Rebuild(ctx); err != nil {
			return nil, fmt.Errorf("rebuild store: %w", err)
		}
		log.Warn("Observations and metrics cleared for rebuild")
	}

	// worker pool
	results := make([]SeriesResult, 0, len(ids))
	resultCh := make(chan SeriesResult, len(ids))
	seriesCh := make(chan string, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, seriesCh, resultCh, start, opts.Rebuild, log)
		}(i)
	}

	// stop dispatching once the context is done
dispatch:
	for i, id := range ids {
		select {
		case <-ctx.Done():
			for _, rest := range ids[i:] {
				resultCh <- SeriesResult{SeriesID: rest, Stage: contracts.StageExtract, Err: ctx.Err()}
			}
			break dispatch
		case seriesCh <- id:
		}
	}
	close(seriesCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		results = append(results, r)
	}

	summary.finish(results, p.now().UTC())
	p.record(ctx, summary, log)

	return summary, nil
}

func (p *Pipeline) worker(ctx context.Context, workerID int, seriesCh <-chan string, resultCh chan<- SeriesResult, start time.Time, rebuild bool, log *logger.Logger) {
	for id := range seriesCh {
		began := time.Now()
		result := p.processSeries(ctx, id, start, rebuild)
		result.Duration = time.Since(began)

		if p.metrics != nil {
			p.metrics.ObserveSeries(string(result.failedStage()), result.Err, result.Duration)
			p.metrics.ObservationsStored.Add(float64(result.Observations))
			p.metrics.MetricsStored.Add(float64(result.Metrics))
			p.metrics.DroppedRows.Add(float64(result.Dropped))
		}

		fields := map[string]interface{}{
			"worker":       workerID,
			"observations": result.Observations,
			"dropped":      result.Dropped,
			"elapsed_ms":   result.Duration.Milliseconds(),
		}
		if result.Err != nil {
			log.WithSeries(id).WithError(result.Err).WithFields(fields).WithStage(result.Stage).Error("Series failed")
		} else {
			log.WithSeries(id).WithFields(fields).Debug("Series loaded")
		}

		resultCh <- result
	}
}

// processSeries runs the four stages for one series
func (p *Pipeline) processSeries(ctx context.Context, id string, start time.Time, rebuild bool) SeriesResult {
	result := SeriesResult{SeriesID: id}
	fail := func(stage contracts.Stage, err error) SeriesResult {
		result.Stage, result.Err = stage, err
		return result
	}

	// registry
	registered, ok := p.registry.Lookup(id)
	if !ok {
		return fail(contracts.StageRegistry, fmt.Errorf("series %s is not registered", id))
	}
	remote, err := p.provider.Descriptor(ctx, id)
	if err != nil {
		return fail(contracts.StageRegistry, err)
	}
	descriptor := registry.Merge(registered, remote)

	// extract
	var fetched []contracts.Observation
	for obs, err := range p.provider.Observations(ctx, id, contracts.Bounds{Start: start}) {
		if err != nil {
			if contracts.IsDataQuality(err) {
				result.Dropped++
				p.logger.WithSeries(id).WithError(err).Warn("Dropping observation")
				continue
			}
			return fail(contracts.StageExtract, err)
		}
		fetched = append(fetched, obs)
	}

	// transform over stored history overlaid with the fresh rows
	history := fetched
	if !rebuild {
		stored, err := p.store.Observations(ctx, id)
		if err != nil {
			return fail(contracts.StageTransform, err)
		}
		history = overlay(stored, fetched)
	}

	metrics, err := engine.Compute(id, descriptor.Frequency, history)
	if err != nil {
		return fail(contracts.StageTransform, err)
	}

	// load
	err = p.store.SaveSeries(ctx, contracts.SeriesBatch{
		Descriptor:   &descriptor,
		Observations: fetched,
		Metrics:      metrics,
	})
	if err != nil {
		return fail(contracts.StageLoad, err)
	}

	result.Observations = len(fetched)
	result.Metrics = len(metrics)
	return result
}

func (p *Pipeline) record(ctx context.Context, summary *RunSummary, log *logger.Logger) {
	// the audit row and cache flush happen even when the run was cancelled
	ctx = context.WithoutCancel(ctx)

	if err := p.store.RecordRun(ctx, summary.Record(p.registry.Hash())); err != nil {
		log.WithError(err).Error("Failed to record run")
	}

	if p.metrics != nil {
		p.metrics.ObserveRun(summary.Status, summary.StartedAt, summary.FinishedAt)
	}

	if p.views != nil && summary.Succeeded > 0 {
		if err := p.views.Invalidate(ctx); err != nil {
			log.WithError(err).Warn("Failed to invalidate views")
		}
	}

	fields := map[string]interface{}{
		"status":      summary.Status,
		"succeeded":   summary.Succeeded,
		"failed":      summary.Failed(),
		"duration_ms": summary.Duration().Milliseconds(),
	}
	if summary.Failed() > 0 {
		fields["failed_series"] = strings.Join(summary.FailedIDs(), ",")
		log.WithFields(fields).Warn("Pipeline run finished with failures")
		return
	}
	log.WithFields(fields).Info("Pipeline run finished")
}

// overlay merges fetched rows over stored ones by date, ascending
func overlay(stored, fetched []contracts.Observation) []contracts.Observation {
	byDate := make(map[string]contracts.Observation, len(stored)+len(fetched))
	for _, o := range stored {
		byDate[contracts.FormatDate(o.Date)] = o
	}
	for _, o := range fetched {
		byDate[contracts.FormatDate(o.Date)] = o
	}

	out := make([]contracts.Observation, 0, len(byDate))
	for _, o := range byDate {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
