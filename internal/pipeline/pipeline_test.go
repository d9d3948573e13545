package pipeline

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/monitoring"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store/sqlite"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

type item struct {
	obs contracts.Observation
	err error
}

// fakeProvider serves canned series. Observations honour bounds.Start.
type fakeProvider struct {
	mu          sync.Mutex
	descriptors map[string]*contracts.SeriesDescriptor
	descErr     map[string]error
	series      map[string][]item
	block       chan struct{} // when set, Descriptor waits on it
	entered     chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		descriptors: map[string]*contracts.SeriesDescriptor{},
		descErr:     map[string]error{},
		series:      map[string][]item{},
	}
}

func (p *fakeProvider) Descriptor(ctx context.Context, id string) (*contracts.SeriesDescriptor, error) {
	if p.block != nil {
		p.entered <- struct{}{}
		<-p.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.descErr[id]; err != nil {
		return nil, err
	}
	return p.descriptors[id], nil
}

func (p *fakeProvider) Observations(_ context.Context, id string, bounds contracts.Bounds) iter.Seq2[contracts.Observation, error] {
	p.mu.Lock()
	items := append([]item(nil), p.series[id]...)
	p.mu.Unlock()

	return func(yield func(contracts.Observation, error) bool) {
		for _, it := range items {
			if it.err == nil && !bounds.Start.IsZero() && it.obs.Date.Before(bounds.Start) {
				continue
			}
			if !yield(it.obs, it.err) {
				return
			}
		}
	}
}

func (p *fakeProvider) set(id string, items ...item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[id] = items
	if _, ok := p.descriptors[id]; !ok {
		p.descriptors[id] = &contracts.SeriesDescriptor{ID: id, Title: "provider title", Units: "Percent", SeasonallyAdjusted: true}
	}
}

func monthly(id string, from time.Time, values ...*float64) []item {
	out := make([]item, len(values))
	for i, v := range values {
		out[i] = item{obs: contracts.Observation{SeriesID: id, Date: from.AddDate(0, i, 0), Value: v}}
	}
	return out
}

func repeat(v float64, n int) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = contracts.Float(v)
	}
	return out
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

var (
	jan2023 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2024 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPipeline(t *testing.T, provider contracts.Provider, st store.Store, opts ...Option) *Pipeline {
	t.Helper()
	return New(provider, st, registry.Default(), Settings{Workers: 2, Start: jan2023}, logger.Nop(), opts...)
}

func TestRun_IsolatesSeriesFailures(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()

	unrate := monthly("UNRATE", jan2023, repeat(4, 14)...)
	unrate[3].obs.Value = nil
	unrate = append(unrate, item{err: &contracts.DataQualityError{SeriesID: "UNRATE", Date: "2024-03-01", Raw: "abc", Reason: "not a number"}})
	provider.set("UNRATE", unrate...)

	provider.set("GDP")
	provider.descErr["GDP"] = &contracts.ProviderError{Kind: contracts.ProviderNotFound, SeriesID: "GDP", Op: "series", Err: errors.New("404")}

	houst := monthly("HOUST", jan2023, repeat(1400, 3)...)
	houst = append(houst, item{err: &contracts.ProviderError{Kind: contracts.ProviderTransient, SeriesID: "HOUST", Op: "observations", Err: errors.New("503")}})
	provider.set("HOUST", houst...)

	st := openStore(t)
	metrics := monitoring.New()
	views := &countingInvalidator{}
	p := newPipeline(t, provider, st, WithMetrics(metrics), WithInvalidator(views))

	summary, err := p.Run(ctx, Options{SeriesIDs: []string{"UNRATE", "unrate ", "GDP", "HOUST"}})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total, "ids are de-duplicated")
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, store.RunPartial, summary.Status)
	assert.Equal(t, []string{"GDP", "HOUST"}, summary.FailedIDs())
	assert.Equal(t, 14, summary.Observations)
	assert.Equal(t, 1, summary.Dropped)

	gdp, ok := summary.Failure("GDP")
	require.True(t, ok)
	assert.Equal(t, contracts.StageRegistry, gdp.Stage)
	assert.True(t, contracts.IsNotFound(gdp.Err))

	houstFailure, _ := summary.Failure("HOUST")
	assert.Equal(t, contracts.StageExtract, houstFailure.Stage)

	stored, err := st.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	require.Len(t, stored, 14)
	assert.Nil(t, stored[3].Value)

	houstRows, err := st.Observations(ctx, "HOUST")
	require.NoError(t, err)
	assert.Empty(t, houstRows, "a failed extract writes nothing")

	rows, err := st.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{"UNRATE"}})
	require.NoError(t, err)
	require.Len(t, rows, 14)
	require.NotNil(t, rows[12].YoYChange)
	assert.Equal(t, 0.0, *rows[12].YoYChange)
	assert.Nil(t, rows[4].MoMChange, "previous value is null")

	descs, err := st.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "Unemployment Rate", descs[0].Title, "registry title wins")
	assert.Equal(t, contracts.FrequencyMonthly, descs[0].Frequency)

	runs, err := st.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, "GDP,HOUST", runs[0].FailedSeries)
	assert.Equal(t, registry.Default().Hash(), runs[0].RegistryHash)

	assert.Equal(t, 1, views.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(store.RunPartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SeriesTotal.WithLabelValues("failure", "extract")))
	assert.Equal(t, 14.0, testutil.ToFloat64(metrics.ObservationsStored))
}

func TestRun_IncrementalUsesStoredHistory(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	provider.set("CPIAUCSL", monthly("CPIAUCSL", jan2023, repeat(100, 12)...)...)

	st := openStore(t)
	p := newPipeline(t, provider, st)

	first, err := p.Run(ctx, Options{SeriesIDs: []string{"CPIAUCSL"}})
	require.NoError(t, err)
	require.Equal(t, store.RunSucceeded, first.Status)

	// the provider now only serves 2024
	provider.set("CPIAUCSL", monthly("CPIAUCSL", jan2024, contracts.Float(110), contracts.Float(111))...)

	second, err := p.Run(ctx, Options{SeriesIDs: []string{"CPIAUCSL"}, Start: jan2024})
	require.NoError(t, err)
	require.Equal(t, store.RunSucceeded, second.Status)
	assert.Equal(t, 2, second.Observations)

	rows, err := st.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{"CPIAUCSL"}})
	require.NoError(t, err)
	require.Len(t, rows, 14)
	require.NotNil(t, rows[12].YoYChange, "lag reaches into stored 2023 history")
	assert.InDelta(t, 10.0, *rows[12].YoYChange, 1e-9)
	assert.InDelta(t, 11.0, *rows[13].YoYChange, 1e-9)
	assert.Equal(t, 100.0, *rows[13].PercentileRank, "new maximum")

	// re-running is idempotent
	_, err = p.Run(ctx, Options{SeriesIDs: []string{"CPIAUCSL"}, Start: jan2024})
	require.NoError(t, err)
	again, err := st.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{"CPIAUCSL"}})
	require.NoError(t, err)
	assert.Len(t, again, 14)
	assert.Equal(t, *rows[13].ZScore, *again[13].ZScore)
}

func TestRun_RebuildDropsStaleHistory(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	provider.set("FEDFUNDS", monthly("FEDFUNDS", jan2023, repeat(5, 6)...)...)

	st := openStore(t)
	p := newPipeline(t, provider, st)

	_, err := p.Run(ctx, Options{SeriesIDs: []string{"FEDFUNDS"}})
	require.NoError(t, err)

	provider.set("FEDFUNDS", monthly("FEDFUNDS", jan2024, repeat(5.25, 2)...)...)
	summary, err := p.Run(ctx, Options{SeriesIDs: []string{"FEDFUNDS"}, Rebuild: true})
	require.NoError(t, err)
	assert.True(t, summary.Rebuild)

	rows, err := st.Observations(ctx, "FEDFUNDS")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRun_TransformFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	items := monthly("PAYEMS", jan2023, repeat(150000, 3)...)
	items[1].obs.SeriesID = "PCEPI"
	provider.set("PAYEMS", items...)

	st := openStore(t)
	summary, err := newPipeline(t, provider, st).Run(ctx, Options{SeriesIDs: []string{"PAYEMS"}})
	require.NoError(t, err)

	assert.Equal(t, store.RunFailed, summary.Status)
	f, ok := summary.Failure("PAYEMS")
	require.True(t, ok)
	assert.Equal(t, contracts.StageTransform, f.Stage)
	var cie *contracts.ComputationInputError
	assert.ErrorAs(t, f.Err, &cie)
}

// failingStore rejects every series write
type failingStore struct {
	store.Store
}

func (failingStore) SaveSeries(_ context.Context, batch contracts.SeriesBatch) error {
	return &contracts.PersistenceError{SeriesID: batch.Descriptor.ID, Op: "save series", Err: errors.New("disk full")}
}

func TestRun_LoadFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.set("UMCSENT", monthly("UMCSENT", jan2023, repeat(70, 2)...)...)

	summary, err := newPipeline(t, provider, failingStore{openStore(t)}).Run(context.Background(), Options{SeriesIDs: []string{"UMCSENT"}})
	require.NoError(t, err)

	f, ok := summary.Failure("UMCSENT")
	require.True(t, ok)
	assert.Equal(t, contracts.StageLoad, f.Stage)
}

func TestRun_UnregisteredSeries(t *testing.T) {
	summary, err := newPipeline(t, newFakeProvider(), openStore(t)).Run(context.Background(), Options{SeriesIDs: []string{"NOPE"}})
	require.NoError(t, err)

	f, ok := summary.Failure("NOPE")
	require.True(t, ok)
	assert.Equal(t, contracts.StageRegistry, f.Stage)
}

func TestRun_CancelledContext(t *testing.T) {
	provider := newFakeProvider()
	provider.set("UNRATE", monthly("UNRATE", jan2023, repeat(4, 2)...)...)
	provider.set("ICSA", monthly("ICSA", jan2023, repeat(220000, 2)...)...)

	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newPipeline(t, provider, st).Run(ctx, Options{SeriesIDs: []string{"UNRATE", "ICSA"}})
	require.NoError(t, err)

	assert.Equal(t, store.RunFailed, summary.Status)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed())
	for _, f := range summary.Failures {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}

	runs, err := st.Runs(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "cancelled runs are still audited")
}

func TestRun_OneRunAtATime(t *testing.T) {
	provider := newFakeProvider()
	provider.set("UNRATE", monthly("UNRATE", jan2023, repeat(4, 2)...)...)
	provider.block = make(chan struct{})
	provider.entered = make(chan struct{}, 1)

	p := newPipeline(t, provider, openStore(t))

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), Options{SeriesIDs: []string{"UNRATE"}})
		done <- err
	}()

	<-provider.entered
	_, err := p.Run(context.Background(), Options{SeriesIDs: []string{"UNRATE"}})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(provider.block)
	require.NoError(t, <-done)
}

func TestSyncRegistry(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	updated := time.Date(2026, 10, 2, 13, 1, 0, 0, time.UTC)
	for _, d := range registry.Default().Descriptors() {
		provider.descriptors[d.ID] = &contracts.SeriesDescriptor{ID: d.ID, Title: "x", Units: "Provider Units", LastUpdated: updated}
	}
	provider.descErr["DGS10"] = &contracts.ProviderError{Kind: contracts.ProviderNotFound, SeriesID: "DGS10", Op: "series", Err: errors.New("404")}

	st := openStore(t)
	descs, failures, err := newPipeline(t, provider, st).SyncRegistry(ctx)
	require.NoError(t, err)

	assert.Len(t, descs, registry.Default().Len())
	require.Len(t, failures, 1)
	assert.Equal(t, "DGS10", failures[0].SeriesID)

	stored, err := st.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, stored, registry.Default().Len())
	for _, d := range stored {
		if d.ID == "DGS10" {
			assert.Equal(t, "Percent", d.Units)
			continue
		}
		assert.Equal(t, "Provider Units", d.Units, d.ID)
		assert.True(t, updated.Equal(d.LastUpdated), d.ID)
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"GDP", "UNRATE"}, dedupe([]string{"gdp", " GDP", "", "UNRATE", "unrate"}))
}

func TestOverlay(t *testing.T) {
	stored := monthly("X", jan2023, contracts.Float(1), contracts.Float(2), contracts.Float(3))
	fresh := monthly("X", jan2023.AddDate(0, 2, 0), contracts.Float(30), contracts.Float(40))

	var s, f []contracts.Observation
	for _, it := range stored {
		s = append(s, it.obs)
	}
	for _, it := range fresh {
		f = append(f, it.obs)
	}

	got := overlay(s, f)
	require.Len(t, got, 4)
	assert.Equal(t, 2.0, *got[1].Value)
	assert.Equal(t, 30.0, *got[2].Value)
	assert.Equal(t, 40.0, *got[3].Value)
}
