// Package storetest is the conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
)

// Clock is a settable clock handed to the backend under test
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at a fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 10, 1, 6, 0, 0, 0, time.UTC)}
}

// Now returns the current instant
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory opens an empty, migrated store using clock for timestamps
type Factory func(t *testing.T, clock *Clock) store.Store

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func descriptor(id, title, category string, freq contracts.Frequency) contracts.SeriesDescriptor {
	return contracts.SeriesDescriptor{
		ID:                 id,
		Title:              title,
		Frequency:          freq,
		Units:              "Percent",
		SeasonallyAdjusted: true,
		Category:           category,
		LastUpdated:        time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC),
	}
}

func obs(id string, month int, v *float64) contracts.Observation {
	return contracts.Observation{SeriesID: id, Date: base.AddDate(0, month, 0), Value: v}
}

func metric(id string, month int, v *float64, z *float64) contracts.CalculatedMetric {
	return contracts.CalculatedMetric{
		SeriesID:       id,
		Date:           base.AddDate(0, month, 0),
		Value:          v,
		MoMChange:      contracts.Float(1.5),
		ZScore:         z,
		PercentileRank: contracts.Float(50),
	}
}

func f(v float64) *float64 { return contracts.Float(v) }

// ignoreTimestamps compares rows by key and value fields only
var ignoreTimestamps = cmpopts.IgnoreFields(contracts.CalculatedMetric{}, "CreatedAt", "UpdatedAt")

// Run executes the suite
func Run(t *testing.T, open Factory) {
	ctx := context.Background()

	seed := func(t *testing.T, s store.Store) {
		t.Helper()
		require.NoError(t, s.UpsertDescriptors(ctx, []contracts.SeriesDescriptor{
			descriptor("UNRATE", "Unemployment Rate", "Labor Market", contracts.FrequencyMonthly),
			descriptor("CPIAUCSL", "Consumer Price Index", "Inflation", contracts.FrequencyMonthly),
			descriptor("ICSA", "Initial Jobless Claims", "Labor Market", contracts.FrequencyWeekly),
		}))
	}

	t.Run("migrate is idempotent", func(t *testing.T) {
		s := open(t, NewClock())
		require.NoError(t, s.Migrate(ctx))
		require.NoError(t, s.Migrate(ctx))

		status, err := s.HealthCheck(ctx)
		require.NoError(t, err)
		assert.True(t, status.Healthy)
	})

	t.Run("descriptors upsert and order", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		updated := descriptor("UNRATE", "Civilian Unemployment Rate", "Labor Market", contracts.FrequencyMonthly)
		updated.SeasonallyAdjusted = false
		require.NoError(t, s.UpsertDescriptors(ctx, []contracts.SeriesDescriptor{updated}))

		got, err := s.Descriptors(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, "CPIAUCSL", got[0].ID) // Inflation
		assert.Equal(t, "UNRATE", got[1].ID)   // Labor Market, "Civilian..."
		assert.Equal(t, "ICSA", got[2].ID)
		assert.Equal(t, "Civilian Unemployment Rate", got[1].Title)
		assert.False(t, got[1].SeasonallyAdjusted)
		assert.Equal(t, contracts.FrequencyWeekly, got[2].Frequency)
		assert.True(t, updated.LastUpdated.Equal(got[1].LastUpdated))
	})

	t.Run("observation upsert overwrites and keeps created_at", func(t *testing.T) {
		clock := NewClock()
		s := open(t, clock)
		seed(t, s)

		require.NoError(t, s.UpsertObservations(ctx, []contracts.Observation{obs("UNRATE", 0, f(3.7)), obs("UNRATE", 1, nil)}))
		first, err := s.Observations(ctx, "UNRATE")
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Nil(t, first[1].Value)

		clock.Advance(time.Hour)
		require.NoError(t, s.UpsertObservations(ctx, []contracts.Observation{obs("UNRATE", 0, f(3.8)), obs("UNRATE", 1, f(3.9))}))

		second, err := s.Observations(ctx, "UNRATE")
		require.NoError(t, err)
		require.Len(t, second, 2, "no duplicate keys")

		assert.Equal(t, 3.8, *second[0].Value)
		assert.Equal(t, 3.9, *second[1].Value)
		assert.True(t, first[0].CreatedAt.Equal(second[0].CreatedAt), "created_at preserved")
		assert.True(t, second[0].UpdatedAt.After(first[0].UpdatedAt), "updated_at advanced")
		assert.True(t, base.Equal(second[0].Date))
	})

	t.Run("observations come back ascending", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		require.NoError(t, s.UpsertObservations(ctx, []contracts.Observation{
			obs("UNRATE", 5, f(4)), obs("UNRATE", 1, f(2)), obs("UNRATE", 3, f(3)), obs("CPIAUCSL", 0, f(300)),
		}))

		got, err := s.Observations(ctx, "UNRATE")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i].Date.After(got[i-1].Date))
		}

		none, err := s.Observations(ctx, "HOUST")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("unknown series violates foreign key", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		err := s.UpsertObservations(ctx, []contracts.Observation{obs("NOPE", 0, f(1))})
		var pe *contracts.PersistenceError
		require.True(t, errors.As(err, &pe), "got %v", err)
	})

	t.Run("non-finite values rejected before writing", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		inf := f(math.Inf(1))
		err := s.UpsertMetrics(ctx, []contracts.CalculatedMetric{metric("UNRATE", 0, f(1), inf)})
		assert.ErrorIs(t, err, contracts.ErrNonFinite)

		err = s.SaveSeries(ctx, contracts.SeriesBatch{Observations: []contracts.Observation{obs("UNRATE", 0, inf)}})
		assert.ErrorIs(t, err, contracts.ErrNonFinite)

		got, err := s.Metrics(ctx, store.MetricsQuery{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("save series is all or nothing", func(t *testing.T) {
		s := open(t, NewClock())

		desc := descriptor("HOUST", "Housing Starts", "Housing", contracts.FrequencyMonthly)
		bad := metric("HOUST", 1, f(1400), nil)
		bad.PercentileRank = f(150) // violates the percentile check constraint

		err := s.SaveSeries(ctx, contracts.SeriesBatch{
			Descriptor:   &desc,
			Observations: []contracts.Observation{obs("HOUST", 0, f(1380)), obs("HOUST", 1, f(1400))},
			Metrics:      []contracts.CalculatedMetric{metric("HOUST", 0, f(1380), nil), bad},
		})
		var pe *contracts.PersistenceError
		require.True(t, errors.As(err, &pe), "got %v", err)
		assert.Equal(t, "HOUST", pe.SeriesID)

		descs, err := s.Descriptors(ctx)
		require.NoError(t, err)
		assert.Empty(t, descs, "descriptor rolled back")

		got, err := s.Observations(ctx, "HOUST")
		require.NoError(t, err)
		assert.Empty(t, got, "observations rolled back")
	})

	t.Run("save series rejects mixed batches", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		err := s.SaveSeries(ctx, contracts.SeriesBatch{
			Observations: []contracts.Observation{obs("UNRATE", 0, f(1))},
			Metrics:      []contracts.CalculatedMetric{metric("CPIAUCSL", 0, f(1), nil)},
		})
		var pe *contracts.PersistenceError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("metrics need an observation on the same date", func(t *testing.T) {
		s := open(t, NewClock())

		desc := descriptor("HOUST", "Housing Starts", "Housing", contracts.FrequencyMonthly)
		err := s.SaveSeries(ctx, contracts.SeriesBatch{
			Descriptor: &desc,
			Metrics:    []contracts.CalculatedMetric{metric("HOUST", 0, f(1380), nil)},
		})
		var pe *contracts.PersistenceError
		require.True(t, errors.As(err, &pe), "got %v", err)

		descs, err := s.Descriptors(ctx)
		require.NoError(t, err)
		assert.Empty(t, descs)

		seed(t, s)
		require.NoError(t, s.UpsertObservations(ctx, []contracts.Observation{obs("UNRATE", 0, f(3.7))}))
		err = s.UpsertMetrics(ctx, []contracts.CalculatedMetric{metric("UNRATE", 1, f(3.8), nil)})
		require.True(t, errors.As(err, &pe), "got %v", err)

		got, err := s.Metrics(ctx, store.MetricsQuery{})
		require.NoError(t, err)
		assert.Empty(t, got)

		o, err := s.Observations(ctx, "HOUST")
		require.NoError(t, err)
		assert.Empty(t, o)
	})

	t.Run("re-saving a series is idempotent", func(t *testing.T) {
		clock := NewClock()
		s := open(t, clock)

		desc := descriptor("UNRATE", "Unemployment Rate", "Labor Market", contracts.FrequencyMonthly)
		batch := contracts.SeriesBatch{
			Descriptor:   &desc,
			Observations: []contracts.Observation{obs("UNRATE", 0, f(3.7)), obs("UNRATE", 1, nil), obs("UNRATE", 2, f(3.9))},
			Metrics: []contracts.CalculatedMetric{
				metric("UNRATE", 0, f(3.7), nil),
				metric("UNRATE", 1, nil, nil),
				metric("UNRATE", 2, f(3.9), f(0.7071067811865476)),
			},
		}

		require.NoError(t, s.SaveSeries(ctx, batch))
		first, err := s.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{"UNRATE"}})
		require.NoError(t, err)

		clock.Advance(24 * time.Hour)
		require.NoError(t, s.SaveSeries(ctx, batch))
		second, err := s.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{"UNRATE"}})
		require.NoError(t, err)

		require.Len(t, second, 3)
		if diff := cmp.Diff(first, second, ignoreTimestamps); diff != "" {
			t.Fatalf("stored rows changed on re-save (-first +second):\n%s", diff)
		}
		if diff := cmp.Diff(batch.Metrics, second, ignoreTimestamps); diff != "" {
			t.Fatalf("stored rows differ from written rows (-want +got):\n%s", diff)
		}
		assert.True(t, first[0].CreatedAt.Equal(second[0].CreatedAt))
	})

	t.Run("metrics query filters", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		var observations []contracts.Observation
		var rows []contracts.CalculatedMetric
		for m := 0; m < 6; m++ {
			observations = append(observations, obs("UNRATE", m, f(float64(m))), obs("CPIAUCSL", m, f(float64(100+m))))
			rows = append(rows, metric("UNRATE", m, f(float64(m)), nil), metric("CPIAUCSL", m, f(float64(100+m)), nil))
		}
		require.NoError(t, s.UpsertObservations(ctx, observations))
		require.NoError(t, s.UpsertMetrics(ctx, rows))

		all, err := s.Metrics(ctx, store.MetricsQuery{})
		require.NoError(t, err)
		assert.Len(t, all, 12)
		assert.Equal(t, "CPIAUCSL", all[0].SeriesID, "ordered by series then date")

		got, err := s.Metrics(ctx, store.MetricsQuery{
			SeriesIDs: []string{"UNRATE"},
			From:      base.AddDate(0, 2, 0),
			To:        base.AddDate(0, 4, 0),
		})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 2.0, *got[0].Value)
		assert.Equal(t, 4.0, *got[2].Value)

		both, err := s.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{"UNRATE", "CPIAUCSL"}, From: base.AddDate(0, 5, 0)})
		require.NoError(t, err)
		assert.Len(t, both, 2)
	})

	t.Run("latest metrics skip trailing gaps", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		require.NoError(t, s.UpsertObservations(ctx, []contracts.Observation{
			obs("UNRATE", 0, f(3.7)), obs("UNRATE", 1, f(4.1)), obs("UNRATE", 2, nil), obs("CPIAUCSL", 0, f(310)),
		}))
		require.NoError(t, s.UpsertMetrics(ctx, []contracts.CalculatedMetric{
			metric("UNRATE", 0, f(3.7), f(-0.2)),
			metric("UNRATE", 1, f(4.1), f(1.8)),
			metric("UNRATE", 2, nil, nil),
			metric("CPIAUCSL", 0, f(310), f(0.6)),
		}))

		latest, err := s.LatestMetrics(ctx)
		require.NoError(t, err)
		require.Len(t, latest, 2, "ICSA has no metrics")

		assert.Equal(t, "CPIAUCSL", latest[0].Descriptor.ID)
		assert.Equal(t, "Inflation", latest[0].Descriptor.Category)
		assert.Equal(t, "UNRATE", latest[1].Descriptor.ID)
		assert.Equal(t, "Unemployment Rate", latest[1].Descriptor.Title)
		assert.Equal(t, contracts.FrequencyMonthly, latest[1].Descriptor.Frequency)
		assert.Equal(t, 4.1, *latest[1].Metric.Value)
		assert.Equal(t, 1.8, *latest[1].Metric.ZScore)
		assert.True(t, base.AddDate(0, 1, 0).Equal(latest[1].Metric.Date))
	})

	t.Run("rebuild clears rows but keeps descriptors", func(t *testing.T) {
		s := open(t, NewClock())
		seed(t, s)

		require.NoError(t, s.UpsertObservations(ctx, []contracts.Observation{obs("UNRATE", 0, f(3.7))}))
		require.NoError(t, s.UpsertMetrics(ctx, []contracts.CalculatedMetric{metric("UNRATE", 0, f(3.7), nil)}))

		require.NoError(t, s.Rebuild(ctx))

		o, err := s.Observations(ctx, "UNRATE")
		require.NoError(t, err)
		assert.Empty(t, o)

		m, err := s.Metrics(ctx, store.MetricsQuery{})
		require.NoError(t, err)
		assert.Empty(t, m)

		d, err := s.Descriptors(ctx)
		require.NoError(t, err)
		assert.Len(t, d, 3)
	})

	t.Run("run audit newest first", func(t *testing.T) {
		s := open(t, NewClock())
		started := time.Date(2026, 10, 1, 6, 0, 0, 0, time.UTC)

		for i, id := range []string{
			"8f6b2c1e-0000-4000-8000-000000000001",
			"8f6b2c1e-0000-4000-8000-000000000002",
		} {
			require.NoError(t, s.RecordRun(ctx, store.RunRecord{
				ID:           id,
				StartedAt:    started.Add(time.Duration(i) * 24 * time.Hour),
				FinishedAt:   started.Add(time.Duration(i)*24*time.Hour + time.Minute),
				Status:       store.RunPartial,
				SeriesTotal:  13,
				Succeeded:    12,
				Failed:       1,
				RegistryHash: "abc123",
				FailedSeries: "HOUST",
			}))
		}

		runs, err := s.Runs(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "8f6b2c1e-0000-4000-8000-000000000002", runs[0].ID)
		assert.Equal(t, store.RunPartial, runs[0].Status)
		assert.Equal(t, 12, runs[0].Succeeded)
		assert.Equal(t, "HOUST", runs[0].FailedSeries)
		assert.Equal(t, time.Minute, runs[0].FinishedAt.Sub(runs[0].StartedAt))

		one, err := s.Runs(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})
}
