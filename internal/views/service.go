package views

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/redis"
)

// ErrUnknownColumn is returned for a wide-table column the registry does not define
var ErrUnknownColumn = errors.New("unknown column")

// cachePrefix scopes every key Invalidate clears
const cachePrefix = "views:"

// Source is the read side of the store the views need
type Source interface {
	Metrics(ctx context.Context, q store.MetricsQuery) ([]contracts.CalculatedMetric, error)
	LatestMetrics(ctx context.Context) ([]store.LatestMetric, error)
}

// Service computes views on demand. Results are cached in Redis when a cache
// is configured and concurrent identical requests share one computation.
type Service struct {
	source  Source
	columns registry.ColumnMap
	roles   registry.Roles
	cache   *redis.Cache
	logger  *logger.Logger
	group   singleflight.Group
}

// NewService creates a view service. cache may be nil.
func NewService(source Source, reg *registry.Registry, cache *redis.Cache, log *logger.Logger) *Service {
	return &Service{
		source:  source,
		columns: reg.Columns(),
		roles:   reg.Roles(),
		cache:   cache,
		logger:  log.Module("views"),
	}
}

// Snapshot returns the latest reading of every indicator
func (s *Service) Snapshot(ctx context.Context) ([]SnapshotRow, error) {
	return cached(ctx, s, redis.SnapshotKey(), redis.TTLViews, func(ctx context.Context) ([]SnapshotRow, error) {
		latest, err := s.source.LatestMetrics(ctx)
		if err != nil {
			return nil, fmt.Errorf("load latest metrics: %w", err)
		}
		return BuildSnapshot(latest), nil
	})
}

// Wide pivots the named columns (all registry columns when empty)
func (s *Service) Wide(ctx context.Context, names []string, opts WideOptions) (WideTable, error) {
	columns := s.columns
	if len(names) > 0 {
		var ok bool
		if columns, ok = s.columns.Select(names...); !ok {
			return WideTable{}, fmt.Errorf("%w: %v", ErrUnknownColumn, names)
		}
	}

	key := redis.WideKey(append(columns.Names(),
		contracts.FormatDate(opts.Since),
		strconv.FormatBool(opts.Monthly),
		strconv.FormatBool(opts.Fill),
		strconv.FormatBool(opts.Require),
	)...)

	return cached(ctx, s, key, redis.TTLViews, func(ctx context.Context) (WideTable, error) {
		metrics, err := s.source.Metrics(ctx, store.MetricsQuery{
			SeriesIDs: unique(columns.SeriesIDs()),
			From:      opts.Since,
		})
		if err != nil {
			return WideTable{}, fmt.Errorf("load metrics: %w", err)
		}
		return Pivot(columns, metrics, opts), nil
	})
}

// Dashboard is the monthly export table: dashboard columns that the registry
// defines, forward-filled and filtered on required columns
func (s *Service) Dashboard(ctx context.Context, since time.Time) (WideTable, error) {
	var names []string
	for _, n := range registry.DashboardColumns {
		if s.columns.Index(n) >= 0 {
			names = append(names, n)
		}
	}
	return s.Wide(ctx, names, DashboardOptions(since))
}

// SeriesMetrics returns one series' metric rows between from and to (zero = open)
func (s *Service) SeriesMetrics(ctx context.Context, seriesID string, from, to time.Time) ([]contracts.CalculatedMetric, error) {
	key := redis.SeriesMetricsKey(seriesID, contracts.FormatDate(from), contracts.FormatDate(to))
	return cached(ctx, s, key, redis.TTLViews, func(ctx context.Context) ([]contracts.CalculatedMetric, error) {
		return s.source.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{seriesID}, From: from, To: to})
	})
}

// Correlation correlates field between two series
func (s *Service) Correlation(ctx context.Context, a, b string, field contracts.MetricField, monthly bool) (Correlation, error) {
	key := redis.CorrelationKey(a, b, string(field), monthly)
	return cached(ctx, s, key, redis.TTLViews, func(ctx context.Context) (Correlation, error) {
		metrics, err := s.source.Metrics(ctx, store.MetricsQuery{SeriesIDs: []string{a, b}})
		if err != nil {
			return Correlation{}, fmt.Errorf("load metrics: %w", err)
		}

		var xa, xb []contracts.CalculatedMetric
		for _, m := range metrics {
			switch m.SeriesID {
			case a:
				xa = append(xa, m)
			case b:
				xb = append(xb, m)
			}
		}

		out := Correlate(xa, xb, field, monthly)
		out.SeriesA, out.SeriesB = a, b
		return out, nil
	})
}

// PhaseReport is the classified business-cycle phase
type PhaseReport struct {
	Phase      Phase      `json:"phase"`
	AsOf       time.Time  `json:"as_of"`
	Indicators Indicators `json:"indicators"`
}

// CyclePhase classifies the latest macro readings
func (s *Service) CyclePhase(ctx context.Context) (PhaseReport, error) {
	return cached(ctx, s, redis.CyclePhaseKey(), redis.TTLViews, func(ctx context.Context) (PhaseReport, error) {
		latest, err := s.latestByID(ctx)
		if err != nil {
			return PhaseReport{}, err
		}

		var report PhaseReport
		pick := func(id string, field contracts.MetricField) *float64 {
			m, ok := latest[id]
			if !ok {
				return nil
			}
			if m.Date.After(report.AsOf) {
				report.AsOf = m.Date
			}
			return m.Field(field)
		}

		report.Indicators = Indicators{
			GDPYoY:       pick(s.roles.GDP, contracts.FieldYoYChange),
			Unemployment: pick(s.roles.Unemployment, contracts.FieldValue),
			InflationYoY: pick(s.roles.Inflation, contracts.FieldYoYChange),
			Spread:       pick(s.roles.YieldSpread, contracts.FieldValue),
		}
		report.Phase = Classify(report.Indicators)
		return report, nil
	})
}

// YieldCurveReport is the latest spread reading and its signal
type YieldCurveReport struct {
	Signal  CurveSignal `json:"signal"`
	Date    time.Time   `json:"observation_date"`
	Spread  *float64    `json:"spread"`
	Average *float64    `json:"rolling_avg_3m"`
}

// YieldCurve reads the recession signal off the spread series
func (s *Service) YieldCurve(ctx context.Context) (YieldCurveReport, error) {
	return cached(ctx, s, redis.YieldCurveKey(), redis.TTLViews, func(ctx context.Context) (YieldCurveReport, error) {
		latest, err := s.latestByID(ctx)
		if err != nil {
			return YieldCurveReport{}, err
		}

		m, ok := latest[s.roles.YieldSpread]
		if !ok {
			return YieldCurveReport{Signal: CurveInsufficientData}, nil
		}
		return YieldCurveReport{
			Signal:  YieldCurveSignal(m.Value, m.RollingAvg3),
			Date:    m.Date,
			Spread:  m.Value,
			Average: m.RollingAvg3,
		}, nil
	})
}

// Invalidate drops every cached view. Called after a pipeline run.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	n, err := s.cache.DeletePrefix(ctx, cachePrefix)
	if err != nil {
		return fmt.Errorf("invalidate views: %w", err)
	}
	s.logger.WithField("keys", n).Debug("View cache invalidated")
	return nil
}

func (s *Service) latestByID(ctx context.Context) (map[string]contracts.CalculatedMetric, error) {
	latest, err := s.source.LatestMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest metrics: %w", err)
	}
	out := make(map[string]contracts.CalculatedMetric, len(latest))
	for _, l := range latest {
		out[l.Descriptor.ID] = l.Metric
	}
	return out, nil
}

// cached serves key from Redis, or computes it once across concurrent callers
// and stores the result. Cache failures only cost a recomputation.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, key, &out)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("View cache read failed")
		} else if hit {
			return out, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, res, ttl); err != nil {
				s.logger.WithError(err).WithField("key", key).Warn("View cache write failed")
			}
		}
		return res, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
