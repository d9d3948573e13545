package commands

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/RuizOsvaldo/economic-dashboard/internal/external/fred"
	"github.com/RuizOsvaldo/economic-dashboard/internal/monitoring"
	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store/postgres"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store/sqlite"
	"github.com/RuizOsvaldo/economic-dashboard/internal/views"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/config"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/database"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/httputil"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/redis"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    store.Store
	redis    *redis.Client
	registry *registry.Registry
	metrics  *monitoring.Metrics
	views    *views.Service
	pipeline *pipeline.Pipeline // nil unless requested
}

type appOptions struct {
	pipeline bool // build the FRED client and pipeline; requires FRED_API_KEY
}

// newApp loads config and wires store, cache, registry and views.
// Callers must Close the returned app.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if storeDriver != "" {
		cfg.Database.Driver = storeDriver
	}
	if registryFile != "" {
		cfg.Pipeline.RegistryFile = registryFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	a := &app{cfg: cfg, log: logger.New(cfg), metrics: monitoring.New()}

	a.registry, err = registry.Load(cfg.Pipeline.RegistryFile)
	if err != nil {
		return nil, err
	}

	a.store, err = openStore(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}

	a.redis, err = redis.New(cfg)
	if err != nil {
		// the cache is optional; views fall back to the store
		a.log.WithError(err).Warn("Redis unavailable, running without cache")
		a.redis = redis.Disabled()
	}

	a.views = views.NewService(a.store, a.registry, redis.NewCache(a.redis, "econ"), a.log)

	if opts.pipeline {
		if err := cfg.RequireFREDKey(); err != nil {
			a.Close()
			return nil, err
		}
		a.pipeline = pipeline.New(
			a.fredClient(),
			a.store,
			a.registry,
			pipeline.Settings{Workers: cfg.Pipeline.Workers, Start: cfg.FRED.StartDate},
			a.log,
			pipeline.WithMetrics(a.metrics),
			pipeline.WithInvalidator(a.views),
		)
	}

	a.log.WithFields(map[string]interface{}{
		"store":    cfg.Database.Driver,
		"series":   a.registry.Len(),
		"cache":    a.redis.Enabled(),
		"pipeline": opts.pipeline,
	}).Debug("Application wired")

	return a, nil
}

// fredClient builds the FRED client behind a local token bucket and, when
// Redis is on, the budget shared by every process using the same key
func (a *app) fredClient() *fred.Client {
	rpm := a.cfg.FRED.RequestsPerMinute
	httpClient := httputil.NewWithTimeout(a.cfg, a.log, a.cfg.FRED.Timeout).
		WithRetry(a.cfg.FRED.MaxRetries, time.Second).
		WithLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1))
	if a.redis.Enabled() {
		httpClient.WithLimiter(redis.NewRateLimiter(a.redis, "econ").Bind(redis.FREDRateLimit(rpm)))
	}
	return fred.NewClient(httpClient, a.cfg.FRED.APIKey, a.cfg.FRED.BaseURL, a.log)
}

// Close releases the store and cache connections
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close store")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// openStore connects the configured backend and migrates its schema
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case "postgres":
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		st := postgres.New(db, log)
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Database.Driver)
	}
}
