package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store/postgres"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store/storetest"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/config"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/database"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

const reset = `
DROP VIEW IF EXISTS current_snapshot_view;
DROP VIEW IF EXISTS economic_dashboard_view;
DROP TABLE IF EXISTS calculated_metrics, observations, series_metadata, etl_runs;
`

// openStore resets the disposable database named by DATABASE_URL
func openStore(t *testing.T, opts ...postgres.Option) (*postgres.Store, *database.DB) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	cfg := &config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}}

	ctx := context.Background()
	db, err := database.New(cfg)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, reset)
	require.NoError(t, err)

	s := postgres.New(db, logger.Nop(), opts...)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s, db
}

func TestStoreConformance(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) store.Store {
		s, _ := openStore(t, postgres.WithClock(clock.Now))
		return s
	})
}

func TestSnapshotView_OrderedByCategoryThenTitle(t *testing.T) {
	s, db := openStore(t)
	ctx := context.Background()

	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []contracts.SeriesDescriptor{
		{ID: "CPIAUCSL", Title: "Consumer Price Index", Frequency: contracts.FrequencyMonthly, Category: "Inflation"},
		{ID: "GDP", Title: "Real GDP", Frequency: contracts.FrequencyQuarterly, Category: "Economic Growth"},
		{ID: "T10Y2Y", Title: "10Y-2Y Treasury Spread", Frequency: contracts.FrequencyDaily, Category: "Interest Rates"},
	} {
		v := contracts.Float(1)
		require.NoError(t, s.SaveSeries(ctx, contracts.SeriesBatch{
			Descriptor:   &d,
			Observations: []contracts.Observation{{SeriesID: d.ID, Date: date, Value: v}},
			Metrics:      []contracts.CalculatedMetric{{SeriesID: d.ID, Date: date, Value: v}},
		}))
	}

	rows, err := db.Pool.Query(ctx, "SELECT series_id FROM current_snapshot_view")
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"GDP", "CPIAUCSL", "T10Y2Y"}, ids)
}
