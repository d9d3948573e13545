// Package export writes the dashboard table and the current snapshot to
// files and spreadsheets.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/views"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Worksheet and file names
const (
	DashboardSheet = "Dashboard Data"
	SnapshotSheet  = "Current Snapshot"
	DashboardFile  = "dashboard_data.csv"
	SnapshotFile   = "current_snapshot.csv"
)

// Table is a header plus rows of string, float64 or nil cells
type Table struct {
	Header []string
	Rows   [][]any
}

// Dataset is everything one export writes
type Dataset struct {
	Dashboard   Table
	Snapshot    Table
	GeneratedAt time.Time
}

// Source provides the views an export reads
type Source interface {
	Dashboard(ctx context.Context, since time.Time) (views.WideTable, error)
	Snapshot(ctx context.Context) ([]views.SnapshotRow, error)
}

// Target is one export destination
type Target interface {
	Name() string
	Write(ctx context.Context, ds Dataset) error
}

// Exporter builds the dataset once and hands it to every target
type Exporter struct {
	source Source
	logger *logger.Logger
	now    func() time.Time
}

// NewExporter creates an exporter
func NewExporter(source Source, log *logger.Logger) *Exporter {
	return &Exporter{source: source, logger: log.Module("export"), now: time.Now}
}

// Build reads the views into tables
func (e *Exporter) Build(ctx context.Context, since time.Time) (Dataset, error) {
	wide, err := e.source.Dashboard(ctx, since)
	if err != nil {
		return Dataset{}, fmt.Errorf("dashboard view: %w", err)
	}
	snapshot, err := e.source.Snapshot(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("snapshot view: %w", err)
	}
	return Dataset{
		Dashboard:   DashboardTable(wide),
		Snapshot:    SnapshotTable(snapshot),
		GeneratedAt: e.now().UTC(),
	}, nil
}

// Export writes to every target. A failing target does not stop the others.
func (e *Exporter) Export(ctx context.Context, since time.Time, targets ...Target) error {
	ds, err := e.Build(ctx, since)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range targets {
		log := e.logger.WithField("target", t.Name())
		if err := t.Write(ctx, ds); err != nil {
			log.WithError(err).Error("Export failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		log.WithFields(map[string]interface{}{
			"dashboard_rows": len(ds.Dashboard.Rows),
			"snapshot_rows":  len(ds.Snapshot.Rows),
		}).Info("Export written")
	}
	return errors.Join(errs...)
}

// DashboardTable lays out the wide view with a leading date column
func DashboardTable(w views.WideTable) Table {
	t := Table{Header: append([]string{"observation_date"}, w.Columns...)}
	for _, r := range w.Rows {
		row := make([]any, 0, len(r.Values)+1)
		row = append(row, contracts.FormatDate(r.Date))
		for _, v := range r.Values {
			row = append(row, cell(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// SnapshotTable lays out the snapshot with its status column
func SnapshotTable(rows []views.SnapshotRow) Table {
	t := Table{Header: []string{
		"series_id", "title", "category", "units", "observation_date",
		"value", "mom_change", "yoy_change", "z_score", "percentile_rank", "status",
	}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.SeriesID, r.Title, r.Category, r.Units, contracts.FormatDate(r.Date),
			cell(r.Value), cell(r.MoMChange), cell(r.YoYChange), cell(r.ZScore), cell(r.PercentileRank),
			string(r.Status),
		})
	}
	return t
}

func cell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// formatCell renders a cell for text targets; nil is empty
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
