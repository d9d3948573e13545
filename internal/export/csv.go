package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSVTarget writes dashboard_data.csv and current_snapshot.csv into Dir
type CSVTarget struct {
	Dir string
}

// Name implements Target
func (t CSVTarget) Name() string { return "csv" }

// Write implements Target
func (t CSVTarget) Write(_ context.Context, ds Dataset) error {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", t.Dir, err)
	}
	if err := writeCSV(filepath.Join(t.Dir, DashboardFile), ds.Dashboard); err != nil {
		return err
	}
	return writeCSV(filepath.Join(t.Dir, SnapshotFile), ds.Snapshot)
}

func writeCSV(path string, table Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(table.Header); err != nil {
		return err
	}
	record := make([]string, len(table.Header))
	for _, row := range table.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := w.Write(record[:len(row)]); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
