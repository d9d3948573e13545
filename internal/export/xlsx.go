package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// XLSXTarget writes one workbook with a sheet per table
type XLSXTarget struct {
	Path string
}

// Name implements Target
func (t XLSXTarget) Name() string { return "xlsx" }

// Write implements Target
func (t XLSXTarget) Write(_ context.Context, ds Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DashboardSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SnapshotSheet); err != nil {
		return err
	}

	if err := writeSheet(f, DashboardSheet, ds.Dashboard); err != nil {
		return err
	}
	if err := writeSheet(f, SnapshotSheet, ds.Snapshot); err != nil {
		return err
	}

	if dir := filepath.Dir(t.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(t.Path); err != nil {
		return fmt.Errorf("save %s: %w", t.Path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, table Table) error {
	header := make([]any, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, row := range table.Rows {
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			if v == nil {
				values[i] = ""
				continue
			}
			values[i] = v
		}
		if err := f.SetSheetRow(sheet, addr, &values); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}
