package export

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsTarget clears and rewrites the dashboard worksheets of a spreadsheet
type SheetsTarget struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsService authenticates with a service-account JSON file
func NewSheetsService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*sheets.Service, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(credentials),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// NewSheetsTarget writes to spreadsheetID through svc
func NewSheetsTarget(svc *sheets.Service, spreadsheetID string) *SheetsTarget {
	return &SheetsTarget{service: svc, spreadsheetID: spreadsheetID}
}

// Name implements Target
func (t *SheetsTarget) Name() string { return "sheets" }

// Write implements Target
func (t *SheetsTarget) Write(ctx context.Context, ds Dataset) error {
	if t.spreadsheetID == "" {
		return fmt.Errorf("spreadsheet id is required")
	}

	existing, err := t.sheetTitles(ctx)
	if err != nil {
		return err
	}

	for _, ws := range []struct {
		title      string
		table      Table
		rows, cols int64
	}{
		{DashboardSheet, ds.Dashboard, 1000, 20},
		{SnapshotSheet, ds.Snapshot, 50, 15},
	} {
		if !existing[ws.title] {
			if err := t.addSheet(ctx, ws.title, ws.rows, ws.cols); err != nil {
				return err
			}
		}
		if err := t.replace(ctx, ws.title, ws.table); err != nil {
			return err
		}
	}
	return nil
}

func (t *SheetsTarget) sheetTitles(ctx context.Context) (map[string]bool, error) {
	ss, err := t.service.Spreadsheets.Get(t.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make(map[string]bool, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = true
		}
	}
	return titles, nil
}

func (t *SheetsTarget) addSheet(ctx context.Context, title string, rows, cols int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title:          title,
					GridProperties: &sheets.GridProperties{RowCount: rows, ColumnCount: cols},
				},
			},
		}},
	}
	if _, err := t.service.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add worksheet %q: %w", title, err)
	}
	return nil
}

// replace clears the worksheet then writes header and rows from A1
func (t *SheetsTarget) replace(ctx context.Context, title string, table Table) error {
	if _, err := t.service.Spreadsheets.Values.Clear(t.spreadsheetID, title, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %q: %w", title, err)
	}

	values := make([][]interface{}, 0, len(table.Rows)+1)
	header := make([]interface{}, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range table.Rows {
		out := make([]interface{}, len(row))
		for i, v := range row {
			if v == nil {
				out[i] = ""
				continue
			}
			out[i] = v
		}
		values = append(values, out)
	}

	_, err := t.service.Spreadsheets.Values.Update(t.spreadsheetID, title+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %q: %w", title, err)
	}
	return nil
}
