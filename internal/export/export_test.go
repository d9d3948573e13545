package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/views"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

type fakeSource struct {
	wide     views.WideTable
	snapshot []views.SnapshotRow
	err      error
}

func (s fakeSource) Dashboard(context.Context, time.Time) (views.WideTable, error) {
	return s.wide, s.err
}

func (s fakeSource) Snapshot(context.Context) ([]views.SnapshotRow, error) {
	return s.snapshot, s.err
}

func sample() fakeSource {
	return fakeSource{
		wide: views.WideTable{
			Columns: []string{"gdp_growth_yoy", "unemployment_rate"},
			Rows: []views.WideRow{
				{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Values: []*float64{contracts.Float(2.9), contracts.Float(3.7)}},
				{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Values: []*float64{nil, contracts.Float(3.9)}},
			},
		},
		snapshot: []views.SnapshotRow{{
			SeriesID: "UNRATE", Title: "Unemployment Rate", Category: "Labor Market", Units: "Percent",
			Date:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			Value: contracts.Float(3.9), ZScore: contracts.Float(-0.6), Status: views.StatusBelow,
		}},
	}
}

func TestDashboardTable(t *testing.T) {
	table := DashboardTable(sample().wide)

	assert.Equal(t, []string{"observation_date", "gdp_growth_yoy", "unemployment_rate"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{"2024-02-01", nil, 3.9}, table.Rows[1])
}

func TestCSVTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	exp := NewExporter(sample(), logger.Nop())

	require.NoError(t, exp.Export(context.Background(), time.Time{}, CSVTarget{Dir: dir}))

	records := readCSV(t, filepath.Join(dir, DashboardFile))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2024-01-01", "2.9", "3.7"}, records[1])
	assert.Equal(t, []string{"2024-02-01", "", "3.9"}, records[2], "null renders as an empty cell")

	snapshot := readCSV(t, filepath.Join(dir, SnapshotFile))
	require.Len(t, snapshot, 2)
	assert.Equal(t, "status", snapshot[0][10])
	assert.Equal(t, "below normal", snapshot[1][10])
	assert.Equal(t, "", snapshot[1][6], "mom_change is null")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestXLSXTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.xlsx")
	require.NoError(t, NewExporter(sample(), logger.Nop()).Export(context.Background(), time.Time{}, XLSXTarget{Path: path}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DashboardSheet, SnapshotSheet}, f.GetSheetList())

	rows, err := f.GetRows(DashboardSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "observation_date", rows[0][0])
	assert.Equal(t, "2.9", rows[1][1])

	snap, err := f.GetRows(SnapshotSheet)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "UNRATE", snap[1][0])
}

func TestExport_SourceError(t *testing.T) {
	src := sample()
	src.err = errors.New("store down")

	err := NewExporter(src, logger.Nop()).Export(context.Background(), time.Time{}, CSVTarget{Dir: t.TempDir()})
	assert.ErrorIs(t, err, src.err)
}

type failingTarget struct{}

func (failingTarget) Name() string                         { return "broken" }
func (failingTarget) Write(context.Context, Dataset) error { return errors.New("quota") }

func TestExport_TargetFailureDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	err := NewExporter(sample(), logger.Nop()).Export(context.Background(), time.Time{}, failingTarget{}, CSVTarget{Dir: dir})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: quota")
	assert.FileExists(t, filepath.Join(dir, DashboardFile))
}

// sheetsAPI records calls made against a fake Sheets endpoint
type sheetsAPI struct {
	mu      sync.Mutex
	calls   []string
	updates map[string]sheets.ValueRange
}

func (a *sheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-123")
	a.calls = append(a.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Dashboard Data"}}]}`))
	case r.Method == http.MethodPut:
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.updates[path] = vr
		_, _ = w.Write([]byte(`{}`))
	default:
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123"}`))
	}
}

func TestSheetsTarget(t *testing.T) {
	api := &sheetsAPI{updates: map[string]sheets.ValueRange{}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	err = NewExporter(sample(), logger.Nop()).Export(context.Background(), time.Time{}, NewSheetsTarget(svc, "sheet-123"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET ",
		"POST /values/Dashboard Data:clear",
		"PUT /values/Dashboard Data!A1",
		"POST :batchUpdate",
		"POST /values/Current Snapshot:clear",
		"PUT /values/Current Snapshot!A1",
	}, api.calls, "only the missing worksheet is added")

	dashboard := api.updates["/values/Dashboard Data!A1"]
	require.Len(t, dashboard.Values, 3)
	assert.Equal(t, "observation_date", dashboard.Values[0][0])
	assert.Equal(t, 2.9, dashboard.Values[1][1])
	assert.Equal(t, "", dashboard.Values[2][1])
}

func TestSheetsTarget_RequiresID(t *testing.T) {
	err := NewSheetsTarget(nil, "").Write(context.Background(), Dataset{})
	assert.Error(t, err)
}
