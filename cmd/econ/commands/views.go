package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/views"
)

// viewsCmd represents the views command
var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Print dashboard views from stored metrics",
	Long: `Read-only views over the metrics store. No FRED key is needed.

Example:
  go run ./cmd/econ views snapshot
  go run ./cmd/econ views phase
  go run ./cmd/econ views yield-curve
  go run ./cmd/econ views wide --columns unemployment_rate,inflation_yoy --monthly
  go run ./cmd/econ views correlation UNRATE CPIAUCSL --metric yoy_change`,
}

var (
	viewsSnapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Latest reading of every indicator",
		RunE:  showSnapshot,
	}

	viewsPhaseCmd = &cobra.Command{
		Use:   "phase",
		Short: "Business cycle phase",
		RunE:  showPhase,
	}

	viewsYieldCurveCmd = &cobra.Command{
		Use:   "yield-curve",
		Short: "Yield curve recession signal",
		RunE:  showYieldCurve,
	}

	viewsWideCmd = &cobra.Command{
		Use:   "wide",
		Short: "Pivoted table of selected columns",
		RunE:  showWide,
	}

	viewsCorrelationCmd = &cobra.Command{
		Use:   "correlation [series_a] [series_b]",
		Short: "Pearson correlation of two series",
		Args:  cobra.ExactArgs(2),
		RunE:  showCorrelation,
	}
)

var (
	viewsJSON     bool
	wideColumns   string
	wideSince     string
	wideMonthly   bool
	wideFill      bool
	wideRequire   bool
	corrMetric    string
	corrNoMonthly bool
)

func init() {
	rootCmd.AddCommand(viewsCmd)
	viewsCmd.AddCommand(viewsSnapshotCmd, viewsPhaseCmd, viewsYieldCurveCmd, viewsWideCmd, viewsCorrelationCmd)

	viewsCmd.PersistentFlags().BoolVar(&viewsJSON, "json", false, "print JSON instead of a table")

	viewsWideCmd.Flags().StringVar(&wideColumns, "columns", "", "comma-separated column names (default all)")
	viewsWideCmd.Flags().StringVar(&wideSince, "since", "", "first date (YYYY-MM-DD)")
	viewsWideCmd.Flags().BoolVar(&wideMonthly, "monthly", false, "bucket rows by month")
	viewsWideCmd.Flags().BoolVar(&wideFill, "fill", false, "forward-fill columns with a fill window")
	viewsWideCmd.Flags().BoolVar(&wideRequire, "require", false, "drop rows missing a required column")

	viewsCorrelationCmd.Flags().StringVar(&corrMetric, "metric", string(contracts.FieldValue), "metric field to correlate")
	viewsCorrelationCmd.Flags().BoolVar(&corrNoMonthly, "daily", false, "pair raw dates instead of monthly buckets")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.views.Snapshot(ctx)
	if err != nil {
		return err
	}
	if viewsJSON {
		return printJSON(rows)
	}

	PrintHeader("Current Snapshot")
	widths := []int{16, 30, 10, 12, 9, 9, 7, 26}
	PrintTableHeader([]string{"CATEGORY", "INDICATOR", "DATE", "VALUE", "MOM %", "YOY %", "Z", "STATUS"}, widths)
	for _, r := range rows {
		PrintTableRow([]string{
			truncate(r.Category, 16),
			truncate(r.Title, 30),
			formatDate(r.Date),
			formatFloat(r.Value, 2),
			formatFloat(r.MoMChange, 2),
			formatFloat(r.YoYChange, 2),
			formatFloat(r.ZScore, 2),
			string(r.Status),
		}, widths)
	}
	return nil
}

func showPhase(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.views.CyclePhase(ctx)
	if err != nil {
		return err
	}
	if viewsJSON {
		return printJSON(report)
	}

	PrintHeader("Business Cycle Phase: " + strings.ToUpper(string(report.Phase)))
	PrintKeyValue("As of", formatDate(report.AsOf), 18)
	PrintKeyValue("GDP growth YoY", formatFloat(report.Indicators.GDPYoY, 2), 18)
	PrintKeyValue("Unemployment", formatFloat(report.Indicators.Unemployment, 2), 18)
	PrintKeyValue("Inflation YoY", formatFloat(report.Indicators.InflationYoY, 2), 18)
	PrintKeyValue("10Y-2Y spread", formatFloat(report.Indicators.Spread, 2), 18)
	return nil
}

func showYieldCurve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.views.YieldCurve(ctx)
	if err != nil {
		return err
	}
	if viewsJSON {
		return printJSON(report)
	}

	PrintHeader("Yield Curve: " + strings.ToUpper(string(report.Signal)))
	PrintKeyValue("Date", formatDate(report.Date), 12)
	PrintKeyValue("Spread", formatFloat(report.Spread, 2), 12)
	PrintKeyValue("3m average", formatFloat(report.Average, 2), 12)
	return nil
}

func showWide(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	opts := views.WideOptions{Monthly: wideMonthly, Fill: wideFill, Require: wideRequire}
	if wideSince != "" {
		since, err := contracts.ParseDate(wideSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = since
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var names []string
	for _, n := range strings.Split(wideColumns, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	table, err := a.views.Wide(ctx, names, opts)
	if err != nil {
		return err
	}
	if viewsJSON {
		return printJSON(table)
	}

	widths := []int{10}
	header := []string{"DATE"}
	for _, c := range table.Columns {
		header = append(header, c)
		widths = append(widths, max(len(c), 8))
	}
	PrintTableHeader(header, widths)
	for _, row := range table.Rows {
		values := []string{formatDate(row.Date)}
		for _, v := range row.Values {
			values = append(values, formatFloat(v, 2))
		}
		PrintTableRow(values, widths)
	}
	fmt.Printf("\n%d rows\n", len(table.Rows))
	return nil
}

func showCorrelation(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	field, err := contracts.ParseMetricField(corrMetric)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.views.Correlation(ctx, strings.ToUpper(args[0]), strings.ToUpper(args[1]), field, !corrNoMonthly)
	if err != nil {
		return err
	}
	if viewsJSON {
		return printJSON(out)
	}

	PrintHeader(fmt.Sprintf("Correlation %s vs %s (%s)", out.SeriesA, out.SeriesB, out.Metric))
	PrintKeyValue("Pairs", fmt.Sprintf("%d", out.Pairs), 12)
	PrintKeyValue("Monthly", fmt.Sprintf("%v", out.Monthly), 12)
	PrintKeyValue("Pearson r", formatFloat(out.Coefficient, 4), 12)
	if out.Coefficient == nil {
		PrintInfo(fmt.Sprintf("Fewer than %d overlapping points or constant input", views.MinCorrelationPairs))
	}
	return nil
}
