package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/export"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:       "export [csv|xlsx|sheets]...",
	Short:     "Write the dashboard table and snapshot",
	ValidArgs: []string{"csv", "xlsx", "sheets"},
	Args:      cobra.OnlyValidArgs,
	Long: `Writes the monthly dashboard table and the current snapshot to one or
more targets. With no target, CSV files are written to EXPORT_DIR.

Targets:
  csv     - dashboard_data.csv and current_snapshot.csv
  xlsx    - one workbook with both sheets
  sheets  - Google Sheets (GOOGLE_SHEET_ID, GOOGLE_CREDENTIALS_FILE)

Example:
  go run ./cmd/econ export
  go run ./cmd/econ export csv xlsx --since 2018-01-01
  go run ./cmd/econ export sheets`,
	RunE: runExport,
}

var (
	exportSince string
	exportDir   string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportSince, "since", "", "first dashboard month (YYYY-MM-DD, default EXPORT_SINCE)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default EXPORT_DIR)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	since := a.cfg.Export.Since
	if exportSince != "" {
		if since, err = contracts.ParseDate(exportSince); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
	}
	if exportDir != "" {
		a.cfg.Export.OutputDir = exportDir
	}
	if len(args) == 0 {
		args = []string{"csv"}
	}

	targets, err := exportTargets(ctx, a, args)
	if err != nil {
		return err
	}

	if err := export.NewExporter(a.views, a.log).Export(ctx, since, targets...); err != nil {
		return err
	}
	for _, t := range targets {
		PrintSuccess("Exported to " + t.Name())
	}
	return nil
}

// exportTargets builds the named targets from config
func exportTargets(ctx context.Context, a *app, names []string) ([]export.Target, error) {
	targets := make([]export.Target, 0, len(names))
	for _, name := range names {
		switch name {
		case "csv":
			targets = append(targets, export.CSVTarget{Dir: a.cfg.Export.OutputDir})
		case "xlsx":
			targets = append(targets, export.XLSXTarget{Path: filepath.Join(a.cfg.Export.OutputDir, "economic_dashboard.xlsx")})
		case "sheets":
			if a.cfg.Export.SheetID == "" {
				return nil, fmt.Errorf("GOOGLE_SHEET_ID is required for the sheets target")
			}
			svc, err := export.NewSheetsService(ctx, a.cfg.Export.CredentialsFile)
			if err != nil {
				return nil, err
			}
			targets = append(targets, export.NewSheetsTarget(svc, a.cfg.Export.SheetID))
		default:
			return nil, fmt.Errorf("unknown export target %q", name)
		}
	}
	return targets, nil
}
