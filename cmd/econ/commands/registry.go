package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// registryCmd represents the registry command
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and sync the tracked series",
}

var (
	registryListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered series and their dashboard columns",
		RunE:  listRegistry,
	}

	registrySyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Refresh series metadata from FRED",
		RunE:  syncRegistry,
	}

	registryDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Print the active registry as YAML",
		RunE:  dumpRegistry,
	}
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registrySyncCmd)
	registryCmd.AddCommand(registryDumpCmd)
}

func listRegistry(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	column := map[string]string{}
	for _, b := range a.registry.Columns() {
		column[b.SeriesID] = b.Name
	}

	PrintHeader(fmt.Sprintf("Registry (%d series, hash %s)", a.registry.Len(), a.registry.Hash()))
	widths := []int{10, 34, 10, 22, 22}
	PrintTableHeader([]string{"ID", "TITLE", "FREQ", "CATEGORY", "COLUMN"}, widths)
	for _, d := range a.registry.Descriptors() {
		col := column[d.ID]
		if col == "" {
			col = "-"
		}
		PrintTableRow([]string{d.ID, truncate(d.Title, 34), string(d.Frequency), d.Category, col}, widths)
	}
	return nil
}

func syncRegistry(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{pipeline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	synced, failures, err := a.pipeline.SyncRegistry(ctx)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Synced %d descriptors", len(synced)))
	for _, f := range failures {
		PrintError(fmt.Sprintf("%s: %s", f.SeriesID, f.Error))
	}
	return nil
}

func dumpRegistry(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.registry.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
