package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	registryFile string
	storeDriver  string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "econ",
	Short: "Economic indicator ETL and dashboard",
	Long: `Economic Dashboard CLI

Pulls macroeconomic series from FRED, stores raw observations,
derives change and distribution metrics, and serves dashboard views.

Usage:
  go run ./cmd/econ [command]

Examples:
  go run ./cmd/econ migrate
  go run ./cmd/econ pipeline run
  go run ./cmd/econ views snapshot
  go run ./cmd/econ export csv
  go run ./cmd/econ api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryFile, "registry", "", "YAML registry file (default is REGISTRY_FILE or the built-in list)")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "store driver override (postgres|sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
