package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// migrateCmd creates or upgrades the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and views",
	Long: `Creates the series_metadata, observations, calculated_metrics and
etl_runs tables plus the dashboard views. Safe to run repeatedly.

Example:
  go run ./cmd/econ migrate
  go run ./cmd/econ migrate --store sqlite`,
	RunE: runMigrate,
}

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the store connection",
	Long: `Connects to the configured store, runs a health check and prints the
connection pool statistics.

Example:
  go run ./cmd/econ test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(testDBCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	// newApp migrates on open
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.UpsertDescriptors(ctx, a.registry.Descriptors()); err != nil {
		return fmt.Errorf("seed series_metadata: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Schema ready (%s), %d series registered", a.cfg.Database.Driver, a.registry.Len()))
	return nil
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Store Connection Test ===")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return fmt.Errorf("❌ Failed to open store: %w", err)
	}
	defer a.Close()
	PrintSuccess(fmt.Sprintf("Store opened (driver: %s, env: %s)", a.cfg.Database.Driver, a.cfg.Env))

	status, err := a.store.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	PrintSuccess("Health Check Results:")
	PrintKeyValue("Healthy", fmt.Sprintf("%v", status.Healthy), 18)
	PrintKeyValue("Response Time", status.ResponseTime.String(), 18)
	PrintKeyValue("Timestamp", status.Timestamp.Format(time.RFC3339), 18)

	fmt.Println("\n📊 Connection Pool Statistics:")
	PrintKeyValue("Max Connections", fmt.Sprintf("%d", status.Stats.MaxConns), 18)
	PrintKeyValue("Total Connections", fmt.Sprintf("%d", status.Stats.TotalConns), 18)
	PrintKeyValue("Acquired", fmt.Sprintf("%d", status.Stats.AcquiredConns), 18)
	PrintKeyValue("Idle", fmt.Sprintf("%d", status.Stats.IdleConns), 18)
	PrintKeyValue("Acquire Count", fmt.Sprintf("%d", status.Stats.AcquireCount), 18)

	if a.redis.Enabled() {
		if err := a.redis.Ping(ctx); err != nil {
			PrintError("Redis ping failed: " + err.Error())
		} else {
			PrintSuccess("Redis ping successful")
		}
	}

	fmt.Println("\n✅ All tests passed!")
	return nil
}
