package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/internal/iocache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeCmd focused on the persistent finding store.
//
// Note: clear and migrate use configSetup instead of sharedSetup so they work
// on a store that is missing, broken or not yet migrated.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the persistent finding store",
	Long: `Manage the store that keeps tracked findings between runs.

Supported backends: SQLite (default), MySQL, PostgreSQL, Badger, or None (in-memory)

Subcommands:
  status  - Show store statistics and connection info
  clear   - Remove all stored findings
  migrate - Run database schema migrations

Examples:
  # Check store status
  stablelint store status

  # Clear a MySQL store (set connection string via env variable)
  STABLELINT_STORE_BACKEND=mysql STABLELINT_STORE_DB_CONNECT="..." stablelint store clear`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display store statistics and connection details",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetFindingStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		if err := writer.WriteStoreStatus(status, cfg); err != nil {
			contract.LogFatal("Failed to print store status", err)
		}
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored findings",
	Long: `Delete every stored finding from the configured backend.

For SQLite: Deletes the database file
For Badger: Deletes the database directory
For MySQL/PostgreSQL: Drops the finding table`,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearStore(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		fmt.Println("Store cleared successfully.")
	},
}

// storeMigrateCmd runs schema migrations on SQL backends.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Apply or roll back the finding store schema on SQL backends.

Examples:
  # Migrate to the latest version
  stablelint store migrate

  # Roll back everything
  stablelint store migrate --target-version 0`,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateStore(cfg.StoreBackend, cfg.StoreDBConnect, targetVersion, os.Stdout); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
