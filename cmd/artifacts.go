package cmd

import (
	"fmt"

	"github.com/huangsam/stablelint/core/artifacts"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/spf13/cobra"
)

// newRetentionStore opens the configured artifact directory.
func newRetentionStore() *artifacts.RetentionStore {
	return artifacts.NewRetentionStore(cfg.ArtifactDir, artifacts.WithLogger(logger.Named("artifacts")))
}

// artifactsCmd focused on the analyzer artifact directory.
//
// Note: artifact subcommands never open the finding store.
var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Manage downloaded analyzer artifacts",
	Long: `Manage the directory of downloaded analyzer artifacts (plugins, engines, runtimes).

Every use of an artifact records its access time. Artifacts unused for longer than
--retention-days are deleted by cleanup, except the most recently used one and any
artifact still being downloaded.

Subcommands:
  touch   - Record that an artifact was used now
  cleanup - Delete artifacts past the retention period
  status  - List artifacts with size and last access

Examples:
  stablelint artifacts status
  stablelint artifacts cleanup --retention-days 14`,
}

// artifactsTouchCmd records artifact usage.
var artifactsTouchCmd = &cobra.Command{
	Use:     "touch <artifact>...",
	Short:   "Record that artifacts were used now",
	Args:    cobra.MinimumNArgs(1),
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		store := newRetentionStore()
		for _, name := range args {
			if err := store.Touch(name); err != nil {
				contract.LogFatal("Failed to touch artifact", err)
			}
		}
	},
}

// artifactsCleanupCmd runs one retention pass.
var artifactsCleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Delete artifacts unused for longer than the retention period",
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		report, err := newRetentionStore().RunCleanup(rootCtx, cfg.RetentionPeriod())
		if err != nil {
			contract.LogFatal("Failed to clean up artifacts", err)
		}
		for _, name := range report.Deleted {
			fmt.Printf("Deleted %s\n", name)
		}
		for _, name := range report.Failed {
			fmt.Printf("Failed to delete %s\n", name)
		}
		fmt.Printf("Scanned %d artifacts, deleted %d.\n", report.Scanned, len(report.Deleted))
	},
}

// artifactsStatusCmd lists the artifact directory.
var artifactsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "List artifacts with size and last access",
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := newRetentionStore().Status()
		if err != nil {
			contract.LogFatal("Failed to list artifacts", err)
		}
		if err := writer.WriteArtifacts(status, cfg); err != nil {
			contract.LogFatal("Failed to print artifacts", err)
		}
	},
}
