// Package cmd defines the command-line interface for stablelint.
package cmd

import (
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the findings subcommands to the parent findings command
	findingsCmd.AddCommand(findingsShowCmd)
	findingsCmd.AddCommand(findingsExportCmd)
	findingsCmd.AddCommand(findingsImportCmd)
	findingsCmd.AddCommand(findingsClearCmd)

	// Add the branch subcommands to the parent branch command
	branchCmd.AddCommand(branchResolveCmd)
	branchCmd.AddCommand(branchWatchCmd)

	// Add the artifacts subcommands to the parent artifacts command
	artifactsCmd.AddCommand(artifactsTouchCmd)
	artifactsCmd.AddCommand(artifactsCleanupCmd)
	artifactsCmd.AddCommand(artifactsStatusCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("repo", "", "Path inside the Git repository to work on (default: current directory)")
	rootCmd.PersistentFlags().String("module", "", "Module name used to key branch resolution (default: repository directory name)")
	rootCmd.PersistentFlags().String("branches", "", "Comma-separated list of server branch names")
	rootCmd.PersistentFlags().String("main-branch", schema.DefaultMainBranch, "Main server branch, preferred on ties")
	rootCmd.PersistentFlags().String("git-timeout", contract.DefaultGitTimeout.String(), "Timeout for each Git invocation")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Finding store backend: sqlite or mysql or postgresql or badger or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql, or file/directory for sqlite/badger")
	rootCmd.PersistentFlags().Int("cache-capacity", contract.DefaultCacheCapacity, "Number of files whose findings are kept in memory")
	rootCmd.PersistentFlags().String("artifact-dir", "", "Directory of downloaded analyzer artifacts (default: ~/.stablelint/artifacts)")
	rootCmd.PersistentFlags().Int("retention-days", contract.DefaultRetentionDays, "Days an unused artifact is kept")
	rootCmd.PersistentFlags().String("watch-debounce", contract.DefaultWatchDebounce.String(), "Quiet period before reacting to ref changes")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: TRACE or DEBUG or INFO or WARN or ERROR")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of trackCmd to Viper
	trackCmd.Flags().String("file", "", "File path relative to the repository root")
	trackCmd.Flags().String("raw", "-", "JSON file with the raw findings of the file (- for stdin)")
	trackCmd.Flags().String("content", "", "File holding the analyzed content (default: read the file from the repository)")
	trackCmd.Flags().String("server", "", "JSON file with the server findings to correlate with")
	if err := viper.BindPFlags(trackCmd.Flags()); err != nil {
		contract.LogFatal("Error binding track flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
