package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/core"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/internal/iocache"
	"github.com/huangsam/stablelint/internal/outwriter"
	"github.com/huangsam/stablelint/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// logger is the process-wide logger, configured during setup.
var logger = hclog.NewNullLogger()

// writer renders command results in the configured output mode.
var writer = outwriter.NewOutWriter()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "stablelint",
	Short: "Keep static analysis findings stable across edits and branches.",
	Long: `Stablelint tracks the findings of a static analyzer across re-analyses,
so each issue keeps its identity and introduction date while the code around it moves.
It also elects the server branch closest to your checkout and keeps the analyzer
artifact directory tidy.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set environment variable prefix
	viper.SetEnvPrefix("STABLELINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("main-branch", schema.DefaultMainBranch)
	viper.SetDefault("git-timeout", contract.DefaultGitTimeout.String())
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("cache-capacity", contract.DefaultCacheCapacity)
	viper.SetDefault("retention-days", contract.DefaultRetentionDays)
	viper.SetDefault("watch-debounce", contract.DefaultWatchDebounce.String())
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("color", "yes")
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".stablelint") // Name of config file (without extension)
		viper.SetConfigType("yaml")        // We'll use YAML format
		viper.AddConfigPath(".")           // Look in the current directory
		viper.AddConfigPath("$HOME")       // Look in the home directory
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// configSetup resolves and validates the configuration without touching the store.
func configSetup(ctx context.Context, args []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	if len(args) == 1 {
		input.RepoPathStr = args[0]
	} else {
		input.RepoPathStr = "."
	}

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(ctx, cfg, input); err != nil {
		return err
	}

	color.NoColor = !cfg.UseColors
	logger = contract.NewLogger(cfg.Logger, "stablelint")
	return nil
}

// sharedSetup validates the configuration and opens the finding store.
func sharedSetup(ctx context.Context, _ *cobra.Command, args []string) error {
	if err := configSetup(ctx, args); err != nil {
		return err
	}

	// 5. Initialize persistence layer with validated config
	if err := iocache.InitStores(cfg.StoreBackend, cfg.StoreDBConnect, logger.Named("store")); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, _ []string) error {
	// Positional arguments belong to the subcommands; the repository comes from --repo.
	return sharedSetup(rootCtx, cmd, repoArgs())
}

// configSetupWrapper wraps configSetup for commands that never open the store.
func configSetupWrapper(_ *cobra.Command, _ []string) error {
	return configSetup(rootCtx, repoArgs())
}

// repoArgs returns the repository path given with --repo as positional input.
func repoArgs() []string {
	if repo := viper.GetString("repo"); repo != "" {
		return []string{repo}
	}
	return nil
}

// newEngine builds the engine over the initialized finding store.
func newEngine() (*core.Engine, error) {
	return core.NewEngine(cfg, iocache.Manager, logger)
}

// withEngine runs fn against a fresh engine and flushes the working set afterwards.
func withEngine(fn func(*core.Engine) error) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	runErr := fn(engine)
	if closeErr := engine.Close(); closeErr != nil {
		contract.LogWarn("Failed to flush finding cache", closeErr)
	}
	return runErr
}

// Execute runs the root command.
func Execute() error {
	defer iocache.CloseStores()
	return rootCmd.Execute()
}
