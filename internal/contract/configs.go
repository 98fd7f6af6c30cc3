package contract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/stablelint/schema"
)

// Default values for configuration.
const (
	DefaultGitTimeout    = 5 * time.Second
	DefaultCacheCapacity = 10_000
	DefaultRetentionDays = 30
	DefaultWatchDebounce = 500 * time.Millisecond
	DefaultLogLevel      = "INFO"
)

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	RepoPath   string
	Module     string
	Branches   []string
	MainBranch string
	GitTimeout time.Duration

	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext
	CacheCapacity  int

	ArtifactDir   string
	RetentionDays int

	WatchDebounce time.Duration

	Logger LoggerConfig
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct; validator checks the tagged constraints.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoPathStr string

	Module     string `mapstructure:"module"`
	Branches   string `mapstructure:"branches"`
	MainBranch string `mapstructure:"main-branch"`
	GitTimeout string `mapstructure:"git-timeout" validate:"required"`

	Output     string `mapstructure:"output" validate:"oneof=text csv json parquet"`
	OutputFile string `mapstructure:"output-file"`
	Width      int    `mapstructure:"width" validate:"gte=0"`
	Color      string `mapstructure:"color"`

	StoreBackend   string `mapstructure:"store-backend" validate:"oneof=sqlite mysql postgresql badger none"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	CacheCapacity  int    `mapstructure:"cache-capacity" validate:"gte=1"`

	ArtifactDir   string `mapstructure:"artifact-dir"`
	RetentionDays int    `mapstructure:"retention-days" validate:"gte=1"`

	WatchDebounce string `mapstructure:"watch-debounce"`

	LogLevel string `mapstructure:"log-level" validate:"omitempty,oneof=TRACE DEBUG INFO WARN ERROR"`
	LogJSON  bool   `mapstructure:"log-json"`
}

// inputValidate checks ConfigRawInput tags and reports fields by their flag names.
var inputValidate = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Branches != nil {
		clone.Branches = make([]string, len(c.Branches))
		copy(clone.Branches, c.Branches)
	}
	return &clone
}

// Candidates returns the configured server branch set.
func (c *Config) Candidates() schema.BranchCandidates {
	return schema.NewBranchCandidates(c.Branches, c.MainBranch)
}

// RetentionPeriod returns the artifact retention as a duration.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, input *ConfigRawInput) error {
	input.LogLevel = strings.ToUpper(input.LogLevel)
	input.Output = strings.ToLower(input.Output)
	input.StoreBackend = strings.ToLower(input.StoreBackend)
	if err := validateTaggedInputs(input); err != nil {
		return err
	}
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := resolveRepoPath(ctx, cfg, input); err != nil {
		return err
	}
	return nil
}

// validateTaggedInputs runs struct-level validation and turns the first
// failure into a readable message.
func validateTaggedInputs(input *ConfigRawInput) error {
	err := inputValidate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "gte":
		return fmt.Errorf("%s must be at least %s (received %v)", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Errorf("invalid %s '%v'. must be one of: %s", fe.Field(), fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	default:
		return fmt.Errorf("invalid %s: failed %q constraint", fe.Field(), fe.Tag())
	}
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.BadgerBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the finding store configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.StoreBackend = schema.DatabaseBackend(input.StoreBackend)
	if _, ok := schema.ValidStoreBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, badger, none", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	return ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect)
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Module = strings.TrimSpace(input.Module)
	cfg.MainBranch = strings.TrimSpace(input.MainBranch)
	if cfg.MainBranch == "" {
		cfg.MainBranch = schema.DefaultMainBranch
	}
	cfg.Branches = nil
	for p := range strings.SplitSeq(input.Branches, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cfg.Branches = append(cfg.Branches, trimmed)
		}
	}

	timeout, err := time.ParseDuration(input.GitTimeout)
	if err != nil || timeout <= 0 {
		return fmt.Errorf("git-timeout must be a positive duration such as 5s (received %q)", input.GitTimeout)
	}
	cfg.GitTimeout = timeout

	cfg.WatchDebounce = DefaultWatchDebounce
	if input.WatchDebounce != "" {
		d, err := time.ParseDuration(input.WatchDebounce)
		if err != nil || d < 0 {
			return fmt.Errorf("watch-debounce must be a non-negative duration (received %q)", input.WatchDebounce)
		}
		cfg.WatchDebounce = d
	}

	cfg.Output = schema.OutputMode(input.Output)
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.CacheCapacity = input.CacheCapacity
	cfg.RetentionDays = input.RetentionDays
	cfg.ArtifactDir = input.ArtifactDir
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = GetArtifactDir()
	}

	cfg.Logger = LoggerConfig{Level: input.LogLevel, JSONFormat: input.LogJSON}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = DefaultLogLevel
	}
	return nil
}

// resolveRepoPath resolves the Git repository root and the module name.
func resolveRepoPath(ctx context.Context, cfg *Config, input *ConfigRawInput) error {
	searchPath := input.RepoPathStr
	if searchPath == "" {
		searchPath = "."
	}
	absSearchPath, err := filepath.Abs(searchPath)
	if err != nil {
		return err
	}
	absSearchPath = filepath.Clean(absSearchPath)

	gitContextPath := absSearchPath
	if info, statErr := os.Stat(absSearchPath); statErr == nil && !info.IsDir() {
		gitContextPath = filepath.Dir(absSearchPath)
	}

	root, err := RepoRoot(ctx, gitContextPath, cfg.GitTimeout)
	if err != nil {
		// Outside a repository the commands that need one report it themselves.
		root = gitContextPath
	}
	cfg.RepoPath = root
	if cfg.Module == "" {
		cfg.Module = filepath.Base(root)
	}
	return nil
}
