package contract

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level      string
	JSONFormat bool
}

// NewLogger creates a new hclog.Logger writing to stderr, so stdout stays free
// for command output and the MCP stdio transport.
func NewLogger(cfg LoggerConfig, name string) hclog.Logger {
	return NewLoggerTo(cfg, name, os.Stderr)
}

// NewLoggerTo creates a new hclog.Logger writing to w.
func NewLoggerTo(cfg LoggerConfig, name string, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Level:       parseLogLevel(cfg.Level),
		JSONFormat:  cfg.JSONFormat,
		DisableTime: !cfg.JSONFormat,
		Output:      w,
	})
}

// parseLogLevel converts a string level to hclog.Level, defaulting to INFO.
func parseLogLevel(levelStr string) hclog.Level {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
