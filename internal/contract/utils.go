package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/stablelint/schema"
)

// Color variables for console output.
var (
	BlockerColor  = color.New(color.FgRed, color.Bold)     // BlockerColor represents standard danger.
	MajorColor    = color.New(color.FgMagenta, color.Bold) // MajorColor represents strong, distinct warning.
	MinorColor    = color.New(color.FgYellow)              // MinorColor represents standard caution, not bold.
	InfoColor     = color.New(color.FgCyan)                // InfoColor represents informational / low-priority signal.
	ResolvedColor = color.New(color.FgGreen)               // ResolvedColor marks findings resolved on the server.
)

// GetColorSeverity returns a colored severity label for console output (table).
func GetColorSeverity(sev schema.Severity) string {
	text := string(sev)
	if text == "" {
		text = "-"
	}
	switch sev {
	case schema.BlockerSeverity, schema.CriticalSeverity:
		return BlockerColor.Sprint(text)
	case schema.MajorSeverity:
		return MajorColor.Sprint(text)
	case schema.MinorSeverity:
		return MinorColor.Sprint(text)
	default:
		return InfoColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetStoreDBFilePath returns the path to the SQLite DB file for finding storage.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".stablelint_findings.db"
	}
	return filepath.Join(homeDir, ".stablelint_findings.db")
}

// GetBadgerDir returns the directory for the badger finding store.
func GetBadgerDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".stablelint_badger"
	}
	return filepath.Join(homeDir, ".stablelint_badger")
}

// GetArtifactDir returns the default directory for downloaded analyzer artifacts.
func GetArtifactDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "stablelint", "analyzers")
	}
	return filepath.Join(".stablelint", "analyzers")
}

// NormalizeFilePath turns a user-provided path into the project-relative,
// slash-separated key used for finding snapshots. Paths outside the
// repository are rejected.
func NormalizeFilePath(repoPath, userPath string) (string, error) {
	if filepath.IsAbs(userPath) {
		relPath, err := filepath.Rel(repoPath, userPath)
		if err != nil {
			return "", fmt.Errorf("path is outside repository: %s", userPath)
		}
		userPath = relPath
	}

	cleanPath := filepath.Clean(userPath)
	if cleanPath == "." || cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside repository: %s", userPath)
	}

	normalized := filepath.ToSlash(cleanPath)
	return strings.TrimPrefix(normalized, "./"), nil
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to leave room for the prefix and one character.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
