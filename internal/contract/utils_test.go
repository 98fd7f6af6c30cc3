package contract

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFilePath(t *testing.T) {
	repo := filepath.FromSlash("/work/repo")
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"relative", "src/main.go", "src/main.go", false},
		{"dot prefix", "./src/main.go", "src/main.go", false},
		{"absolute inside", filepath.Join(repo, "pkg", "a.go"), "pkg/a.go", false},
		{"cleaned", "src/../lib/b.go", "lib/b.go", false},
		{"escapes", "../other/c.go", "", true},
		{"root itself", ".", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFilePath(repo, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short.go", TruncatePath("short.go", 20))
	assert.Equal(t, "...c/d.go", TruncatePath("a/b/c/d.go", 9))
	assert.Equal(t, "abcdef", TruncatePath("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("perhaps")
	assert.Error(t, err)
}

func TestGetColorSeverity(t *testing.T) {
	assert.Contains(t, GetColorSeverity(schema.BlockerSeverity), "BLOCKER")
	assert.Contains(t, GetColorSeverity(""), "-")
}

func TestDefaultPaths(t *testing.T) {
	assert.NotEmpty(t, GetStoreDBFilePath())
	assert.NotEmpty(t, GetBadgerDir())
	assert.NotEmpty(t, GetArtifactDir())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(LoggerConfig{Level: "warn"}, "test", &buf)
	assert.Equal(t, hclog.Warn, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "key=value")

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerTo(LoggerConfig{JSONFormat: true}, "json", &buf)
		logger.Info("hello")
		assert.Contains(t, buf.String(), `"@message":"hello"`)
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		assert.Equal(t, hclog.Info, parseLogLevel("verbose"))
	})
}
