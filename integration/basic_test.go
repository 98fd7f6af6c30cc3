//go:build basic

package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/stablelint/internal/testutil"
	"github.com/huangsam/stablelint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mainV1 = "package main\n\nfunc main() {\n\tx := 1\n}\n"
	mainV2 = "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tx := 1\n\tfmt.Println()\n}\n"
)

// trackedOutput mirrors the JSON document printed for one file.
type trackedOutput struct {
	Count    int                     `json:"count"`
	File     string                  `json:"file"`
	Findings []schema.TrackedFinding `json:"findings"`
}

func rawFindings(t *testing.T, line int) string {
	t.Helper()
	raw := []schema.RawFinding{{
		Fingerprint: schema.Fingerprint{
			RuleKey:   "go:S1481",
			Message:   "Remove this unused \"x\" local variable.",
			TextRange: &schema.TextRange{StartLine: line, EndLine: line, StartLineOffset: 1, EndLineOffset: 2},
		},
		Severity: schema.MinorSeverity,
		Type:     schema.IssueType,
	}}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	return string(data)
}

func decodeTracked(t *testing.T, out string) trackedOutput {
	t.Helper()
	var tracked trackedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &tracked), out)
	return tracked
}

func TestTrackAcrossRuns(t *testing.T) {
	g := testutil.FeatureScenario(t)
	mainPath := filepath.Join(g.Dir, "main.go")
	require.NoError(t, os.WriteFile(mainPath, []byte(mainV1), 0o644))

	c := newCLI(t,
		"STABLELINT_STORE_DB_CONNECT="+filepath.Join(t.TempDir(), "findings.db"),
		"STABLELINT_ARTIFACT_DIR="+t.TempDir(),
		"STABLELINT_REPO="+g.Dir,
	)

	out, err := c.run(rawFindings(t, 4), "track", "--file", "main.go", "--output", "json")
	require.NoError(t, err)
	first := decodeTracked(t, out)
	require.Equal(t, 1, first.Count)
	assert.Equal(t, schema.Checksum("\tx := 1"), first.Findings[0].LineHash)

	// A separate process sees the history through the store.
	require.NoError(t, os.WriteFile(mainPath, []byte(mainV2), 0o644))
	out, err = c.run(rawFindings(t, 6), "track", "--file", "main.go", "--output", "json")
	require.NoError(t, err)
	second := decodeTracked(t, out)
	require.Equal(t, 1, second.Count)
	assert.Equal(t, first.Findings[0].ID, second.Findings[0].ID)
	assert.True(t, first.Findings[0].IntroducedAt.Equal(second.Findings[0].IntroducedAt))
	assert.Equal(t, 6, second.Findings[0].Line)

	out, err = c.run("", "findings", "show", "main.go", "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, second.Findings[0].ID, decodeTracked(t, out).Findings[0].ID)

	out, err = c.run("", "store", "status", "--output", "json")
	require.NoError(t, err)
	var status schema.StoreStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 1, status.TotalEntries)

	exportPath := filepath.Join(t.TempDir(), "export.json")
	_, err = c.run("", "findings", "export", "main.go", "--output", "json", "--output-file", exportPath)
	require.NoError(t, err)

	out, err = c.run("", "findings", "clear", "main.go")
	require.NoError(t, err)
	assert.Contains(t, out, "Findings cleared successfully.")

	out, err = c.combined("findings", "show", "main.go")
	assert.Error(t, err)
	assert.Contains(t, out, "main.go: never analyzed")

	// Restoring the export brings the identity back.
	out, err = c.run("", "findings", "import", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported findings of 1 files.")

	out, err = c.run("", "findings", "show", "main.go", "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, second.Findings[0].ID, decodeTracked(t, out).Findings[0].ID)
}

func TestTrackWithServerFindings(t *testing.T) {
	g := testutil.FeatureScenario(t)
	dir := t.TempDir()
	contentPath := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(contentPath, []byte(mainV1), 0o644))

	server := []schema.ServerFinding{{
		Key: "AX-42",
		Fingerprint: schema.NewFingerprint("go:S1481", "Remove this unused \"x\" local variable.",
			&schema.TextRange{StartLine: 4, EndLine: 4, StartLineOffset: 1, EndLineOffset: 2}, mainV1),
		Severity: schema.MinorSeverity,
	}}
	data, err := json.Marshal(server)
	require.NoError(t, err)
	serverPath := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(serverPath, data, 0o644))

	c := newCLI(t, "STABLELINT_STORE_BACKEND=none", "STABLELINT_REPO="+g.Dir)
	out, err := c.run(rawFindings(t, 4), "track", "--file", "main.go",
		"--content", contentPath, "--server", serverPath, "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, "AX-42", decodeTracked(t, out).Findings[0].ServerKey)
}

func TestBranchResolve(t *testing.T) {
	g := testutil.FeatureScenario(t)
	c := newCLI(t, "STABLELINT_STORE_BACKEND=none", "STABLELINT_REPO="+g.Dir)

	tests := []struct {
		branches string
		expected string
	}{
		{"main,feature-b", "main"},
		{"feature-a,feature-b,main", "feature-a"},
		{"feature-b", "feature-b"},
	}
	for _, tt := range tests {
		t.Run(tt.branches, func(t *testing.T) {
			out, err := c.run("", "branch", "resolve", "--branches", tt.branches, "--module", "app", "--output", "csv")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("module,branch,matched\napp,%s,true\n", tt.expected), out)
		})
	}

	out, err := c.run("", "branch", "resolve", "--branches", "release", "--main-branch", "trunk", "--module", "app", "--output", "csv")
	require.NoError(t, err)
	assert.Equal(t, "module,branch,matched\napp,,false\n", out)
}

func TestArtifactsCommands(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"analyzer-go.jar", "analyzer-java.jar"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	c := newCLI(t, "STABLELINT_ARTIFACT_DIR="+dir)

	_, err := c.run("", "artifacts", "touch", "analyzer-go.jar")
	require.NoError(t, err)

	out, err := c.run("", "artifacts", "status", "--output", "json")
	require.NoError(t, err)
	var status []schema.ArtifactStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Len(t, status, 2)

	out, err = c.run("", "artifacts", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 2 artifacts, deleted 0.")

	_, err = c.run("", "artifacts", "cleanup", "--retention-days", "0")
	assert.Error(t, err)
}

func TestStoreLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "findings.db")
	c := newCLI(t, "STABLELINT_STORE_DB_CONNECT="+dbPath)

	out, err := c.run("", "store", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "to version 2")

	out, err = c.run("", "store", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Store Backend: sqlite")

	out, err = c.run("", "store", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Store cleared successfully.")
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	out, err = c.combined("version")
	require.NoError(t, err)
	assert.Contains(t, out, "stablelint CLI")
}
