package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/stablelint/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshots() []schema.Snapshot {
	introduced := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []schema.Snapshot{
		{
			File: "src/a.go",
			Findings: []schema.TrackedFinding{
				{
					ID:           "f-1",
					Fingerprint:  schema.Fingerprint{RuleKey: "go:S1000", Message: "unused", Line: 12, LineHash: "abc"},
					Severity:     schema.MajorSeverity,
					Type:         schema.IssueType,
					IntroducedAt: introduced,
					ServerKey:    "AX-1",
				},
				{
					ID:           "f-2",
					Fingerprint:  schema.Fingerprint{RuleKey: "go:S2000", Message: "file-level"},
					IntroducedAt: introduced.Add(time.Hour),
					Resolved:     true,
				},
			},
		},
		{File: "src/empty.go"},
		{
			File: "src/b.go",
			Findings: []schema.TrackedFinding{
				{ID: "f-3", Fingerprint: schema.Fingerprint{RuleKey: "go:S3000", Message: "m", Line: 3}, IntroducedAt: introduced},
			},
		},
	}
}

func TestFindingRowStructTags(t *testing.T) {
	// Verify struct tags are properly defined for parquet schema inference
	schema := parquet.SchemaOf(new(FindingRow))
	require.NotNil(t, schema)

	expectedColumns := []string{
		"file",
		"id",
		"rule_key",
		"message",
		"line",
		"line_hash",
		"text_range_hash",
		"severity",
		"type",
		"introduced_at",
		"server_key",
		"resolved",
	}

	for _, colName := range expectedColumns {
		col, ok := schema.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
		require.NotNil(t, col, "Column %s should not be nil", colName)
	}
}

func TestConvertSnapshots(t *testing.T) {
	rows := ConvertSnapshots(sampleSnapshots())
	require.Len(t, rows, 3)

	assert.Equal(t, "src/a.go", rows[0].File)
	require.NotNil(t, rows[0].Line)
	assert.Equal(t, int32(12), *rows[0].Line)
	require.NotNil(t, rows[0].ServerKey)
	assert.Equal(t, "AX-1", *rows[0].ServerKey)

	// Absent values become nulls
	assert.Nil(t, rows[1].Line)
	assert.Nil(t, rows[1].LineHash)
	assert.Nil(t, rows[1].ServerKey)
	assert.True(t, rows[1].Resolved)

	assert.Equal(t, "src/b.go", rows[2].File)
	assert.Empty(t, ConvertSnapshots(nil))
}

func TestWriteFindingsFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "findings.parquet")

	err := WriteFindingsFile(outputPath, sampleSnapshots())
	require.NoError(t, err)

	info, err := os.Stat(outputPath)
	require.NoError(t, err, "Output file should exist")
	assert.Greater(t, info.Size(), int64(0), "Output file should not be empty")

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[FindingRow](file)
	defer func() { _ = reader.Close() }()

	readData := make([]FindingRow, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err, "Should be able to read data")
	}
	require.Equal(t, 3, n)

	want := ConvertSnapshots(sampleSnapshots())
	for i := range want {
		assert.Equal(t, want[i].ID, readData[i].ID)
		assert.Equal(t, want[i].File, readData[i].File)
		assert.Equal(t, want[i].Resolved, readData[i].Resolved)
		assert.WithinDuration(t, want[i].IntroducedAt, readData[i].IntroducedAt, time.Nanosecond)
		if want[i].Line == nil {
			assert.Nil(t, readData[i].Line)
		} else {
			require.NotNil(t, readData[i].Line)
			assert.Equal(t, *want[i].Line, *readData[i].Line)
		}
	}
}

func TestWriteFindingsParquet_EmptyData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")

	err := WriteFindingsParquet([]FindingRow{}, outputPath)
	require.NoError(t, err, "Writing empty data should not produce error")

	_, err = os.Stat(outputPath)
	require.NoError(t, err, "Output file should exist")
}

func TestWriteFindingsParquet_InvalidPath(t *testing.T) {
	err := WriteFindingsParquet(nil, filepath.Join(t.TempDir(), "missing", "dir", "out.parquet"))
	assert.ErrorContains(t, err, "failed to create output file")
}
