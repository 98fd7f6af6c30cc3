// Package parquet provides data structures and functions for exporting tracked
// findings to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/stablelint/schema"
	"github.com/parquet-go/parquet-go"
)

// FindingRow is one tracked finding flattened for columnar export.
type FindingRow struct {
	// File is the path of the file relative to the project root
	File string `parquet:"file,snappy,dict"`

	// ID is the stable identity carried across runs
	ID string `parquet:"id,snappy"`

	RuleKey string `parquet:"rule_key,snappy,dict"`
	Message string `parquet:"message,snappy"`

	// Line is the 1-based start line (nullable for file-level findings)
	Line *int32 `parquet:"line,optional,snappy"`

	LineHash      *string `parquet:"line_hash,optional,snappy"`
	TextRangeHash *string `parquet:"text_range_hash,optional,snappy"`

	Severity string `parquet:"severity,snappy,dict"`
	Type     string `parquet:"type,snappy,dict"`

	// IntroducedAt is when the finding first appeared (stored as TIMESTAMP with nanosecond precision)
	IntroducedAt time.Time `parquet:"introduced_at,snappy"`

	// ServerKey is set once the finding is matched to a server issue
	ServerKey *string `parquet:"server_key,optional,snappy"`

	Resolved bool `parquet:"resolved"`
}

// ConvertSnapshots flattens snapshots into rows, preserving snapshot and finding order.
func ConvertSnapshots(snaps []schema.Snapshot) []FindingRow {
	var rows []FindingRow
	for _, snap := range snaps {
		for _, f := range snap.Findings {
			row := FindingRow{
				File:          snap.File,
				ID:            f.ID,
				RuleKey:       f.RuleKey,
				Message:       f.Message,
				Line:          optionalInt(f.Line),
				LineHash:      optionalString(f.LineHash),
				TextRangeHash: optionalString(f.TextRangeHash),
				Severity:      string(f.Severity),
				Type:          string(f.Type),
				IntroducedAt:  f.IntroducedAt,
				ServerKey:     optionalString(f.ServerKey),
				Resolved:      f.Resolved,
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteFindingsParquet writes a slice of FindingRow structs to a Parquet file.
func WriteFindingsParquet(data []FindingRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the FindingRow struct tags
	writer := parquet.NewGenericWriter[FindingRow](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFindingsFile exports snapshots to outputPath.
func WriteFindingsFile(outputPath string, snaps []schema.Snapshot) error {
	rows := ConvertSnapshots(snaps)
	if err := WriteFindingsParquet(rows, outputPath); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Exported %d findings to %s\n", len(rows), outputPath)
	return nil
}

func optionalInt(v int) *int32 {
	if v <= 0 {
		return nil
	}
	n := int32(v)
	return &n
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
