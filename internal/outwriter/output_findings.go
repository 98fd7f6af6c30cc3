package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/internal/parquet"
	"github.com/huangsam/stablelint/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintFindings outputs a tracked snapshot, dispatching based on the output format configured.
func PrintFindings(snap schema.Snapshot, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONFindings(w, snap)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVFindings(w, []schema.Snapshot{snap})
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		if err := parquet.WriteFindingsFile(cfg.OutputFile, []schema.Snapshot{snap}); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return WriteFindingsTable(w, snap, cfg)
		}, "Wrote table"); err != nil {
			return fmt.Errorf("error writing table output: %w", err)
		}
	}
	return nil
}

// ExportFindings writes several snapshots to a single file in the configured format.
func ExportFindings(snaps []schema.Snapshot, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, snaps)
		}, "Exported JSON")
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		if err := parquet.WriteFindingsFile(cfg.OutputFile, snaps); err != nil {
			return err
		}
		return nil
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVFindings(w, snaps)
		}, "Exported CSV")
	}
}

// WriteFindingsTable renders the findings of one file as a table.
func WriteFindingsTable(w io.Writer, snap schema.Snapshot, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "ID", "Line", "Rule", "Severity", "Type", "Introduced", "Server Key", "Message"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	maxMessage := GetMaxMessageWidth(cfg)
	var data [][]string
	for i, f := range snap.Findings {
		severity := string(f.Severity)
		if cfg.UseColors {
			severity = contract.GetColorSeverity(f.Severity)
		}
		if f.Resolved {
			severity = contract.ResolvedColor.Sprint("RESOLVED")
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			shortID(f.ID),
			formatLine(f.Line),
			f.RuleKey,
			severity,
			string(f.Type),
			formatTime(f.IntroducedAt),
			f.ServerKey,
			truncate(f.Message, maxMessage),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d tracked findings\n", contract.TruncatePath(snap.File, maxMessage), len(snap.Findings))
	return err
}

// writeJSONFindings writes a snapshot with a count for easier consumption.
func writeJSONFindings(w io.Writer, snap schema.Snapshot) error {
	type JSONSnapshot struct {
		Count int `json:"count"`
		schema.Snapshot
	}
	if snap.Findings == nil {
		snap.Findings = []schema.TrackedFinding{}
	}
	return writeJSON(w, JSONSnapshot{Count: len(snap.Findings), Snapshot: snap})
}

// writeCSVFindings writes one row per finding across all snapshots.
func writeCSVFindings(w io.Writer, snaps []schema.Snapshot) error {
	header := []string{
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
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, snap := range snaps {
			for _, f := range snap.Findings {
				row := []string{
					snap.File,
					f.ID,
					f.RuleKey,
					f.Message,
					strconv.Itoa(f.Line),
					f.LineHash,
					f.TextRangeHash,
					string(f.Severity),
					string(f.Type),
					formatTime(f.IntroducedAt),
					f.ServerKey,
					strconv.FormatBool(f.Resolved),
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
		}
		return nil
	})
}

// shortID keeps the first segment of a UUID for narrow tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatLine(line int) string {
	if line <= 0 {
		return "-"
	}
	return strconv.Itoa(line)
}
