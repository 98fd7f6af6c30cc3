package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/internal/iocache"
	"github.com/huangsam/stablelint/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// formatTime renders t for tables and CSV, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// PrintBranchResults outputs branch elections, dispatching based on the output format configured.
func PrintBranchResults(results []schema.BranchResult, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteBranchResults(w, results, cfg)
	}, "Wrote branch results")
}

// WriteBranchResults writes branch elections to w in the configured format.
func WriteBranchResults(w io.Writer, results []schema.BranchResult, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if results == nil {
			results = []schema.BranchResult{}
		}
		return writeJSON(w, results)
	case schema.CSVOut:
		return writeCSVWithHeader(w, []string{"module", "branch", "matched"}, func(cw *csv.Writer) error {
			for _, r := range results {
				if err := cw.Write([]string{r.Module, r.Branch, strconv.FormatBool(r.Matched)}); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
			return nil
		})
	default:
		table := tablewriter.NewWriter(w)
		table.Header([]string{"Module", "Server Branch"})
		var data [][]string
		for _, r := range results {
			branch := r.Branch
			if !r.Matched {
				branch = "no match"
			}
			data = append(data, []string{r.Module, branch})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		return table.Render()
	}
}

// PrintStoreStatus outputs finding store status, dispatching based on the output format configured.
func PrintStoreStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteStoreStatus(w, status, cfg)
	}, "Wrote store status")
}

// WriteStoreStatus writes finding store status to w in the configured format.
func WriteStoreStatus(w io.Writer, status schema.StoreStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, status)
	case schema.CSVOut:
		header := []string{"backend", "connected", "total_entries", "last_entry_time", "oldest_entry_time", "size_bytes"}
		return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
			return cw.Write([]string{
				status.Backend,
				strconv.FormatBool(status.Connected),
				strconv.Itoa(status.TotalEntries),
				formatTime(status.LastEntryTime),
				formatTime(status.OldestEntryTime),
				strconv.FormatInt(status.TableSizeBytes, 10),
			})
		})
	default:
		iocache.PrintStoreStatus(w, status)
		return nil
	}
}

// PrintArtifactStatus outputs the artifact listing, dispatching based on the output format configured.
func PrintArtifactStatus(artifacts []schema.ArtifactStatus, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteArtifactStatus(w, artifacts, cfg)
	}, "Wrote artifact status")
}

// WriteArtifactStatus writes the artifact listing to w in the configured format.
func WriteArtifactStatus(w io.Writer, artifacts []schema.ArtifactStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if artifacts == nil {
			artifacts = []schema.ArtifactStatus{}
		}
		return writeJSON(w, artifacts)
	case schema.CSVOut:
		header := []string{"name", "size_bytes", "last_access", "downloading", "tracked"}
		return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
			for _, a := range artifacts {
				row := []string{
					a.Name,
					strconv.FormatInt(a.SizeBytes, 10),
					formatTime(a.LastAccess),
					strconv.FormatBool(a.Downloading),
					strconv.FormatBool(a.Tracked),
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write CSV row: %w", err)
				}
			}
			return nil
		})
	default:
		table := tablewriter.NewWriter(w)
		table.Header([]string{"Artifact", "Size", "Last Access", "State"})
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignLeft
		})
		var data [][]string
		var total int64
		for _, a := range artifacts {
			state := "idle"
			switch {
			case a.Downloading:
				state = "downloading"
			case !a.Tracked:
				state = "untracked"
			}
			total += a.SizeBytes
			data = append(data, []string{a.Name, formatBytes(a.SizeBytes), formatTime(a.LastAccess), state})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d artifacts, %s total\n", len(artifacts), formatBytes(total))
		return err
	}
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
