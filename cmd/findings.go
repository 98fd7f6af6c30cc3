package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/huangsam/stablelint/core"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/internal/outwriter"
	"github.com/huangsam/stablelint/schema"
	"github.com/spf13/cobra"
)

// findingsCmd focused on tracked finding management.
var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Inspect and manage tracked findings",
	Long: `Inspect and manage the findings tracked per file.

Subcommands:
  show   - Print the tracked findings of files
  export - Write the tracked findings of files to --output-file
  import - Replace tracked findings with a JSON export
  clear  - Forget the tracked findings of files, or of every file

Examples:
  # Show what is tracked for a file
  stablelint findings show main.go

  # Export to parquet
  stablelint findings export main.go util.go --output parquet --output-file findings.parquet`,
}

// findingsShowCmd prints the tracked findings of files.
var findingsShowCmd = &cobra.Command{
	Use:   "show <file>...",
	Short: "Print the tracked findings of files",
	Long: `Print the tracked findings of each file. A file analyzed without issues shows an
empty table; a file that was never analyzed is reported and makes the command fail.`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		var unknown []string
		err := withEngine(func(engine *core.Engine) error {
			for _, file := range args {
				snaps, err := engine.Findings([]string{file})
				if errors.Is(err, contract.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "%s: %s\n", file, contract.MinorColor.Sprint("never analyzed"))
					unknown = append(unknown, file)
					continue
				}
				if err != nil {
					return err
				}
				if err := writer.WriteFindings(snaps[0], cfg); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			contract.LogFatal("Cannot show findings", err)
		}
		if len(unknown) > 0 {
			contract.LogFatal("Cannot show findings", fmt.Errorf("%d file(s) never analyzed: %w", len(unknown), contract.ErrNotFound))
		}
	},
}

// findingsImportCmd restores tracked findings from a JSON export.
var findingsImportCmd = &cobra.Command{
	Use:   "import <export.json>",
	Short: "Replace tracked findings with a JSON export",
	Long: `Read a JSON document written by 'findings export --output json' (or - for stdin)
and make it the tracked history of every file it lists. Identities and introduction
dates are kept, so the next analysis of those files carries them forward.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		var snaps []schema.Snapshot
		if err := readJSONInput(args[0], &snaps); err != nil {
			contract.LogFatal("Invalid findings export", err)
		}
		err := withEngine(func(engine *core.Engine) error {
			return engine.ImportFindings(snaps)
		})
		if err != nil {
			contract.LogFatal("Failed to import findings", err)
		}
		fmt.Printf("Imported findings of %d files.\n", len(snaps))
	},
}

// findingsExportCmd exports the tracked findings of files.
var findingsExportCmd = &cobra.Command{
	Use:   "export <file>...",
	Short: "Export the tracked findings of files",
	Long: `Write the tracked findings of the given files in one document.

Formats: csv (default), json or parquet. Parquet requires --output-file.`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		err := withEngine(func(engine *core.Engine) error {
			snaps, err := engine.Findings(args)
			if err != nil {
				return err
			}
			return outwriter.ExportFindings(snaps, cfg)
		})
		if err != nil {
			contract.LogFatal("Failed to export findings", err)
		}
	},
}

// findingsClearCmd forgets tracked findings.
var findingsClearCmd = &cobra.Command{
	Use:   "clear [file]...",
	Short: "Forget tracked findings",
	Long: `Forget the tracked findings of the given files, or of every file when none is given.

The next analysis of a cleared file starts a fresh history: every finding gets a new
identity and the analysis time as its introduction date.`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		err := withEngine(func(engine *core.Engine) error {
			return engine.ClearFindings(args)
		})
		if err != nil {
			contract.LogFatal("Failed to clear findings", err)
		}
		fmt.Println("Findings cleared successfully.")
	},
}
