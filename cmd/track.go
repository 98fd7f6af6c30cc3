package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/huangsam/stablelint/core"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// readJSONInput decodes the JSON document at path, or stdin for "-".
func readJSONInput(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// buildTrackInput assembles the tracking input from the track flags.
func buildTrackInput() (core.TrackInput, error) {
	in := core.TrackInput{File: viper.GetString("file")}
	if in.File == "" {
		return in, errors.New("--file is required")
	}
	if err := readJSONInput(viper.GetString("raw"), &in.Raw); err != nil {
		return in, err
	}
	if contentPath := viper.GetString("content"); contentPath != "" {
		data, err := os.ReadFile(contentPath)
		if err != nil {
			return in, fmt.Errorf("failed to read content: %w", err)
		}
		content := string(data)
		in.Content = &content
	}
	if serverPath := viper.GetString("server"); serverPath != "" {
		if err := readJSONInput(serverPath, &in.Server); err != nil {
			return in, err
		}
		in.ApplyServer = true
	}
	return in, nil
}

// trackCmd reconciles one analysis result with the stored history.
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Reconcile the raw findings of a file with its history",
	Long: `Match the findings the analyzer just reported for a file against the findings
tracked before, so every issue keeps its identity and introduction date.

Raw findings are read as a JSON array from --raw (stdin by default). When --server
is given, the result is also correlated with the server's findings, which attaches
server keys and resolution state.

Examples:
  # Track findings piped from the analyzer
  analyzer report main.go | stablelint track --file main.go

  # Track and correlate with the server
  stablelint track --file main.go --raw raw.json --server server.json --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		in, err := buildTrackInput()
		if err != nil {
			contract.LogFatal("Invalid track input", err)
		}
		err = withEngine(func(engine *core.Engine) error {
			snap, err := engine.Track(rootCtx, in)
			if err != nil {
				return err
			}
			return writer.WriteFindings(snap, cfg)
		})
		if err != nil {
			contract.LogFatal("Cannot track findings", err)
		}
	},
}
