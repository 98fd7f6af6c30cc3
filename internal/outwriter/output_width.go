package outwriter

import (
	"os"

	"github.com/huangsam/stablelint/internal/contract"
	"golang.org/x/term"
)

// GetMaxMessageWidth calculates the maximum width for finding messages in table output
// based on terminal width and the fixed finding columns.
func GetMaxMessageWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// ID + Line + Rule + Severity + Type + Introduced with borders/padding
	baseWidth := 75

	available := termWidth - baseWidth
	if available < 20 {
		return 20
	}
	if available > 90 {
		return 90
	}
	return available
}

// truncate shortens s to maxWidth runes, marking the cut with "...".
func truncate(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) <= maxWidth || maxWidth <= 3 {
		return s
	}
	return string(runes[:maxWidth-3]) + "..."
}
