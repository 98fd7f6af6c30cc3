package cmd

import (
	"github.com/huangsam/stablelint/core"
	"github.com/huangsam/stablelint/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the stablelint MCP server",
	Long: `Launch an MCP server that lets AI agents track findings, resolve the server branch
and manage analyzer artifacts via standard tools. An artifact cleanup pass runs in the
background on startup.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withEngine(func(engine *core.Engine) error {
			if _, err := engine.Artifacts().StartCleanup(rootCtx, cfg.RetentionDays); err != nil {
				logger.Warn("artifact cleanup not started", "error", err)
			}
			return mcp.StartMCPServer(rootCtx, engine, version)
		})
	},
}
