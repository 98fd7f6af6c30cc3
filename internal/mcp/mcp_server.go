// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/stablelint/core"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the stablelint MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(engine *core.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Stablelint Tracking Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{engine: engine}

	// --- 1. Tool: resolve_branch ---
	s.AddTool(mcp.NewTool("resolve_branch",
		mcp.WithDescription("Elect the server branch closest to the checked-out commit."),
		mcp.WithString("branches", mcp.Description("Comma-separated server branch names. Defaults to the configured set.")),
		mcp.WithString("main_branch", mcp.Description("Name of the main branch, preferred on ties. Defaults to the configured one.")),
	), h.handleResolveBranch)

	// --- 2. Tool: track_findings ---
	s.AddTool(mcp.NewTool("track_findings",
		mcp.WithDescription("Reconcile the analyzer findings of one file with its history so identities and introduction dates stay stable."),
		mcp.WithString("file", mcp.Description("File path relative to the repository root."), mcp.Required()),
		mcp.WithString("raw_findings", mcp.Description("JSON array of raw findings reported for the file."), mcp.Required()),
		mcp.WithString("content", mcp.Description("Current file content. Read from the repository when omitted.")),
		mcp.WithString("server_findings", mcp.Description("JSON array of server findings to correlate with.")),
	), h.handleTrackFindings)

	// --- 3. Tool: get_findings ---
	s.AddTool(mcp.NewTool("get_findings",
		mcp.WithDescription("Return the tracked findings last recorded for a file."),
		mcp.WithString("file", mcp.Description("File path relative to the repository root."), mcp.Required()),
	), h.handleGetFindings)

	// --- 4. Tool: cleanup_artifacts ---
	s.AddTool(mcp.NewTool("cleanup_artifacts",
		mcp.WithDescription("Delete cached analyzer artifacts unused for longer than the retention period."),
	), h.handleCleanupArtifacts)

	// --- 5. Tool: artifact_status ---
	s.AddTool(mcp.NewTool("artifact_status",
		mcp.WithDescription("List cached analyzer artifacts with size and last access."),
	), h.handleArtifactStatus)

	// --- 6. Tool: cache_stats ---
	s.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report finding cache hits, misses, evictions and size."),
	), h.handleCacheStats)

	return s
}

// StartMCPServer starts the stablelint MCP server on stdio.
func StartMCPServer(_ context.Context, engine *core.Engine, version string) error {
	s := NewMCPServer(engine, version)
	return server.ServeStdio(s)
}
