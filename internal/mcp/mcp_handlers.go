package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/stablelint/core"
	"github.com/huangsam/stablelint/core/artifacts"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	engine *core.Engine
}

// jsonResult renders v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleResolveBranch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	branches := request.GetString("branches", "")
	mainBranch := request.GetString("main_branch", "")

	var result schema.BranchResult
	var err error
	if branches == "" && mainBranch == "" {
		result, err = h.engine.ResolveBranch(ctx)
	} else {
		cfg := h.engine.Config()
		names := cfg.Branches
		if branches != "" {
			names = nil
			for b := range strings.SplitSeq(branches, ",") {
				if b = strings.TrimSpace(b); b != "" {
					names = append(names, b)
				}
			}
		}
		if mainBranch == "" {
			mainBranch = cfg.MainBranch
		}
		result, err = h.engine.ResolveBranchWith(ctx, schema.NewBranchCandidates(names, mainBranch))
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("branch resolution failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) handleTrackFindings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file := request.GetString("file", "")
	if file == "" {
		return mcp.NewToolResultError("file is required"), nil
	}

	in := core.TrackInput{File: file}
	if err := json.Unmarshal([]byte(request.GetString("raw_findings", "")), &in.Raw); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid raw_findings: %v", err)), nil
	}
	if args := request.GetArguments(); args != nil {
		if content, ok := args["content"].(string); ok {
			in.Content = &content
		}
	}
	if server := request.GetString("server_findings", ""); server != "" {
		if err := json.Unmarshal([]byte(server), &in.Server); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid server_findings: %v", err)), nil
		}
		in.ApplyServer = true
	}

	snap, err := h.engine.Track(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tracking failed: %v", err)), nil
	}
	return jsonResult(snap)
}

func (h *toolHandler) handleGetFindings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file := request.GetString("file", "")
	if file == "" {
		return mcp.NewToolResultError("file is required"), nil
	}
	snaps, err := h.engine.Findings([]string{file})
	if errors.Is(err, contract.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s has never been analyzed", file)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load findings: %v", err)), nil
	}
	return jsonResult(snaps[0])
}

func (h *toolHandler) handleCleanupArtifacts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.engine.CleanupArtifacts(ctx)
	if errors.Is(err, artifacts.ErrInvalidRetention) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid retention-days: %v", err)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cleanup failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *toolHandler) handleArtifactStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.engine.ArtifactStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list artifacts: %v", err)), nil
	}
	if status == nil {
		status = []schema.ArtifactStatus{}
	}
	return jsonResult(status)
}

func (h *toolHandler) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.engine.CacheStats()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"metrics": stats,
		"files":   h.engine.CachedFiles(),
	})
}
