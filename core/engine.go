// Package core connects finding tracking, the finding cache, server branch
// resolution and artifact retention into the operations behind the CLI and
// the MCP server.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/core/artifacts"
	"github.com/huangsam/stablelint/core/branch"
	"github.com/huangsam/stablelint/core/findingcache"
	"github.com/huangsam/stablelint/core/tracking"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/internal/gitclient"
	"github.com/huangsam/stablelint/schema"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine holds the long-lived state of one project: the finding working set,
// the branch service and the artifact directory.
type Engine struct {
	cfg       *contract.Config
	logger    hclog.Logger
	store     contract.FindingStore
	registry  *prometheus.Registry
	cache     *findingcache.FindingCache
	pipeline  *tracking.Pipeline
	branches  *branch.Service
	artifacts *artifacts.RetentionStore
	repo      contract.GitRepo
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	repo     contract.GitRepo
	tracking []tracking.Option
}

// WithRepo overrides the repository used for branch resolution.
func WithRepo(repo contract.GitRepo) EngineOption {
	return func(o *engineOptions) { o.repo = repo }
}

// WithTrackingOptions passes options to the finding reconciler.
func WithTrackingOptions(opts ...tracking.Option) EngineOption {
	return func(o *engineOptions) { o.tracking = append(o.tracking, opts...) }
}

// NewEngine builds an Engine on top of the store owned by mgr.
func NewEngine(cfg *contract.Config, mgr contract.StoreManager, logger hclog.Logger, opts ...EngineOption) (*Engine, error) {
	store := mgr.GetFindingStore()
	if store == nil {
		return nil, errors.New("finding store is not initialized")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()
	cache := findingcache.New(store, cfg.CacheCapacity,
		findingcache.WithLogger(logger.Named("cache")),
		findingcache.WithMetrics(findingcache.NewMetrics(registry)),
	)
	reconciler := tracking.NewReconciler(append([]tracking.Option{tracking.WithLogger(logger.Named("tracking"))}, o.tracking...)...)

	repo := o.repo
	if repo == nil {
		repo = OpenRepo(cfg, logger)
	}
	branches := branch.NewService(branch.WithServiceLogger(logger.Named("branch")))
	branches.Register(cfg.Module, repo, cfg.Candidates())

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		registry:  registry,
		cache:     cache,
		pipeline:  tracking.NewPipeline(cache, reconciler),
		branches:  branches,
		artifacts: artifacts.NewRetentionStore(cfg.ArtifactDir, artifacts.WithLogger(logger.Named("artifacts"))),
		repo:      repo,
	}, nil
}

// OpenRepo opens the configured repository in-process, falling back to the
// git executable when go-git cannot read it.
func OpenRepo(cfg *contract.Config, logger hclog.Logger) contract.GitRepo {
	repo, err := gitclient.Open(cfg.RepoPath)
	if err == nil {
		return repo
	}
	logger.Debug("falling back to git executable", "path", cfg.RepoPath, "error", err)
	return contract.NewLocalGitRepo(cfg.RepoPath, cfg.GitTimeout)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *contract.Config {
	return e.cfg
}

// ResolveBranch re-elects the server branch of the configured module.
func (e *Engine) ResolveBranch(ctx context.Context) (schema.BranchResult, error) {
	if err := e.branches.Refresh(ctx); err != nil {
		return schema.BranchResult{Module: e.cfg.Module}, err
	}
	branchName, ok := e.branches.ServerBranch(e.cfg.Module)
	return schema.BranchResult{Module: e.cfg.Module, Branch: branchName, Matched: ok}, nil
}

// ResolveBranchWith replaces the candidate set and re-elects the branch.
func (e *Engine) ResolveBranchWith(ctx context.Context, candidates schema.BranchCandidates) (schema.BranchResult, error) {
	if err := ctx.Err(); err != nil {
		return schema.BranchResult{Module: e.cfg.Module}, err
	}
	e.branches.UpdateCandidates(ctx, e.cfg.Module, candidates)
	branchName, ok := e.branches.ServerBranch(e.cfg.Module)
	return schema.BranchResult{Module: e.cfg.Module, Branch: branchName, Matched: ok}, nil
}

// WatchBranch resolves the branch, then re-resolves whenever the repository's
// refs change until ctx is done. onChange sees every change of election.
func (e *Engine) WatchBranch(ctx context.Context, onChange branch.ChangeFunc) error {
	watcher, err := branch.NewWatcher(e.repo.Root(), e.cfg.WatchDebounce, e.branches.Refresh, e.logger.Named("watcher"))
	if err != nil {
		return err
	}
	e.branches.OnChange(onChange)
	if err := e.branches.Refresh(ctx); err != nil {
		return err
	}
	if _, ok := e.branches.ServerBranch(e.cfg.Module); !ok {
		onChange(e.cfg.Module, "")
	}
	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// TrackInput is one analysis result to reconcile.
type TrackInput struct {
	File    string
	Raw     []schema.RawFinding
	Content *string // nil reads the file from the repository
	Server  []schema.ServerFinding
	// ApplyServer runs server correlation even when Server is empty.
	ApplyServer bool
}

// Track reconciles the raw findings of one file with its history and, when
// server findings are given, correlates the result with them.
func (e *Engine) Track(ctx context.Context, in TrackInput) (schema.Snapshot, error) {
	file, err := contract.NormalizeFilePath(e.cfg.RepoPath, in.File)
	if err != nil {
		return schema.Snapshot{}, err
	}

	content := ""
	if in.Content != nil {
		content = *in.Content
	} else if data, readErr := os.ReadFile(filepath.Join(e.cfg.RepoPath, filepath.FromSlash(file))); readErr == nil {
		content = string(data)
	} else {
		e.logger.Debug("file content unavailable, hashes not computed", "file", file, "error", readErr)
	}

	raw := make([]schema.RawFinding, len(in.Raw))
	for i, rf := range in.Raw {
		rf.FillHashes(content)
		raw[i] = rf
	}

	snap, err := e.pipeline.Analyze(ctx, file, raw)
	if err != nil {
		return schema.Snapshot{}, err
	}
	if len(in.Server) > 0 || in.ApplyServer {
		snap, err = e.pipeline.ApplyServer(file, in.Server)
		if err != nil {
			return schema.Snapshot{}, err
		}
	}
	e.logger.Info("tracked findings", "file", file, "count", len(snap.Findings))
	return snap, nil
}

// Findings returns the known snapshot of each file. A file analyzed without
// findings yields an empty snapshot; a file that was never analyzed yields
// contract.ErrNotFound.
func (e *Engine) Findings(files []string) ([]schema.Snapshot, error) {
	out := make([]schema.Snapshot, 0, len(files))
	for _, f := range files {
		file, err := contract.NormalizeFilePath(e.cfg.RepoPath, f)
		if err != nil {
			return nil, err
		}
		known, err := e.cache.WasEverAnalyzed(file)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%s has never been analyzed: %w", file, contract.ErrNotFound)
		}
		snap, err := e.cache.Previous(file)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			snap = &schema.Snapshot{}
		}
		snap.File = file
		out = append(out, *snap)
	}
	return out, nil
}

// ImportFindings replaces the known findings of every file in snaps, for
// example with a JSON export, and persists them at once.
func (e *Engine) ImportFindings(snaps []schema.Snapshot) error {
	byFile := make(map[string]schema.Snapshot, len(snaps))
	for _, snap := range snaps {
		file, err := contract.NormalizeFilePath(e.cfg.RepoPath, snap.File)
		if err != nil {
			return err
		}
		snap.File = file
		if err := snap.Validate(); err != nil {
			return err
		}
		byFile[file] = snap
	}
	if err := e.cache.ReplaceFindings(byFile); err != nil {
		return fmt.Errorf("failed to import findings: %w", err)
	}
	e.logger.Info("imported findings", "files", len(byFile))
	return nil
}

// ClearFindings forgets the findings of the given files, or of every file
// when none is given.
func (e *Engine) ClearFindings(files []string) error {
	if len(files) == 0 {
		return e.cache.Clear()
	}
	var errs []error
	for _, f := range files {
		file, err := contract.NormalizeFilePath(e.cfg.RepoPath, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.cache.Invalidate(file); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreStatus reports on the persistent finding store.
func (e *Engine) StoreStatus() (schema.StoreStatus, error) {
	return e.store.GetStatus()
}

// TouchArtifact records that an artifact was used now.
func (e *Engine) TouchArtifact(path string) error {
	return e.artifacts.Touch(path)
}

// Artifacts exposes the retention store, e.g. to mark downloads in progress.
func (e *Engine) Artifacts() *artifacts.RetentionStore {
	return e.artifacts
}

// CleanupArtifacts runs one retention pass with the configured retention.
func (e *Engine) CleanupArtifacts(ctx context.Context) (artifacts.CleanupReport, error) {
	return e.artifacts.RunCleanup(ctx, e.cfg.RetentionPeriod())
}

// ArtifactStatus lists the artifact directory.
func (e *Engine) ArtifactStatus() ([]schema.ArtifactStatus, error) {
	return e.artifacts.Status()
}

// CacheStats returns the current value of every cache metric by name.
func (e *Engine) CacheStats() (map[string]float64, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather cache metrics: %w", err)
	}
	stats := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				stats[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				stats[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	return stats, nil
}

// CachedFiles lists the files held in memory, most recently used first.
func (e *Engine) CachedFiles() []string {
	files := e.cache.Files()
	if files == nil {
		return []string{}
	}
	return files
}

// Close flushes the working set to the store.
func (e *Engine) Close() error {
	return e.cache.Close()
}

