package tracking

import (
	"context"
	"fmt"

	"github.com/huangsam/stablelint/schema"
)

// SnapshotCache is the working set the pipeline reads previous findings from
// and writes reconciled findings to.
type SnapshotCache interface {
	// Previous returns the last known snapshot, consulting persistent storage
	// when it is not in memory. A nil snapshot means the file was never analyzed.
	Previous(file string) (*schema.Snapshot, error)
	Put(file string, snap schema.Snapshot)
}

// Pipeline runs one analysis cycle for a file: load previous, reconcile, store.
type Pipeline struct {
	cache      SnapshotCache
	reconciler *Reconciler
}

// NewPipeline creates a Pipeline.
func NewPipeline(cache SnapshotCache, reconciler *Reconciler) *Pipeline {
	return &Pipeline{cache: cache, reconciler: reconciler}
}

// Analyze reconciles the raw findings of file and stores the result.
// A failure to read history is returned rather than treated as a first run,
// since that would re-date every finding in the file.
func (p *Pipeline) Analyze(ctx context.Context, file string, raw []schema.RawFinding) (schema.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return schema.Snapshot{}, err
	}
	previous, err := p.cache.Previous(file)
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("failed to load previous findings for %s: %w", file, err)
	}
	snap := p.reconciler.Reconcile(file, raw, previous)
	p.cache.Put(file, snap)
	return snap, nil
}

// ApplyServer correlates the stored findings of file with the server's and stores the result.
func (p *Pipeline) ApplyServer(file string, server []schema.ServerFinding) (schema.Snapshot, error) {
	previous, err := p.cache.Previous(file)
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("failed to load findings for %s: %w", file, err)
	}
	if previous == nil {
		return schema.Snapshot{File: file}, nil
	}
	snap := schema.Snapshot{File: file, Findings: MatchWithServer(previous.Findings, server)}
	p.cache.Put(file, snap)
	return snap, nil
}
