// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"errors"

	"github.com/huangsam/stablelint/schema"
)

// ErrGitUnavailable means the git tooling itself cannot be used, as opposed to
// a single query failing. Branch resolution gives up entirely on this error.
var ErrGitUnavailable = errors.New("git is not available")

// ErrNotFound is returned by stores that distinguish absence from failure.
var ErrNotFound = errors.New("not found")

// GitRepo defines the version-control queries needed for branch resolution.
// This allows the resolver to be tested without needing a real git executable.
type GitRepo interface {
	// Root returns the working tree root the repository is bound to.
	Root() string

	// CurrentBranch returns the short name of the checked-out branch, or "" when HEAD is detached.
	CurrentBranch(ctx context.Context) (string, error)

	// HeadRevision returns the commit hash of HEAD, or "" for a repository without commits.
	HeadRevision(ctx context.Context) (string, error)

	// LocalBranchTip returns the commit hash of refs/heads/<branch>, or "" when the branch does not exist.
	LocalBranchTip(ctx context.Context, branch string) (string, error)

	// MergeBase returns the best common ancestor of two revisions, or "" when they are unrelated.
	MergeBase(ctx context.Context, a, b string) (string, error)

	// CountCommits returns the number of commits reachable from to but not from from (from..to).
	CountCommits(ctx context.Context, from, to string) (int, error)
}

// FindingStore defines the persistent, long-term owner of per-file finding snapshots.
type FindingStore interface {
	// Save replaces the snapshot stored for file.
	Save(file string, findings []schema.TrackedFinding) error

	// Read returns the stored snapshot for file, or (nil, false, nil) when absent.
	Read(file string) ([]schema.TrackedFinding, bool, error)

	// Contains reports whether a snapshot is stored for file.
	Contains(file string) (bool, error)

	// Delete removes the snapshot for file. Deleting a missing file is not an error.
	Delete(file string) error

	// Clear removes every stored snapshot.
	Clear() error

	// GetStatus returns status information about the store.
	GetStatus() (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// StoreManager defines the interface for managing the process-wide stores.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetFindingStore() FindingStore
}
