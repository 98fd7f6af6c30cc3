// Package gitclient has the in-process git client.
package gitclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/huangsam/stablelint/internal/contract"
)

// Repo implements contract.GitRepo with go-git, without a git executable.
type Repo struct {
	root string
	repo *git.Repository
}

var _ contract.GitRepo = &Repo{} // Compile-time check

// Open opens the repository containing path.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", path, err)
	}
	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &Repo{root: root, repo: repo}, nil
}

// Root implements contract.GitRepo.
func (r *Repo) Root() string {
	return r.root
}

// CurrentBranch implements contract.GitRepo.
func (r *Repo) CurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "", nil
	}
	return head.Target().Short(), nil
}

// HeadRevision implements contract.GitRepo.
func (r *Repo) HeadRevision(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// LocalBranchTip implements contract.GitRepo.
func (r *Repo) LocalBranchTip(_ context.Context, branch string) (string, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}
	return ref.Hash().String(), nil
}

// MergeBase implements contract.GitRepo.
func (r *Repo) MergeBase(_ context.Context, a, b string) (string, error) {
	ca, err := r.repo.CommitObject(plumbing.NewHash(a))
	if err != nil {
		return "", fmt.Errorf("failed to load commit %s: %w", a, err)
	}
	cb, err := r.repo.CommitObject(plumbing.NewHash(b))
	if err != nil {
		return "", fmt.Errorf("failed to load commit %s: %w", b, err)
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", fmt.Errorf("failed to compute merge-base: %w", err)
	}
	if len(bases) == 0 {
		return "", nil
	}
	return bases[0].Hash.String(), nil
}

// CountCommits implements contract.GitRepo. It walks both histories, so it is
// linear in the size of the repository.
func (r *Repo) CountCommits(ctx context.Context, from, to string) (int, error) {
	excluded, err := r.ancestors(ctx, plumbing.NewHash(from))
	if err != nil {
		return 0, err
	}
	count := 0
	err = r.walk(ctx, plumbing.NewHash(to), func(c *object.Commit) error {
		if _, ok := excluded[c.Hash]; ok {
			return nil
		}
		count++
		return nil
	})
	return count, err
}

// ancestors returns every commit reachable from start, start included.
func (r *Repo) ancestors(ctx context.Context, start plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	seen := make(map[plumbing.Hash]struct{})
	err := r.walk(ctx, start, func(c *object.Commit) error {
		seen[c.Hash] = struct{}{}
		return nil
	})
	return seen, err
}

// walk visits every commit reachable from start once.
func (r *Repo) walk(ctx context.Context, start plumbing.Hash, fn func(*object.Commit) error) error {
	commit, err := r.repo.CommitObject(start)
	if err != nil {
		return fmt.Errorf("failed to load commit %s: %w", start, err)
	}
	iter := object.NewCommitPreorderIter(commit, nil, nil)
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(c)
	})
	if errors.Is(err, storer.ErrStop) {
		return nil
	}
	return err
}
