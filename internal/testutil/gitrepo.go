// Package testutil seeds git repositories for tests without a git executable.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRepo is a repository under construction.
type GitRepo struct {
	t    testing.TB
	Dir  string
	Repo *git.Repository
	wt   *git.Worktree
	n    int
}

// NewGitRepo initializes an empty repository whose HEAD points at main.
func NewGitRepo(t testing.TB) *GitRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))
	if err := repo.Storer.SetReference(head); err != nil {
		t.Fatalf("SetReference HEAD: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	return &GitRepo{t: t, Dir: dir, Repo: repo, wt: wt}
}

// Commit writes a unique file on the current branch and commits it.
func (g *GitRepo) Commit(msg string) plumbing.Hash {
	g.t.Helper()

	g.n++
	name := fmt.Sprintf("file-%03d.txt", g.n)
	if err := os.WriteFile(filepath.Join(g.Dir, name), []byte(msg+"\n"), 0o644); err != nil {
		g.t.Fatalf("WriteFile: %v", err)
	}
	if _, err := g.wt.Add(name); err != nil {
		g.t.Fatalf("Add: %v", err)
	}
	hash, err := g.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "tester",
			Email: "tester@example.com",
			When:  time.Date(2024, 1, 1, 0, 0, g.n, 0, time.UTC),
		},
	})
	if err != nil {
		g.t.Fatalf("Commit: %v", err)
	}
	return hash
}

// Branch creates a branch pointing at HEAD without checking it out.
func (g *GitRepo) Branch(name string) {
	g.t.Helper()

	head, err := g.Repo.Head()
	if err != nil {
		g.t.Fatalf("Head: %v", err)
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	if err := g.Repo.Storer.SetReference(ref); err != nil {
		g.t.Fatalf("SetReference %s: %v", name, err)
	}
}

// Checkout switches the worktree to an existing branch.
func (g *GitRepo) Checkout(name string) {
	g.t.Helper()

	if err := g.wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)}); err != nil {
		g.t.Fatalf("Checkout %s: %v", name, err)
	}
}

// Detach points HEAD directly at hash.
func (g *GitRepo) Detach(hash plumbing.Hash) {
	g.t.Helper()

	if err := g.wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		g.t.Fatalf("Checkout %s: %v", hash, err)
	}
}

// FeatureScenario seeds main plus feature-a (1 commit ahead of main) and
// feature-b (3 commits ahead of main), leaving feature-a checked out.
func FeatureScenario(t testing.TB) *GitRepo {
	t.Helper()

	g := NewGitRepo(t)
	g.Commit("initial")
	g.Commit("shared ancestor")

	g.Branch("feature-b")
	g.Branch("feature-a")

	g.Checkout("feature-b")
	g.Commit("b1")
	g.Commit("b2")
	g.Commit("b3")

	g.Checkout("feature-a")
	g.Commit("a1")
	return g
}
