// Package branch elects the server branch that best represents a local working copy.
package branch

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"golang.org/x/sync/singleflight"
)

// verdictKey identifies a resolution: the verdict only depends on where HEAD is
// and which branches the server knows.
type verdictKey struct {
	head       string
	candidates string
}

type verdict struct {
	branch string
	ok     bool
}

// Resolver picks the candidate branch closest to HEAD in the commit graph.
// Verdicts are cached per (head, candidates, main); distances are not.
type Resolver struct {
	repo   contract.GitRepo
	logger hclog.Logger

	mu       sync.RWMutex
	verdicts map[verdictKey]verdict
	group    singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger.
func WithResolverLogger(logger hclog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a Resolver over repo.
func NewResolver(repo contract.GitRepo, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:     repo,
		logger:   hclog.NewNullLogger(),
		verdicts: make(map[verdictKey]verdict),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the candidate that best represents the working copy, or
// false when none does. It never fails: git errors turn into "no match".
//
// The checked-out branch wins outright when the server knows it. Otherwise
// every candidate with a local tip is scored by commits ahead plus commits
// behind its merge-base with HEAD. On a tie, main wins, then the smallest name.
func (r *Resolver) Resolve(ctx context.Context, candidates schema.BranchCandidates) (string, bool) {
	names := candidates.Sorted()
	if len(names) == 0 {
		return "", false
	}

	head, err := r.repo.HeadRevision(ctx)
	if err != nil {
		r.logger.Warn("failed to read HEAD, no branch elected", "error", err)
		return "", false
	}
	if head == "" {
		r.logger.Debug("repository has no commits")
		return "", false
	}

	current, err := r.repo.CurrentBranch(ctx)
	if err != nil {
		r.logger.Warn("failed to read current branch, no branch elected", "error", err)
		return "", false
	}
	if current != "" && candidates.Contains(current) {
		return current, true
	}

	key := verdictKey{head: head, candidates: candidates.Key()}
	r.mu.RLock()
	v, ok := r.verdicts[key]
	r.mu.RUnlock()
	if ok {
		return v.branch, v.ok
	}

	res, _, _ := r.group.Do(key.head+"\x00"+key.candidates, func() (any, error) {
		v, clean := r.elect(ctx, head, names, candidates.Main)
		if clean {
			r.mu.Lock()
			r.verdicts[key] = v
			r.mu.Unlock()
		}
		return v, nil
	})
	v = res.(verdict)
	return v.branch, v.ok
}

// elect scores every candidate. clean is false when any git query failed,
// in which case the verdict must not be cached.
func (r *Resolver) elect(ctx context.Context, head string, names []string, main string) (v verdict, clean bool) {
	clean = true
	best := -1
	var group []string

	for _, name := range names {
		distance, err := r.distance(ctx, head, name)
		if err != nil {
			clean = false
			if errors.Is(err, contract.ErrGitUnavailable) {
				r.logger.Warn("git unavailable, no branch elected", "error", err)
				return verdict{}, false
			}
			r.logger.Debug("skipping branch", "branch", name, "error", err)
			continue
		}
		if distance < 0 {
			continue
		}
		switch {
		case best < 0 || distance < best:
			best = distance
			group = []string{name}
		case distance == best:
			group = append(group, name)
		}
	}

	if len(group) == 0 {
		return verdict{}, clean
	}
	for _, name := range group {
		if name == main {
			return verdict{branch: name, ok: true}, clean
		}
	}
	// names is sorted, so is the group.
	return verdict{branch: group[0], ok: true}, clean
}

// distance returns ahead+behind between HEAD and the tip of name, or -1 when
// the branch has no local tip or shares no history with HEAD.
func (r *Resolver) distance(ctx context.Context, head, name string) (int, error) {
	tip, err := r.repo.LocalBranchTip(ctx, name)
	if err != nil || tip == "" {
		return -1, err
	}
	base, err := r.repo.MergeBase(ctx, head, tip)
	if err != nil || base == "" {
		return -1, err
	}
	ahead, err := r.repo.CountCommits(ctx, base, head)
	if err != nil {
		return -1, err
	}
	behind, err := r.repo.CountCommits(ctx, base, tip)
	if err != nil {
		return -1, err
	}
	return ahead + behind, nil
}

// Reset drops every cached verdict.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.verdicts)
}

// cached returns the number of cached verdicts.
func (r *Resolver) cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.verdicts)
}
