package branch

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"golang.org/x/sync/errgroup"
)

// defaultRefreshLimit caps the number of modules resolved at once.
const defaultRefreshLimit = 4

// ChangeFunc is notified when the elected branch of a module changes.
// branch is empty when the module no longer matches any server branch.
type ChangeFunc func(module, branch string)

type moduleState struct {
	resolver   *Resolver
	candidates schema.BranchCandidates
	branch     string
	matched    bool
	resolved   bool
}

// Service tracks the elected server branch of every registered module.
type Service struct {
	logger hclog.Logger
	limit  int

	mu      sync.RWMutex
	modules map[string]*moduleState

	lmu       sync.Mutex
	listeners []ChangeFunc
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger hclog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithRefreshLimit sets how many modules are resolved concurrently.
func WithRefreshLimit(n int) ServiceOption {
	return func(s *Service) { s.limit = n }
}

// NewService creates an empty Service.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		logger:  hclog.NewNullLogger(),
		limit:   defaultRefreshLimit,
		modules: make(map[string]*moduleState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register binds module to a repository and its server branch set.
// A nil repo is accepted; such a module never matches.
func (s *Service) Register(module string, repo contract.GitRepo, candidates schema.BranchCandidates) {
	st := &moduleState{candidates: candidates}
	if repo != nil {
		st.resolver = NewResolver(repo, WithResolverLogger(s.logger.Named(module)))
	}
	s.mu.Lock()
	s.modules[module] = st
	s.mu.Unlock()
}

// UpdateCandidates replaces the server branch set of module and re-resolves it.
func (s *Service) UpdateCandidates(ctx context.Context, module string, candidates schema.BranchCandidates) {
	s.mu.Lock()
	st, ok := s.modules[module]
	if ok {
		st.candidates = candidates
	}
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("unknown module", "module", module)
		return
	}
	s.refreshModule(ctx, module)
}

// OnChange registers fn to be called after a refresh changes a module's branch.
func (s *Service) OnChange(fn ChangeFunc) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ServerBranch returns the last elected branch of module.
func (s *Service) ServerBranch(module string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.modules[module]
	if !ok || !st.matched {
		return "", false
	}
	return st.branch, true
}

// Results returns the current election of every module, sorted by module.
func (s *Service) Results() []schema.BranchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.BranchResult, 0, len(s.modules))
	for _, module := range slices.Sorted(maps.Keys(s.modules)) {
		st := s.modules[module]
		out = append(out, schema.BranchResult{Module: module, Branch: st.branch, Matched: st.matched})
	}
	return out
}

// Refresh re-resolves every module concurrently.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.RLock()
	modules := slices.Sorted(maps.Keys(s.modules))
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, module := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.refreshModule(gctx, module)
			return nil
		})
	}
	return g.Wait()
}

// Clear drops every elected branch and cached verdict. Registrations are kept.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.modules {
		st.branch, st.matched, st.resolved = "", false, false
		if st.resolver != nil {
			st.resolver.Reset()
		}
	}
}

func (s *Service) refreshModule(ctx context.Context, module string) {
	s.mu.RLock()
	st, ok := s.modules[module]
	var resolver *Resolver
	var candidates schema.BranchCandidates
	if ok {
		resolver, candidates = st.resolver, st.candidates
	}
	s.mu.RUnlock()
	if !ok {
		return
	}

	var branch string
	var matched bool
	if resolver == nil {
		s.logger.Warn("no repository for module, no branch elected", "module", module)
	} else {
		branch, matched = resolver.Resolve(ctx, candidates)
	}

	s.mu.Lock()
	changed := st.resolved && (st.branch != branch || st.matched != matched) ||
		!st.resolved && matched
	st.branch, st.matched, st.resolved = branch, matched, true
	s.mu.Unlock()

	s.logger.Debug("resolved server branch", "module", module, "branch", branch, "matched", matched)
	if changed {
		s.notify(module, branch)
	}
}

func (s *Service) notify(module, branch string) {
	s.lmu.Lock()
	listeners := slices.Clone(s.listeners)
	s.lmu.Unlock()
	for _, fn := range listeners {
		fn(module, branch)
	}
}
