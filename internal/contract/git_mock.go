package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGitRepo is a mock implementation of GitRepo for testing.
type MockGitRepo struct {
	mock.Mock
}

var _ GitRepo = &MockGitRepo{} // Compile-time check

// Root implements the GitRepo interface.
func (m *MockGitRepo) Root() string {
	ret := m.Called()
	return ret.String(0)
}

// CurrentBranch implements the GitRepo interface.
func (m *MockGitRepo) CurrentBranch(ctx context.Context) (string, error) {
	ret := m.Called(ctx)
	return ret.String(0), ret.Error(1)
}

// HeadRevision implements the GitRepo interface.
func (m *MockGitRepo) HeadRevision(ctx context.Context) (string, error) {
	ret := m.Called(ctx)
	return ret.String(0), ret.Error(1)
}

// LocalBranchTip implements the GitRepo interface.
func (m *MockGitRepo) LocalBranchTip(ctx context.Context, branch string) (string, error) {
	ret := m.Called(ctx, branch)
	return ret.String(0), ret.Error(1)
}

// MergeBase implements the GitRepo interface.
func (m *MockGitRepo) MergeBase(ctx context.Context, a, b string) (string, error) {
	ret := m.Called(ctx, a, b)
	return ret.String(0), ret.Error(1)
}

// CountCommits implements the GitRepo interface.
func (m *MockGitRepo) CountCommits(ctx context.Context, from, to string) (int, error) {
	ret := m.Called(ctx, from, to)
	return ret.Int(0), ret.Error(1)
}
