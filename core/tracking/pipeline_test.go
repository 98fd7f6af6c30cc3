package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/stablelint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSnapshotCache is a mock implementation of SnapshotCache for testing.
type mockSnapshotCache struct {
	mock.Mock
}

func (m *mockSnapshotCache) Previous(file string) (*schema.Snapshot, error) {
	ret := m.Called(file)
	snap, _ := ret.Get(0).(*schema.Snapshot)
	return snap, ret.Error(1)
}

func (m *mockSnapshotCache) Put(file string, snap schema.Snapshot) {
	m.Called(file, snap)
}

func TestPipeline_Analyze(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("first run stores new snapshot", func(t *testing.T) {
		cache := new(mockSnapshotCache)
		cache.On("Previous", "a.go").Return(nil, nil).Once()
		cache.On("Put", "a.go", mock.AnythingOfType("schema.Snapshot")).Once()

		p := NewPipeline(cache, NewReconciler(WithClock(func() time.Time { return t0 }), WithIDGenerator(sequentialIDs())))
		snap, err := p.Analyze(ctx, "a.go", []schema.RawFinding{raw("r", 1, "m")})
		require.NoError(t, err)
		assert.Equal(t, "id-1", snap.Findings[0].ID)
		cache.AssertExpectations(t)
	})

	t.Run("history read failure is not a first run", func(t *testing.T) {
		cache := new(mockSnapshotCache)
		cache.On("Previous", "a.go").Return(nil, errors.New("disk on fire")).Once()

		p := NewPipeline(cache, NewReconciler())
		_, err := p.Analyze(ctx, "a.go", nil)
		assert.ErrorContains(t, err, "disk on fire")
		cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		p := NewPipeline(new(mockSnapshotCache), NewReconciler())
		_, err := p.Analyze(cctx, "a.go", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPipeline_ApplyServer(t *testing.T) {
	prev := &schema.Snapshot{File: "a.go", Findings: []schema.TrackedFinding{tracked("1", "r", 4, "m")}}
	server := []schema.ServerFinding{{Key: "S-1", Resolved: true, Fingerprint: schema.Fingerprint{RuleKey: "r", Line: 4, Message: "m"}}}

	cache := new(mockSnapshotCache)
	cache.On("Previous", "a.go").Return(prev, nil).Once()
	cache.On("Put", "a.go", mock.MatchedBy(func(s schema.Snapshot) bool {
		return len(s.Findings) == 1 && s.Findings[0].ServerKey == "S-1"
	})).Once()

	snap, err := NewPipeline(cache, NewReconciler()).ApplyServer("a.go", server)
	require.NoError(t, err)
	assert.True(t, snap.Findings[0].Resolved)
	cache.AssertExpectations(t)

	t.Run("unknown file", func(t *testing.T) {
		cache := new(mockSnapshotCache)
		cache.On("Previous", "b.go").Return(nil, nil).Once()
		snap, err := NewPipeline(cache, NewReconciler()).ApplyServer("b.go", server)
		require.NoError(t, err)
		assert.Empty(t, snap.Findings)
	})
}
