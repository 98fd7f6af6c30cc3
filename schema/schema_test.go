package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	t.Run("ignores whitespace", func(t *testing.T) {
		assert.Equal(t, Checksum("foo(bar)"), Checksum("  foo ( bar )\n\t"))
	})

	t.Run("md5 of stripped content", func(t *testing.T) {
		// md5("") is well known
		assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Checksum(" \n "))
	})

	t.Run("different content differs", func(t *testing.T) {
		assert.NotEqual(t, Checksum("a"), Checksum("b"))
	})
}

func TestRangeContent(t *testing.T) {
	content := "line one\nline two\nline three"

	tests := []struct {
		name string
		rng  TextRange
		want string
		ok   bool
	}{
		{"single line", TextRange{StartLine: 2, StartLineOffset: 5, EndLine: 2, EndLineOffset: 8}, "two", true},
		{"multi line", TextRange{StartLine: 1, StartLineOffset: 5, EndLine: 2, EndLineOffset: 4}, "one\nline", true},
		{"clamped offset", TextRange{StartLine: 3, StartLineOffset: 5, EndLine: 3, EndLineOffset: 100}, "three", true},
		{"out of bounds", TextRange{StartLine: 4, EndLine: 4}, "", false},
		{"inverted", TextRange{StartLine: 2, EndLine: 1}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RangeContent(content, tt.rng)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFingerprint(t *testing.T) {
	content := "package main\n\nfunc main() {\n\tpanic(1)\n}\n"
	rng := &TextRange{StartLine: 4, StartLineOffset: 1, EndLine: 4, EndLineOffset: 9}
	fp := NewFingerprint("go:S1", "Do not panic", rng, content)

	assert.Equal(t, 4, fp.Line)
	assert.Equal(t, Checksum("panic(1)"), fp.TextRangeHash)
	assert.Equal(t, Checksum("\tpanic(1)"), fp.LineHash)
	assert.Equal(t, 4, fp.StartLine())

	t.Run("keeps existing hashes", func(t *testing.T) {
		fp := Fingerprint{RuleKey: "r", Line: 1, LineHash: "given"}
		fp.FillHashes("x")
		assert.Equal(t, "given", fp.LineHash)
	})
}

func TestTrackableOrigins(t *testing.T) {
	var items []Trackable = []Trackable{
		RawFinding{},
		TrackedFinding{ServerKey: "k1"},
		ServerFinding{Key: "k2"},
	}
	assert.Equal(t, LocalOrigin, items[0].Origin())
	assert.Equal(t, "k1", items[1].GetServerKey())
	assert.Equal(t, ServerOrigin, items[2].Origin())
	assert.Equal(t, "k2", items[2].GetServerKey())
}

func TestSnapshotValidate(t *testing.T) {
	now := time.Now()
	ok := Snapshot{File: "a.go", Findings: []TrackedFinding{{ID: "1", IntroducedAt: now}, {ID: "2"}}}
	require.NoError(t, ok.Validate())

	dup := Snapshot{File: "a.go", Findings: []TrackedFinding{{ID: "1"}, {ID: "1"}}}
	assert.ErrorContains(t, dup.Validate(), "duplicate finding identity")

	missing := Snapshot{File: "a.go", Findings: []TrackedFinding{{}}}
	assert.Error(t, missing.Validate())
}

func TestSnapshotClone(t *testing.T) {
	s := Snapshot{File: "a.go", Findings: []TrackedFinding{{ID: "1"}}}
	c := s.Clone()
	c.Findings[0].ID = "2"
	assert.Equal(t, "1", s.Findings[0].ID)
}

func TestBranchCandidates(t *testing.T) {
	c := NewBranchCandidates([]string{"b", "a", " ", "b", "main"}, "")
	assert.Equal(t, DefaultMainBranch, c.Main)
	assert.Equal(t, []string{"a", "b", "main"}, c.Sorted())
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains(""))

	padded := NewBranchCandidates([]string{" main", "feature-x\t"}, " trunk ")
	assert.Equal(t, "trunk", padded.Main)
	assert.True(t, padded.Contains("main"))
	assert.True(t, padded.Contains("feature-x"))
	assert.False(t, padded.Contains(" main"))

	other := NewBranchCandidates([]string{"main", "a", "b"}, "main")
	assert.Equal(t, c.Key(), other.Key())
	assert.NotEqual(t, c.Key(), NewBranchCandidates([]string{"a"}, "main").Key())
}
