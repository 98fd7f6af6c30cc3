package tracking

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/huangsam/stablelint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(rule string, line int, msg string) schema.RawFinding {
	return schema.RawFinding{Fingerprint: schema.Fingerprint{RuleKey: rule, Line: line, Message: msg}}
}

func tracked(id, rule string, line int, msg string) schema.TrackedFinding {
	return schema.TrackedFinding{ID: id, Fingerprint: schema.Fingerprint{RuleKey: rule, Line: line, Message: msg}}
}

func TestMatch_Passes(t *testing.T) {
	tests := []struct {
		name     string
		raw      []schema.RawFinding
		previous []schema.TrackedFinding
		want     map[int]int
	}{
		{
			name:     "exact match",
			raw:      []schema.RawFinding{raw("r1", 10, "m")},
			previous: []schema.TrackedFinding{tracked("a", "r1", 10, "m")},
			want:     map[int]int{0: 0},
		},
		{
			name:     "line shifted by insertion above",
			raw:      []schema.RawFinding{raw("r1", 11, "m")},
			previous: []schema.TrackedFinding{tracked("a", "r1", 10, "m")},
			want:     map[int]int{0: 0},
		},
		{
			name:     "message changed on same line",
			raw:      []schema.RawFinding{raw("r1", 10, "new message")},
			previous: []schema.TrackedFinding{tracked("a", "r1", 10, "old message")},
			want:     map[int]int{0: 0},
		},
		{
			name:     "rule must match",
			raw:      []schema.RawFinding{raw("r2", 10, "m")},
			previous: []schema.TrackedFinding{tracked("a", "r1", 10, "m")},
			want:     map[int]int{},
		},
		{
			name:     "nothing previous",
			raw:      []schema.RawFinding{raw("r1", 1, "m")},
			previous: nil,
			want:     map[int]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.raw, tt.previous))
		})
	}
}

func TestMatch_TextRangeHashSurvivesMove(t *testing.T) {
	prev := tracked("a", "r1", 10, "old")
	prev.TextRangeHash = schema.Checksum("x := foo()")
	prev.LineHash = schema.Checksum("\tx := foo()")

	other := tracked("b", "r1", 40, "other")
	other.TextRangeHash = schema.Checksum("y := bar()")

	moved := raw("r1", 25, "new")
	moved.TextRangeHash = schema.Checksum("x := foo()")

	got := Match([]schema.RawFinding{moved}, []schema.TrackedFinding{other, prev})
	assert.Equal(t, map[int]int{0: 1}, got)
}

func TestMatch_LineHashPass(t *testing.T) {
	prev := tracked("a", "r1", 3, "m1")
	prev.TextRangeHash = "range-old"
	prev.LineHash = schema.Checksum("return err")

	r := raw("r1", 7, "m2")
	r.TextRangeHash = "range-new"
	r.LineHash = schema.Checksum("return err")

	assert.Equal(t, map[int]int{0: 0}, Match([]schema.RawFinding{r}, []schema.TrackedFinding{prev}))
}

func TestMatch_ClosestLineWins(t *testing.T) {
	previous := []schema.TrackedFinding{
		tracked("far", "r1", 50, "m"),
		tracked("near", "r1", 12, "m"),
		tracked("mid", "r1", 30, "m"),
	}
	got := Match([]schema.RawFinding{raw("r1", 11, "m")}, previous)
	assert.Equal(t, map[int]int{0: 1}, got)

	t.Run("equal distance falls to first listed", func(t *testing.T) {
		previous := []schema.TrackedFinding{
			tracked("above", "r1", 9, "m"),
			tracked("below", "r1", 13, "m"),
		}
		got := Match([]schema.RawFinding{raw("r1", 11, "m")}, previous)
		assert.Equal(t, map[int]int{0: 0}, got)
	})
}

func TestMatch_DuplicateFindingsPairOneToOne(t *testing.T) {
	previous := []schema.TrackedFinding{
		tracked("a", "r1", 10, "m"),
		tracked("b", "r1", 10, "m"),
	}
	rawBatch := []schema.RawFinding{raw("r1", 10, "m"), raw("r1", 10, "m"), raw("r1", 10, "m")}

	got := Match(rawBatch, previous)
	assert.Equal(t, map[int]int{0: 0, 1: 1}, got)
}

func TestMatch_IsOneToOne(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	rules := []string{"r1", "r2", "r3"}
	msgs := []string{"a", "b"}

	for iter := range 200 {
		var previous []schema.TrackedFinding
		for i := range rng.IntN(15) {
			f := tracked(fmt.Sprint(i), rules[rng.IntN(len(rules))], rng.IntN(20), msgs[rng.IntN(len(msgs))])
			if rng.IntN(2) == 0 {
				f.LineHash = fmt.Sprint(rng.IntN(3))
			}
			previous = append(previous, f)
		}
		var batch []schema.RawFinding
		for range rng.IntN(15) {
			r := raw(rules[rng.IntN(len(rules))], rng.IntN(20), msgs[rng.IntN(len(msgs))])
			if rng.IntN(2) == 0 {
				r.LineHash = fmt.Sprint(rng.IntN(3))
			}
			batch = append(batch, r)
		}

		got := Match(batch, previous)
		seen := make(map[int]int)
		for ri, bi := range got {
			require.Less(t, ri, len(batch), "iteration %d", iter)
			require.Less(t, bi, len(previous), "iteration %d", iter)
			require.Equal(t, batch[ri].RuleKey, previous[bi].RuleKey, "rule must match exactly")
			if other, dup := seen[bi]; dup {
				t.Fatalf("iteration %d: previous %d matched by raws %d and %d", iter, bi, other, ri)
			}
			seen[bi] = ri
		}

		// Determinism: same inputs, same answer.
		assert.Equal(t, got, Match(batch, previous))
	}
}

func TestTrack_ServerKeyPass(t *testing.T) {
	local := []schema.TrackedFinding{{ID: "1", ServerKey: "AX-1", Fingerprint: schema.Fingerprint{RuleKey: "r1", Line: 5}}}
	server := []schema.ServerFinding{{Key: "AX-1", Fingerprint: schema.Fingerprint{RuleKey: "r2", Line: 105}}}
	assert.Equal(t, map[int]int{0: 0}, Track(local, server))

	t.Run("blank keys never pair", func(t *testing.T) {
		local := []schema.TrackedFinding{{ID: "1", Fingerprint: schema.Fingerprint{RuleKey: "r1"}}}
		server := []schema.ServerFinding{{Fingerprint: schema.Fingerprint{RuleKey: "r2"}}}
		assert.Empty(t, Track(local, server))
	})
}
