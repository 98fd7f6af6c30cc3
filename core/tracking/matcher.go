// Package tracking carries finding identities across analysis runs.
package tracking

import (
	"slices"

	"github.com/huangsam/stablelint/schema"
)

// searchKey is the comparison key of one matching pass. Fields a pass does not
// use stay zero, and absent values compare equal to each other.
type searchKey struct {
	rule          string
	message       string
	textRangeHash string
	lineHash      string
	serverKey     string
	line          int
}

// keyFunc derives the search key of a finding for one pass.
// It returns false when the finding cannot take part in the pass.
type keyFunc func(t schema.Trackable) (searchKey, bool)

// passes lists the matching passes from most to least discriminant.
var passes = []keyFunc{
	// same rule, line and text range, message may have changed
	func(t schema.Trackable) (searchKey, bool) {
		fp := t.GetFingerprint()
		return searchKey{rule: fp.RuleKey, line: fp.Line, textRangeHash: fp.TextRangeHash}, true
	},
	// same rule, message and text range
	func(t schema.Trackable) (searchKey, bool) {
		fp := t.GetFingerprint()
		return searchKey{rule: fp.RuleKey, message: fp.Message, textRangeHash: fp.TextRangeHash}, true
	},
	// same rule, line and message
	func(t schema.Trackable) (searchKey, bool) {
		fp := t.GetFingerprint()
		return searchKey{rule: fp.RuleKey, line: fp.Line, message: fp.Message}, true
	},
	// same rule and text range, code moved and message changed
	func(t schema.Trackable) (searchKey, bool) {
		fp := t.GetFingerprint()
		return searchKey{rule: fp.RuleKey, textRangeHash: fp.TextRangeHash}, true
	},
	// same rule, line and line content
	func(t schema.Trackable) (searchKey, bool) {
		fp := t.GetFingerprint()
		return searchKey{rule: fp.RuleKey, line: fp.Line, lineHash: fp.LineHash}, true
	},
	// same rule and line content
	func(t schema.Trackable) (searchKey, bool) {
		fp := t.GetFingerprint()
		return searchKey{rule: fp.RuleKey, lineHash: fp.LineHash}, true
	},
	// same server key, only when both sides know one
	func(t schema.Trackable) (searchKey, bool) {
		key := t.GetServerKey()
		return searchKey{serverKey: key}, key != ""
	},
}

// Track computes a best-effort one-to-one correspondence between raws and
// bases. The result maps a raw index to the index of its matched base; raws
// without a predecessor are absent from it.
//
// Within a pass, a raw picks among equally keyed bases the one whose start
// line is closest, then the one listed first, so the result depends only on
// the inputs.
func Track[R, B schema.Trackable](raws []R, bases []B) map[int]int {
	matches := make(map[int]int, min(len(raws), len(bases)))
	baseTaken := make([]bool, len(bases))

	for _, pass := range passes {
		if len(matches) == len(raws) || len(matches) == len(bases) {
			break
		}
		matchPass(pass, raws, bases, matches, baseTaken)
	}
	return matches
}

func matchPass[R, B schema.Trackable](key keyFunc, raws []R, bases []B, matches map[int]int, baseTaken []bool) {
	buckets := make(map[searchKey][]int)
	for bi, b := range bases {
		if baseTaken[bi] {
			continue
		}
		if k, ok := key(b); ok {
			buckets[k] = append(buckets[k], bi)
		}
	}
	if len(buckets) == 0 {
		return
	}

	for ri, r := range raws {
		if _, done := matches[ri]; done {
			continue
		}
		k, ok := key(r)
		if !ok {
			continue
		}
		candidates := buckets[k]
		if len(candidates) == 0 {
			continue
		}
		pos := closest(r.GetFingerprint().StartLine(), candidates, bases)
		bi := candidates[pos]
		matches[ri] = bi
		baseTaken[bi] = true
		buckets[k] = slices.Delete(candidates, pos, pos+1)
	}
}

// closest returns the position in candidates of the base nearest to line.
// Candidates are in ascending index order, so the first minimum wins ties.
func closest[B schema.Trackable](line int, candidates []int, bases []B) int {
	best, bestDist := 0, -1
	for pos, bi := range candidates {
		d := bases[bi].GetFingerprint().StartLine() - line
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = pos, d
		}
	}
	return best
}

// Match correlates freshly reported findings with the previously tracked ones of the same file.
func Match(raw []schema.RawFinding, previous []schema.TrackedFinding) map[int]int {
	return Track(raw, previous)
}
