package schema

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// TextRange locates a finding in a file. Lines are 1-based, offsets 0-based.
type TextRange struct {
	StartLine       int `json:"startLine"`
	StartLineOffset int `json:"startLineOffset"`
	EndLine         int `json:"endLine"`
	EndLineOffset   int `json:"endLineOffset"`
}

// Fingerprint is the tolerant comparison key used to decide whether two findings
// from different runs are the same. Zero values mean "absent".
type Fingerprint struct {
	RuleKey       string     `json:"ruleKey"`
	Message       string     `json:"message"`
	Line          int        `json:"line,omitempty"`
	TextRange     *TextRange `json:"textRange,omitempty"`
	TextRangeHash string     `json:"textRangeHash,omitempty"`
	LineHash      string     `json:"lineHash,omitempty"`
}

// Checksum returns the md5 hex digest of content with all whitespace removed,
// so reformatting does not change the hash.
func Checksum(content string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, content)
	sum := md5.Sum([]byte(stripped))
	return hex.EncodeToString(sum[:])
}

// NewFingerprint builds a fingerprint and derives its hashes from the file content.
func NewFingerprint(ruleKey, message string, rng *TextRange, content string) Fingerprint {
	fp := Fingerprint{RuleKey: ruleKey, Message: message, TextRange: rng}
	if rng != nil {
		fp.Line = rng.StartLine
	}
	fp.FillHashes(content)
	return fp
}

// FillHashes computes the range and line hashes from content when they are missing.
func (f *Fingerprint) FillHashes(content string) {
	if content == "" {
		return
	}
	if f.Line == 0 && f.TextRange != nil {
		f.Line = f.TextRange.StartLine
	}
	if f.TextRangeHash == "" && f.TextRange != nil {
		if text, ok := RangeContent(content, *f.TextRange); ok {
			f.TextRangeHash = Checksum(text)
		}
	}
	if f.LineHash == "" && f.Line > 0 {
		if text, ok := LineContent(content, f.Line); ok {
			f.LineHash = Checksum(text)
		}
	}
}

// StartLine returns the best known line of the finding, or 0.
func (f Fingerprint) StartLine() int {
	if f.TextRange != nil && f.TextRange.StartLine > 0 {
		return f.TextRange.StartLine
	}
	return f.Line
}

// LineContent returns the text of a 1-based line.
func LineContent(content string, line int) (string, bool) {
	lines := strings.Split(content, "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}
	return strings.TrimSuffix(lines[line-1], "\r"), true
}

// RangeContent returns the text covered by rng. Offsets past the end of a line are clamped.
func RangeContent(content string, rng TextRange) (string, bool) {
	lines := strings.Split(content, "\n")
	if rng.StartLine < 1 || rng.EndLine < rng.StartLine || rng.EndLine > len(lines) {
		return "", false
	}
	clamp := func(s string, off int) int {
		return max(0, min(off, len(s)))
	}
	if rng.StartLine == rng.EndLine {
		l := lines[rng.StartLine-1]
		start, end := clamp(l, rng.StartLineOffset), clamp(l, rng.EndLineOffset)
		if end < start {
			return "", false
		}
		return l[start:end], true
	}
	var b strings.Builder
	first := lines[rng.StartLine-1]
	b.WriteString(first[clamp(first, rng.StartLineOffset):])
	for i := rng.StartLine; i < rng.EndLine-1; i++ {
		b.WriteString("\n")
		b.WriteString(lines[i])
	}
	last := lines[rng.EndLine-1]
	b.WriteString("\n")
	b.WriteString(last[:clamp(last, rng.EndLineOffset)])
	return b.String(), true
}

// Trackable is any finding that can take part in matching. The set of
// implementations is closed: RawFinding, TrackedFinding and ServerFinding.
type Trackable interface {
	GetFingerprint() Fingerprint
	GetServerKey() string
	Origin() Origin
	trackable()
}

// RawFinding is what the analysis engine reports for a file.
type RawFinding struct {
	Fingerprint
	Severity Severity    `json:"severity,omitempty"`
	Type     FindingType `json:"type,omitempty"`
}

// TrackedFinding is a raw finding with a stable identity carried across runs.
type TrackedFinding struct {
	ID string `json:"id"`
	Fingerprint
	Severity     Severity    `json:"severity,omitempty"`
	Type         FindingType `json:"type,omitempty"`
	IntroducedAt time.Time   `json:"introducedAt"`
	ServerKey    string      `json:"serverKey,omitempty"`
	Resolved     bool        `json:"resolved"`
}

// ServerFinding is a finding known to the remote server.
type ServerFinding struct {
	Key string `json:"key"`
	Fingerprint
	Severity     Severity  `json:"severity,omitempty"`
	IntroducedAt time.Time `json:"introducedAt"`
	Resolved     bool      `json:"resolved"`
}

// GetFingerprint implements Trackable.
func (f RawFinding) GetFingerprint() Fingerprint { return f.Fingerprint }

// GetServerKey implements Trackable.
func (f RawFinding) GetServerKey() string { return "" }

// Origin implements Trackable.
func (f RawFinding) Origin() Origin { return LocalOrigin }

func (RawFinding) trackable() {}

// GetFingerprint implements Trackable.
func (f TrackedFinding) GetFingerprint() Fingerprint { return f.Fingerprint }

// GetServerKey implements Trackable.
func (f TrackedFinding) GetServerKey() string { return f.ServerKey }

// Origin implements Trackable.
func (f TrackedFinding) Origin() Origin { return LocalOrigin }

func (TrackedFinding) trackable() {}

// GetFingerprint implements Trackable.
func (f ServerFinding) GetFingerprint() Fingerprint { return f.Fingerprint }

// GetServerKey implements Trackable.
func (f ServerFinding) GetServerKey() string { return f.Key }

// Origin implements Trackable.
func (f ServerFinding) Origin() Origin { return ServerOrigin }

func (ServerFinding) trackable() {}

// Snapshot is the ordered set of tracked findings of one file.
// File is relative to the project root and uses forward slashes.
type Snapshot struct {
	File     string           `json:"file"`
	Findings []TrackedFinding `json:"findings"`
}

// Validate reports duplicate identities, which would break matching.
func (s Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Findings))
	for _, f := range s.Findings {
		if f.ID == "" {
			return fmt.Errorf("finding without identity in %s", s.File)
		}
		if _, ok := seen[f.ID]; ok {
			return fmt.Errorf("duplicate finding identity %s in %s", f.ID, s.File)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// Clone returns a copy that shares no slice with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{File: s.File}
	if s.Findings != nil {
		out.Findings = make([]TrackedFinding, len(s.Findings))
		copy(out.Findings, s.Findings)
	}
	return out
}
