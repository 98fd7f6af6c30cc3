package tracking

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/schema"
)

// Reconciler promotes raw findings to tracked findings, carrying identity over
// from the previous snapshot of the same file.
type Reconciler struct {
	now    func() time.Time
	newID  func() string
	logger hclog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the source of introduction timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator sets the source of new identities.
func WithIDGenerator(newID func() string) Option {
	return func(r *Reconciler) { r.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// NewReconciler creates a Reconciler using wall-clock time and random UUIDs by default.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile builds the new snapshot of file from the raw findings of this run.
//
// Without a previous snapshot every finding is new. Otherwise matched findings
// keep identity, introduction time, server key and resolution of their
// predecessor, and take fingerprint and severity from the raw finding.
// Previous findings left unmatched are dropped.
func (r *Reconciler) Reconcile(file string, raw []schema.RawFinding, previous *schema.Snapshot) schema.Snapshot {
	now := r.now().UTC()
	out := schema.Snapshot{File: file, Findings: make([]schema.TrackedFinding, 0, len(raw))}

	if previous == nil {
		for _, rf := range raw {
			out.Findings = append(out.Findings, r.promote(rf, now))
		}
		r.logger.Debug("first analysis of file", "file", file, "new", len(raw))
		return out
	}

	matches := Match(raw, previous.Findings)
	for ri, rf := range raw {
		bi, ok := matches[ri]
		if !ok {
			out.Findings = append(out.Findings, r.promote(rf, now))
			continue
		}
		prev := previous.Findings[bi]
		out.Findings = append(out.Findings, schema.TrackedFinding{
			ID:           prev.ID,
			Fingerprint:  rf.Fingerprint,
			Severity:     rf.Severity,
			Type:         rf.Type,
			IntroducedAt: prev.IntroducedAt,
			ServerKey:    prev.ServerKey,
			Resolved:     prev.Resolved,
		})
	}
	r.logger.Debug("reconciled file", "file", file,
		"matched", len(matches),
		"new", len(raw)-len(matches),
		"dropped", len(previous.Findings)-len(matches))
	return out
}

func (r *Reconciler) promote(rf schema.RawFinding, now time.Time) schema.TrackedFinding {
	return schema.TrackedFinding{
		ID:           r.newID(),
		Fingerprint:  rf.Fingerprint,
		Severity:     rf.Severity,
		Type:         rf.Type,
		IntroducedAt: now,
	}
}

// MatchWithServer correlates tracked findings with the findings the server
// knows for the same file. Matched findings take the server key and resolution.
// A finding whose server counterpart is gone loses its server key. Local
// introduction times are kept either way. The input slice is not modified.
func MatchWithServer(local []schema.TrackedFinding, server []schema.ServerFinding) []schema.TrackedFinding {
	out := make([]schema.TrackedFinding, len(local))
	copy(out, local)

	matches := Track(local, server)
	for li := range out {
		si, ok := matches[li]
		if !ok {
			out[li].ServerKey = ""
			continue
		}
		out[li].ServerKey = server[si].Key
		out[li].Resolved = server[si].Resolved
	}
	return out
}
