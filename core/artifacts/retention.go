// Package artifacts manages the on-disk cache of downloaded analyzer artifacts
// with an access-time based retention policy.
package artifacts

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/schema"
)

const (
	// MetadataFileName holds the last-access time of every artifact.
	MetadataFileName = ".metadata.json"

	metadataTmpName = MetadataFileName + ".tmp"
	day             = 24 * time.Hour
)

// ErrInvalidRetention is returned for a retention below one day.
var ErrInvalidRetention = errors.New("retention must be at least 1 day")

// CleanupReport summarizes one cleanup pass.
type CleanupReport struct {
	Skipped     bool     `json:"skipped"` // another pass was running
	Scanned     int      `json:"scanned"`
	Deleted     []string `json:"deleted"`
	Failed      []string `json:"failed"`
	Downloading []string `json:"downloading"`
	Backfilled  int      `json:"backfilled"`
}

// RetentionStore is the process-wide artifact cache. Artifacts are plain files
// in one directory; their last access is tracked in a metadata document next to them.
type RetentionStore struct {
	dir     string
	pattern string
	now     func() time.Time
	logger  hclog.Logger

	running atomic.Bool
	metaMu  sync.Mutex

	dlMu        sync.Mutex
	downloading map[string]struct{}
}

// Option configures a RetentionStore.
type Option func(*RetentionStore)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *RetentionStore) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *RetentionStore) { s.logger = logger }
}

// WithPattern restricts artifacts to file names matching a filepath.Match pattern.
func WithPattern(pattern string) Option {
	return func(s *RetentionStore) { s.pattern = pattern }
}

// NewRetentionStore creates a store over dir. The directory is created lazily.
func NewRetentionStore(dir string, opts ...Option) *RetentionStore {
	s := &RetentionStore{
		dir:         dir,
		pattern:     "*",
		now:         time.Now,
		logger:      hclog.NewNullLogger(),
		downloading: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the cache directory.
func (s *RetentionStore) Dir() string {
	return s.dir
}

// Touch records that the artifact was just used. Only the base name of path is kept.
func (s *RetentionStore) Touch(path string) error {
	name := filepath.Base(path)
	if isReserved(name) {
		return fmt.Errorf("invalid artifact name %q", name)
	}

	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	meta := s.loadMetadata()
	meta[name] = s.now().UnixMilli()
	if err := s.saveMetadata(meta); err != nil {
		return err
	}
	s.logger.Debug("updated artifact access time", "artifact", name)
	return nil
}

// MarkDownloading excludes name from cleanup until UnmarkDownloading is called.
func (s *RetentionStore) MarkDownloading(name string) {
	s.dlMu.Lock()
	defer s.dlMu.Unlock()
	s.downloading[name] = struct{}{}
}

// UnmarkDownloading makes name eligible for cleanup again.
func (s *RetentionStore) UnmarkDownloading(name string) {
	s.dlMu.Lock()
	defer s.dlMu.Unlock()
	delete(s.downloading, name)
}

// IsDownloading reports whether name is being downloaded.
func (s *RetentionStore) IsDownloading(name string) bool {
	s.dlMu.Lock()
	defer s.dlMu.Unlock()
	_, ok := s.downloading[name]
	return ok
}

// StartCleanup runs a cleanup pass in the background. The channel receives the
// report and is then closed.
func (s *RetentionStore) StartCleanup(ctx context.Context, retentionDays int) (<-chan CleanupReport, error) {
	if retentionDays < 1 {
		return nil, ErrInvalidRetention
	}
	out := make(chan CleanupReport, 1)
	go func() {
		defer close(out)
		report, err := s.RunCleanup(ctx, time.Duration(retentionDays)*day)
		if err != nil {
			s.logger.Error("artifact cleanup failed", "error", err)
		}
		out <- report
	}()
	return out, nil
}

type candidate struct {
	name   string
	access time.Time
}

// RunCleanup deletes artifacts whose last access is strictly older than
// now - retention. A call made while another pass runs returns a skipped
// report at once. The most recently used artifact that is not downloading
// always survives.
func (s *RetentionStore) RunCleanup(ctx context.Context, retention time.Duration) (CleanupReport, error) {
	if retention < day {
		return CleanupReport{}, ErrInvalidRetention
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("artifact cleanup already in progress")
		return CleanupReport{Skipped: true}, nil
	}
	defer s.running.Store(false)

	cutoff := s.now().Add(-retention)
	s.logger.Info("starting artifact cleanup", "dir", s.dir, "retention", retention)

	var report CleanupReport
	files, err := s.listArtifacts()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("artifact directory does not exist, skipping cleanup")
			return report, nil
		}
		return report, fmt.Errorf("failed to list artifacts: %w", err)
	}
	report.Scanned = len(files)
	if len(files) <= 1 {
		s.logger.Debug("at most one artifact found, skipping cleanup")
		return report, nil
	}

	s.metaMu.Lock()
	meta := s.loadMetadata()
	s.metaMu.Unlock()

	backfill := make(map[string]int64)
	var candidates []candidate
	for _, f := range files {
		name := f.Name()
		if s.IsDownloading(name) {
			s.logger.Debug("skipping artifact, currently downloading", "artifact", name)
			report.Downloading = append(report.Downloading, name)
			continue
		}
		ms, ok := meta[name]
		if !ok {
			info, err := f.Info()
			if err != nil {
				s.logger.Warn("failed to stat artifact", "artifact", name, "error", err)
				continue
			}
			ms = info.ModTime().UnixMilli()
			backfill[name] = ms
		}
		candidates = append(candidates, candidate{name: name, access: time.UnixMilli(ms)})
	}
	report.Backfilled = len(backfill)

	// Oldest first, so the newest usable artifact is the one left standing.
	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Or(a.access.Compare(b.access), strings.Compare(a.name, b.name))
	})

	usable := len(candidates)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			break
		}
		if !c.access.Before(cutoff) || usable <= 1 {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, c.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("failed to delete artifact", "artifact", c.name, "error", err)
			report.Failed = append(report.Failed, c.name)
			continue
		}
		s.logger.Info("deleted old artifact", "artifact", c.name)
		report.Deleted = append(report.Deleted, c.name)
		usable--
	}

	if err := s.mergeMetadata(backfill); err != nil {
		s.logger.Error("failed to save artifact metadata", "error", err)
	}

	if len(report.Deleted) > 0 || len(report.Failed) > 0 {
		s.logger.Info("artifact cleanup completed", "deleted", len(report.Deleted), "failed", len(report.Failed))
	} else {
		s.logger.Debug("artifact cleanup completed, no old artifacts found")
	}
	return report, ctx.Err()
}

// mergeMetadata applies the backfilled times to the current document and drops
// entries of files that are gone. Touches made during the pass are kept.
func (s *RetentionStore) mergeMetadata(backfill map[string]int64) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	meta := s.loadMetadata()
	for name, ms := range backfill {
		if _, ok := meta[name]; !ok {
			meta[name] = ms
		}
	}
	for name := range meta {
		if _, err := os.Stat(filepath.Join(s.dir, name)); errors.Is(err, fs.ErrNotExist) {
			delete(meta, name)
		}
	}
	return s.saveMetadata(meta)
}

// Status lists the artifacts currently on disk, oldest access first.
func (s *RetentionStore) Status() ([]schema.ArtifactStatus, error) {
	files, err := s.listArtifacts()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	s.metaMu.Lock()
	meta := s.loadMetadata()
	s.metaMu.Unlock()

	out := make([]schema.ArtifactStatus, 0, len(files))
	for _, f := range files {
		info, err := f.Info()
		if err != nil {
			continue
		}
		st := schema.ArtifactStatus{
			Name:        f.Name(),
			SizeBytes:   info.Size(),
			LastAccess:  info.ModTime(),
			Downloading: s.IsDownloading(f.Name()),
		}
		if ms, ok := meta[f.Name()]; ok {
			st.LastAccess = time.UnixMilli(ms)
			st.Tracked = true
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b schema.ArtifactStatus) int {
		return cmp.Or(a.LastAccess.Compare(b.LastAccess), strings.Compare(a.Name, b.Name))
	})
	return out, nil
}

// listArtifacts returns the regular files in the cache directory that match the pattern.
func (s *RetentionStore) listArtifacts() ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, e := range entries {
		if !e.Type().IsRegular() || isReserved(e.Name()) {
			continue
		}
		if ok, _ := filepath.Match(s.pattern, e.Name()); !ok {
			continue
		}
		files = append(files, e)
	}
	return files, nil
}

// isReserved reports names that are never artifacts: the metadata document,
// its temp file and any other dot file.
func isReserved(name string) bool {
	return name == "" || name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".")
}

// loadMetadata reads the metadata document. A missing or corrupt document is an empty one.
func (s *RetentionStore) loadMetadata() map[string]int64 {
	meta := make(map[string]int64)
	data, err := os.ReadFile(filepath.Join(s.dir, MetadataFileName))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read artifact metadata, starting fresh", "error", err)
		}
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("corrupt artifact metadata, starting fresh", "error", err)
		return make(map[string]int64)
	}
	return meta
}

// saveMetadata writes the document to a temp file and renames it into place.
func (s *RetentionStore) saveMetadata(meta map[string]int64) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact metadata: %w", err)
	}
	tmp := filepath.Join(s.dir, metadataTmpName)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write artifact metadata: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, MetadataFileName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace artifact metadata: %w", err)
	}
	return nil
}
