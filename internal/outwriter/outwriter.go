// Package outwriter has output and writer logic.
package outwriter

import (
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the command layer.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteFindings prints a tracked snapshot using the configured output format.
func (ow *OutWriter) WriteFindings(snap schema.Snapshot, cfg *contract.Config) error {
	return PrintFindings(snap, cfg)
}

// WriteBranches prints branch resolution results using the configured output format.
func (ow *OutWriter) WriteBranches(results []schema.BranchResult, cfg *contract.Config) error {
	return PrintBranchResults(results, cfg)
}

// WriteStoreStatus prints finding store status using the configured output format.
func (ow *OutWriter) WriteStoreStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return PrintStoreStatus(status, cfg)
}

// WriteArtifacts prints the artifact directory listing using the configured output format.
func (ow *OutWriter) WriteArtifacts(artifacts []schema.ArtifactStatus, cfg *contract.Config) error {
	return PrintArtifactStatus(artifacts, cfg)
}
