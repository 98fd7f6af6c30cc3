package schema

import "time"

// StoreStatus represents the status of a persistent finding store.
type StoreStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// ArtifactStatus describes one cached analyzer artifact.
type ArtifactStatus struct {
	Name        string    `json:"name"`
	SizeBytes   int64     `json:"size_bytes"`
	LastAccess  time.Time `json:"last_access"`
	Downloading bool      `json:"downloading"`
	Tracked     bool      `json:"tracked"` // has a metadata entry
}
