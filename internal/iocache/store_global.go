package iocache

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
)

// StoreManager owns the process-wide finding store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	findings     contract.FindingStore
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// GetFindingStore returns the finding store, or nil before InitStores.
func (mgr *StoreManager) GetFindingStore() contract.FindingStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.findings
}

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// OpenStore opens a finding store for backend.
func OpenStore(backend schema.DatabaseBackend, connStr string, logger hclog.Logger) (contract.FindingStore, error) {
	switch backend {
	case schema.BadgerBackend:
		return NewBadgerStore(connStr, logger)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend, schema.NoneBackend:
		return NewFindingStore(backend, connStr)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s. Must be sqlite, mysql, postgresql, badger, or none", backend)
	}
}

// InitStores initializes the global manager with the configured finding store.
func InitStores(backend schema.DatabaseBackend, connStr string, logger hclog.Logger) error {
	var initErr error

	initOnce.Do(func() {
		// This function body runs exactly once, even with concurrent calls.
		store, err := OpenStore(backend, connStr, logger)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize finding store: %w", err)
			return
		}
		Manager.Lock()
		Manager.findings = store
		Manager.Unlock()
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.findings != nil {
			_ = Manager.findings.Close()
		}
	})
}

// ClearStore removes all persisted snapshots for the specified backend.
// For SQLite, it deletes the database file.
// For badger, it deletes the database directory.
// For SQL backends (MySQL/PostgreSQL), it drops the table.
// For NoneBackend, it does nothing.
func ClearStore(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		dbFilePath := connStr
		if dbFilePath == "" {
			dbFilePath = contract.GetStoreDBFilePath()
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.BadgerBackend:
		dir := connStr
		if dir == "" {
			dir = contract.GetBadgerDir()
		}
		if dir == ":memory:" {
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove badger directory %s: %w", dir, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return dropSQLTable(backend, connStr, snapshotTable)

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported store backend for clearing: %s", backend)
	}
}
