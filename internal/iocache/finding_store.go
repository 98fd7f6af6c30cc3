// Package iocache persists finding snapshots that leave the in-memory cache.
package iocache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// snapshotTable is the name of the table holding finding snapshots.
const snapshotTable = "finding_snapshots"

// FindingStoreImpl handles durable snapshot storage using various database backends.
type FindingStoreImpl struct {
	db        *sql.DB
	tableName string
	backend   schema.DatabaseBackend
	connStr   string
	now       func() time.Time
}

var _ contract.FindingStore = &FindingStoreImpl{} // Compile-time check

// driverName returns the database/sql driver registered for backend.
func driverName(backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return "mysql"
	case schema.PostgreSQLBackend:
		return "pgx"
	default:
		return "sqlite"
	}
}

// openDB opens and pings a database for one of the SQL backends.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetStoreDBFilePath()
		}
		db, err = sql.Open(driverName(backend), dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store at %q: %w. Ensure the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		db, err = sql.Open(driverName(backend), connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL store: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		db, err = sql.Open(driverName(backend), connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL store: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported SQL backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, nil
}

// NewFindingStore initializes and returns a FindingStore for a SQL backend or NoneBackend.
func NewFindingStore(backend schema.DatabaseBackend, connStr string) (*FindingStoreImpl, error) {
	return newFindingStore(snapshotTable, backend, connStr)
}

func newFindingStore(tableName string, backend schema.DatabaseBackend, connStr string) (*FindingStoreImpl, error) {
	// Validate table name to prevent SQL injection
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}

	store := &FindingStoreImpl{
		tableName: tableName,
		backend:   backend,
		connStr:   connStr,
		now:       time.Now,
	}
	if backend == schema.NoneBackend {
		// A no-op store for disabled persistence
		return store, nil
	}

	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}

	query := getCreateTableQuery(tableName, backend)
	if _, err := db.Exec(query); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	store.db = db
	return store, nil
}

// getCreateTableQuery returns the CREATE TABLE query for the given backend.
// It matches the first migration, so stores and migrated databases agree.
func getCreateTableQuery(tableName string, backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(tableName, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				file_key VARCHAR(512) PRIMARY KEY,
				snapshot LONGBLOB NOT NULL,
				version INT NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				file_key TEXT PRIMARY KEY,
				snapshot BYTEA NOT NULL,
				version INTEGER NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				file_key TEXT PRIMARY KEY,
				snapshot BLOB NOT NULL,
				version INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);
		`, quotedTableName)
	}
}

// disabled reports whether the store persists nothing.
func (fs *FindingStoreImpl) disabled() bool {
	return fs.backend == schema.NoneBackend || fs.db == nil
}

// Save implements contract.FindingStore.
func (fs *FindingStoreImpl) Save(file string, findings []schema.TrackedFinding) error {
	if fs.disabled() {
		return nil
	}
	blob, err := encodeFindings(findings)
	if err != nil {
		return err
	}
	if _, err := fs.db.Exec(fs.getUpsertQuery(), file, blob, codecVersion, fs.now().Unix()); err != nil {
		return fmt.Errorf("failed to save findings for %s: %w", file, err)
	}
	return nil
}

// Read implements contract.FindingStore.
func (fs *FindingStoreImpl) Read(file string) ([]schema.TrackedFinding, bool, error) {
	if fs.disabled() {
		return nil, false, nil
	}

	var blob []byte
	var version int
	query := fmt.Sprintf(`SELECT snapshot, version FROM %s WHERE file_key = %s`,
		quoteTableName(fs.tableName, fs.backend), fs.getPlaceholder(1))
	err := fs.db.QueryRow(query, file).Scan(&blob, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read findings for %s: %w", file, err)
	}

	findings, err := decodeFindings(blob, version)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt snapshot for %s: %w", file, err)
	}
	return findings, true, nil
}

// Contains implements contract.FindingStore.
func (fs *FindingStoreImpl) Contains(file string) (bool, error) {
	if fs.disabled() {
		return false, nil
	}
	var one int
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE file_key = %s`,
		quoteTableName(fs.tableName, fs.backend), fs.getPlaceholder(1))
	err := fs.db.QueryRow(query, file).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", file, err)
	}
	return true, nil
}

// Delete implements contract.FindingStore.
func (fs *FindingStoreImpl) Delete(file string) error {
	if fs.disabled() {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE file_key = %s`,
		quoteTableName(fs.tableName, fs.backend), fs.getPlaceholder(1))
	if _, err := fs.db.Exec(query, file); err != nil {
		return fmt.Errorf("failed to delete findings for %s: %w", file, err)
	}
	return nil
}

// Clear implements contract.FindingStore.
func (fs *FindingStoreImpl) Clear() error {
	if fs.disabled() {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s`, quoteTableName(fs.tableName, fs.backend))
	if _, err := fs.db.Exec(query); err != nil {
		return fmt.Errorf("failed to clear %s: %w", fs.tableName, err)
	}
	return nil
}

// getPlaceholder returns the n-th parameter placeholder for the backend.
func (fs *FindingStoreImpl) getPlaceholder(n int) string {
	switch fs.backend {
	case schema.PostgreSQLBackend:
		return fmt.Sprintf("$%d", n)
	default: // SQLite and MySQL
		return "?"
	}
}

// getUpsertQuery returns the UPSERT query for the backend.
func (fs *FindingStoreImpl) getUpsertQuery() string {
	quotedTableName := quoteTableName(fs.tableName, fs.backend)
	switch fs.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (file_key, snapshot, version, updated_at) VALUES (?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE snapshot = new.snapshot, version = new.version, updated_at = new.updated_at`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (file_key, snapshot, version, updated_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (file_key) DO UPDATE SET snapshot = EXCLUDED.snapshot, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (file_key, snapshot, version, updated_at) VALUES (?, ?, ?, ?)`, quotedTableName)
	}
}

// Close closes the underlying DB connection.
func (fs *FindingStoreImpl) Close() error {
	if fs.db != nil {
		return fs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the finding store.
func (fs *FindingStoreImpl) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   string(fs.backend),
		Connected: fs.db != nil,
	}

	if fs.disabled() {
		return status, nil
	}

	quotedTableName := quoteTableName(fs.tableName, fs.backend)

	// Get total entries
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTableName)
	if err := fs.db.QueryRow(countQuery).Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}

	if status.TotalEntries == 0 {
		return status, nil
	}

	// Get newest and oldest write times
	var lastTs, oldestTs int64
	rangeQuery := fmt.Sprintf("SELECT MAX(updated_at), MIN(updated_at) FROM %s", quotedTableName)
	if err := fs.db.QueryRow(rangeQuery).Scan(&lastTs, &oldestTs); err != nil {
		return status, fmt.Errorf("failed to get entry times: %w", err)
	}
	status.LastEntryTime = time.Unix(lastTs, 0)
	status.OldestEntryTime = time.Unix(oldestTs, 0)

	switch fs.backend {
	case schema.SQLiteBackend:
		sizeQuery := "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
		if err := fs.db.QueryRow(sizeQuery).Scan(&status.TableSizeBytes); err != nil {
			// If pragma fails, skip size
			status.TableSizeBytes = 0
		}

	case schema.MySQLBackend:
		// Fallback rough estimate if information_schema query fails
		status.TableSizeBytes = int64(status.TotalEntries) * 1000

		cfg, err := mysql.ParseDSN(fs.connStr)
		if err != nil || cfg.DBName == "" {
			break
		}
		sizeQuery := "SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		if err := fs.db.QueryRow(sizeQuery, cfg.DBName, fs.tableName).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}

	case schema.PostgreSQLBackend:
		sizeQuery := "SELECT pg_total_relation_size($1)"
		if err := fs.db.QueryRow(sizeQuery, fs.tableName).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000 // Fallback rough estimate
		}
	}

	return status, nil
}
