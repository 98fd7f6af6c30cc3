package iocache

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var introduced = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleFindings() []schema.TrackedFinding {
	return []schema.TrackedFinding{
		{
			ID: "f-1",
			Fingerprint: schema.Fingerprint{
				RuleKey:   "go:S1000",
				Message:   "remove this unused variable",
				Line:      12,
				TextRange: &schema.TextRange{StartLine: 12, EndLine: 12, EndLineOffset: 8},
				LineHash:  schema.Checksum("x := 1"),
			},
			Severity:     schema.MajorSeverity,
			Type:         schema.IssueType,
			IntroducedAt: introduced,
			ServerKey:    "AX-1",
		},
		{
			ID:           "f-2",
			Fingerprint:  schema.Fingerprint{RuleKey: "go:S2000", Message: "file-level"},
			IntroducedAt: introduced.Add(time.Hour),
		},
	}
}

// storeContract exercises the behavior every FindingStore must share.
func storeContract(t *testing.T, store contract.FindingStore) {
	t.Helper()

	_, ok, err := store.Read("src/a.go")
	require.NoError(t, err)
	assert.False(t, ok, "unknown file must not be found")

	require.NoError(t, store.Save("src/a.go", sampleFindings()))
	require.NoError(t, store.Save("src/empty.go", nil))

	got, ok, err := store.Read("src/a.go")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleFindings(), got)

	// An empty snapshot is still an analyzed file.
	got, ok, err = store.Read("src/empty.go")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)

	has, err := store.Contains("src/empty.go")
	require.NoError(t, err)
	assert.True(t, has)

	// Overwrite keeps a single entry.
	require.NoError(t, store.Save("src/a.go", sampleFindings()[:1]))
	got, _, err = store.Read("src/a.go")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalEntries)
	assert.False(t, status.LastEntryTime.IsZero())

	require.NoError(t, store.Delete("src/a.go"))
	has, err = store.Contains("src/a.go")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.Clear())
	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalEntries)
}

func TestFindingStore_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "findings.db")
	store, err := NewFindingStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	storeContract(t, store)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestFindingStore_SQLiteReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "findings.db")
	store, err := NewFindingStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Save("src/a.go", sampleFindings()))
	require.NoError(t, store.Close())

	reopened, err := NewFindingStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, ok, err := reopened.Read("src/a.go")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f-1", got[0].ID)
	assert.True(t, introduced.Equal(got[0].IntroducedAt))
}

func TestFindingStore_NoneBackend(t *testing.T) {
	store, err := NewFindingStore(schema.NoneBackend, "")
	require.NoError(t, err)

	require.NoError(t, store.Save("src/a.go", sampleFindings()))
	_, ok, err := store.Read("src/a.go")
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestFindingStore_InvalidTableName(t *testing.T) {
	_, err := newFindingStore("snapshots; DROP TABLE x", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)
}

func TestBadgerStore_InMemory(t *testing.T) {
	store, err := NewBadgerStore(":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	storeContract(t, store)
}

func TestBadgerStore_Directory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	store, err := NewBadgerStore(dir, contract.NewLogger(contract.LoggerConfig{Level: "ERROR"}, "test"))
	require.NoError(t, err)
	require.NoError(t, store.Save("src/a.go", sampleFindings()))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, ok, err := reopened.Read("src/a.go")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestCodec(t *testing.T) {
	blob, err := encodeFindings(sampleFindings())
	require.NoError(t, err)

	got, err := decodeFindings(blob, codecVersion)
	require.NoError(t, err)
	assert.Equal(t, sampleFindings(), got)

	_, err = decodeFindings(blob, codecVersion+1)
	assert.ErrorContains(t, err, "unsupported snapshot codec version")

	_, err = decodeFindings([]byte("not zstd"), codecVersion)
	assert.Error(t, err)

	blob, err = encodeFindings(nil)
	require.NoError(t, err)
	got, err = decodeFindings(blob, codecVersion)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestValidateTableName(t *testing.T) {
	assert.NoError(t, validateTableName("finding_snapshots"))
	assert.NoError(t, validateTableName("_t1"))
	assert.Error(t, validateTableName(""))
	assert.Error(t, validateTableName("1table"))
	assert.Error(t, validateTableName("bad-name"))
	assert.Error(t, validateTableName("x\"; --"))
}

func TestStoreManager(t *testing.T) {
	reset := func() {
		initOnce = sync.Once{}  // Reset for test
		closeOnce = sync.Once{} // Reset for test
		Manager = &StoreManager{}
	}

	t.Run("sqlite", func(t *testing.T) {
		reset()
		dbPath := filepath.Join(t.TempDir(), "findings.db")
		require.NoError(t, InitStores(schema.SQLiteBackend, dbPath, nil))
		require.NotNil(t, Manager.GetFindingStore())

		// Subsequent calls keep the first store
		first := Manager.GetFindingStore()
		require.NoError(t, InitStores(schema.NoneBackend, "", nil))
		assert.Same(t, first, Manager.GetFindingStore())

		CloseStores()
		CloseStores()
	})

	t.Run("badger", func(t *testing.T) {
		reset()
		require.NoError(t, InitStores(schema.BadgerBackend, ":memory:", nil))
		_, ok := Manager.GetFindingStore().(*BadgerStore)
		assert.True(t, ok)
		CloseStores()
	})

	t.Run("unsupported", func(t *testing.T) {
		reset()
		err := InitStores(schema.DatabaseBackend("oracle"), "", nil)
		assert.ErrorContains(t, err, "unsupported store backend")
		assert.Nil(t, Manager.GetFindingStore())
	})
}

func TestClearStore(t *testing.T) {
	t.Run("sqlite removes file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "findings.db")
		store, err := NewFindingStore(schema.SQLiteBackend, dbPath)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, ClearStore(schema.SQLiteBackend, dbPath))
		_, err = os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))

		// Clearing twice is fine
		assert.NoError(t, ClearStore(schema.SQLiteBackend, dbPath))
	})

	t.Run("badger removes directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "badger")
		store, err := NewBadgerStore(dir, nil)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, ClearStore(schema.BadgerBackend, dir))
		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("none", func(t *testing.T) {
		assert.NoError(t, ClearStore(schema.NoneBackend, ""))
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, ClearStore(schema.DatabaseBackend("oracle"), ""))
	})
}

func TestMigrateStore_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	err := MigrateStore(schema.NoneBackend, "", -1, &buf)
	assert.ErrorContains(t, err, "not supported for the none backend")

	err = MigrateStore(schema.BadgerBackend, "", -1, &buf)
	assert.ErrorContains(t, err, "not supported for the badger backend")
}

func TestMigrateStore_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	var buf bytes.Buffer

	require.NoError(t, MigrateStore(schema.SQLiteBackend, dbPath, -1, &buf))
	assert.Contains(t, buf.String(), "to version 2")

	buf.Reset()
	require.NoError(t, MigrateStore(schema.SQLiteBackend, dbPath, -1, &buf))
	assert.Contains(t, buf.String(), "No migration needed")

	buf.Reset()
	require.NoError(t, MigrateStore(schema.SQLiteBackend, dbPath, 1, &buf))
	assert.Contains(t, buf.String(), "from version 2 to version 1")

	buf.Reset()
	require.NoError(t, MigrateStore(schema.SQLiteBackend, dbPath, 0, &buf))
	assert.Contains(t, buf.String(), "to version 0")

	// A migrated database is usable by the store
	require.NoError(t, MigrateStore(schema.SQLiteBackend, dbPath, -1, &buf))
	store, err := NewFindingStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Save("src/a.go", sampleFindings()))
}

func TestPrintStoreStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintStoreStatus(&buf, schema.StoreStatus{Backend: "sqlite", Connected: false})
	assert.Equal(t, "Store Backend: sqlite\nConnected: false\n", buf.String())

	buf.Reset()
	PrintStoreStatus(&buf, schema.StoreStatus{
		Backend:         "sqlite",
		Connected:       true,
		TotalEntries:    3,
		LastEntryTime:   time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		OldestEntryTime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		TableSizeBytes:  4096,
	})
	out := buf.String()
	assert.Contains(t, out, "Total Files: 3")
	assert.Contains(t, out, "Last Write: 2024-03-02 10:00:00")
	assert.Contains(t, out, "Size: 4096 bytes")
}
