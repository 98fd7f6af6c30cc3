package iocache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
)

// snapshotPrefix namespaces snapshot keys inside the badger database.
const snapshotPrefix = "snap/"

// badgerHeaderLen is the codec version byte plus the big-endian write time.
const badgerHeaderLen = 1 + 8

// BadgerStore keeps snapshots in an embedded badger database.
type BadgerStore struct {
	db   *badger.DB
	path string
	now  func() time.Time
}

var _ contract.FindingStore = &BadgerStore{} // Compile-time check

// badgerLogger forwards badger's internal logging to hclog.
type badgerLogger struct {
	logger hclog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Trace(fmt.Sprintf(format, args...))
}

// NewBadgerStore opens a badger database at path. An empty path selects the
// default directory; ":memory:" opens an in-memory database.
func NewBadgerStore(path string, logger hclog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	switch path {
	case ":memory:":
		opts = badger.DefaultOptions("").WithInMemory(true)
	case "":
		path = contract.GetBadgerDir()
		fallthrough
	default:
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}

	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger.Named("badger")})
	} else {
		opts = opts.WithLogger(nil) // Disable badger's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db, path: path, now: time.Now}, nil
}

func snapshotKey(file string) []byte {
	return []byte(snapshotPrefix + file)
}

// Save implements contract.FindingStore.
func (bs *BadgerStore) Save(file string, findings []schema.TrackedFinding) error {
	blob, err := encodeFindings(findings)
	if err != nil {
		return err
	}
	value := make([]byte, badgerHeaderLen, badgerHeaderLen+len(blob))
	value[0] = codecVersion
	binary.BigEndian.PutUint64(value[1:], uint64(bs.now().Unix()))
	value = append(value, blob...)

	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(file), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save findings for %s: %w", file, err)
	}
	return nil
}

// Read implements contract.FindingStore.
func (bs *BadgerStore) Read(file string) ([]schema.TrackedFinding, bool, error) {
	var value []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(file))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read findings for %s: %w", file, err)
	}
	if len(value) < badgerHeaderLen {
		return nil, false, fmt.Errorf("corrupt snapshot for %s: short value", file)
	}
	findings, err := decodeFindings(value[badgerHeaderLen:], int(value[0]))
	if err != nil {
		return nil, false, fmt.Errorf("corrupt snapshot for %s: %w", file, err)
	}
	return findings, true, nil
}

// Contains implements contract.FindingStore.
func (bs *BadgerStore) Contains(file string) (bool, error) {
	err := bs.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(snapshotKey(file))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", file, err)
	}
	return true, nil
}

// Delete implements contract.FindingStore.
func (bs *BadgerStore) Delete(file string) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(file))
	})
	if err != nil {
		return fmt.Errorf("failed to delete findings for %s: %w", file, err)
	}
	return nil
}

// Clear implements contract.FindingStore.
func (bs *BadgerStore) Clear() error {
	if err := bs.db.DropPrefix([]byte(snapshotPrefix)); err != nil {
		return fmt.Errorf("failed to clear badger store: %w", err)
	}
	return nil
}

// GetStatus implements contract.FindingStore.
func (bs *BadgerStore) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   string(schema.BadgerBackend),
		Connected: bs.db != nil,
	}

	var newest, oldest int64
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapshotPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				if len(v) < badgerHeaderLen {
					return nil
				}
				ts := int64(binary.BigEndian.Uint64(v[1:badgerHeaderLen]))
				if status.TotalEntries == 0 || ts > newest {
					newest = ts
				}
				if status.TotalEntries == 0 || ts < oldest {
					oldest = ts
				}
				return nil
			})
			if err != nil {
				return err
			}
			status.TotalEntries++
		}
		return nil
	})
	if err != nil {
		return status, fmt.Errorf("failed to scan badger store: %w", err)
	}

	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(newest, 0)
		status.OldestEntryTime = time.Unix(oldest, 0)
	}
	lsm, vlog := bs.db.Size()
	status.TableSizeBytes = lsm + vlog
	return status, nil
}

// Close implements contract.FindingStore.
func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}
