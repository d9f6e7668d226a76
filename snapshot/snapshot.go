// Package snapshot is the local snapshot store: the last full site
// configuration seen, persisted on disk so that a restart can serve content
// before any live listener has delivered.
//
// It is backed by Badger. Reads and writes are synchronous and local to the
// process.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Key under which the merged site configuration is kept.
const SiteConfigKey = "shenay_site_config_v9"

// Store is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) a persistent store in dir.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("snapshot: dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("snapshot: mkdir: %w", err)
	}
	return open(badger.DefaultOptions(dir).WithSyncWrites(true), log)
}

// OpenInMemory opens a store that is lost on Close. Used by tests.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), nil)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	if log != nil {
		opts = opts.WithLogger(&badgerLogger{log: log})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Read returns the value stored under key, or nil when there is none.
func (s *Store) Read(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", key, err)
	}
	return out, nil
}

// Write replaces the value under key. A nil value deletes it.
func (s *Store) Write(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if value == nil {
			return txn.Delete([]byte(key))
		}
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	return nil
}

// Close flushes and closes the store.
func (s *Store) Close() error { return s.db.Close() }

// badgerLogger routes Badger's internal logging to slog. Info and Debug are
// dropped to Debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf("snapshot: "+format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf("snapshot: "+format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf("snapshot: "+format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf("snapshot: "+format, args...))
}
