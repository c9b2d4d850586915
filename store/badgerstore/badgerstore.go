// Package badgerstore implements store.Store over an embedded BadgerDB shared
// by every logical store.
//
// Records live under a length-prefixed store name followed by the key, so a
// store's records form one contiguous range and LoadAll is a prefix scan.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/jacentio/mockstate/internal/keyspace"
	"github.com/jacentio/mockstate/store"
)

// TypeBadger is the TypeDescription of Store.
const TypeBadger = "badger"

// Options configures the embedded database.
type Options struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps the database in memory only.
	InMemory bool

	// SyncWrites fsyncs every write before it returns.
	SyncWrites bool

	// Logger receives BadgerDB's own log output. Defaults to slog.Default().
	Logger *slog.Logger
}

// DB is an open BadgerDB shared by the stores it hands out.
type DB struct {
	db *badger.DB
}

// Open opens (or creates) the database.
func Open(opts Options) (*DB, error) {
	if opts.Dir == "" && !opts.InMemory {
		return nil, fmt.Errorf("%w: badger directory is empty", store.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := opts.Dir
	if opts.InMemory {
		dir = ""
	}
	bopts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{logger.With("component", "badger")})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Dir, err)
	}
	return &DB{db: db}, nil
}

// Close closes the database. Stores handed out fail afterwards.
func (d *DB) Close() error {
	return d.db.Close()
}

// Store returns the logical store name. Stores are cheap views; calling
// Store twice with one name gives two views of the same records.
func (d *DB) Store(name string) *Store {
	return &Store{db: d.db, name: name, prefix: keyspace.StorePrefix(name)}
}

// Builder returns a store.BuildFunc handing out stores from d.
func (d *DB) Builder() store.BuildFunc {
	return func(_ context.Context, name string) (store.Store, error) {
		return d.Store(name), nil
	}
}

// Store is a store.Store backed by a shared BadgerDB.
type Store struct {
	db     *badger.DB
	name   string
	prefix []byte
}

func (s *Store) Name() string            { return s.name }
func (s *Store) TypeDescription() string { return TypeBadger }

func (s *Store) Save(ctx context.Context, key string, value store.Value) error {
	if err := ctx.Err(); err != nil {
		return s.opErr("save", key, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyspace.Composite(s.name, key), encodeValue(value))
	})
	if err != nil {
		return s.opErr("save", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (store.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Value{}, false, s.opErr("load", key, err)
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyspace.Composite(s.name, key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.Value{}, false, nil
	}
	if err != nil {
		return store.Value{}, false, s.opErr("load", key, err)
	}
	return decodeValue(raw), true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return s.opErr("delete", key, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyspace.Composite(s.name, key))
	})
	if err != nil {
		return s.opErr("delete", key, err)
	}
	return nil
}

func (s *Store) HasItemWithKey(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, s.opErr("hasItemWithKey", key, err)
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyspace.Composite(s.name, key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.opErr("hasItemWithKey", key, err)
	}
	return true, nil
}

func (s *Store) LoadAll(ctx context.Context) (map[string]store.Value, error) {
	items := make(map[string]store.Value)
	err := s.scan(ctx, true, func(key string, item *badger.Item) error {
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		items[key] = decodeValue(raw)
		return nil
	})
	if err != nil {
		return nil, s.opErr("loadAll", "", err)
	}
	return items, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.scan(ctx, false, func(string, *badger.Item) error {
		count++
		return nil
	})
	if err != nil {
		return 0, s.opErr("count", "", err)
	}
	return count, nil
}

// scan visits every record of this store in key order.
func (s *Store) scan(ctx context.Context, values bool, fn func(key string, item *badger.Item) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = values
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name, key, ok := keyspace.SplitComposite(item.Key())
			if !ok || name != s.name {
				continue
			}
			if err := fn(key, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) opErr(op, key string, err error) error {
	return &store.OpError{
		Op:      op,
		Store:   s.name,
		Backend: TypeBadger,
		Key:     key,
		Err:     err,
	}
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
