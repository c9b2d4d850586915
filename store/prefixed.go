package store

import (
	"context"

	"github.com/jacentio/mockstate/internal/keyspace"
)

// PrefixedKeyStore namespaces every key of the wrapped store with a fixed
// prefix. Callers only ever see unprefixed keys.
//
// LoadAll drops physical keys that do not carry the prefix, so two
// deployments using different prefixes against the same medium stay apart.
type PrefixedKeyStore struct {
	prefix string
	inner  Store
}

// NewPrefixedKeyStore wraps inner. An empty prefix makes every operation a
// pass-through.
func NewPrefixedKeyStore(prefix string, inner Store) *PrefixedKeyStore {
	return &PrefixedKeyStore{prefix: prefix, inner: inner}
}

// Unwrap returns the decorated store.
func (s *PrefixedKeyStore) Unwrap() Store { return s.inner }

// Prefix returns the configured key prefix.
func (s *PrefixedKeyStore) Prefix() string { return s.prefix }

func (s *PrefixedKeyStore) Name() string            { return s.inner.Name() }
func (s *PrefixedKeyStore) TypeDescription() string { return s.inner.TypeDescription() }

func (s *PrefixedKeyStore) Save(ctx context.Context, key string, value Value) error {
	return s.inner.Save(ctx, keyspace.Prefix(s.prefix, key), value)
}

func (s *PrefixedKeyStore) Load(ctx context.Context, key string) (Value, bool, error) {
	return s.inner.Load(ctx, keyspace.Prefix(s.prefix, key))
}

func (s *PrefixedKeyStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, keyspace.Prefix(s.prefix, key))
}

func (s *PrefixedKeyStore) HasItemWithKey(ctx context.Context, key string) (bool, error) {
	return s.inner.HasItemWithKey(ctx, keyspace.Prefix(s.prefix, key))
}

func (s *PrefixedKeyStore) LoadAll(ctx context.Context) (map[string]Value, error) {
	all, err := s.inner.LoadAll(ctx)
	if err != nil || s.prefix == "" {
		return all, err
	}
	out := make(map[string]Value, len(all))
	for physical, v := range all {
		if key, ok := keyspace.Strip(s.prefix, physical); ok {
			out[key] = v
		}
	}
	return out, nil
}

// Count delegates when there is no prefix. Otherwise foreign keys may share
// the medium, so it counts what LoadAll would return.
func (s *PrefixedKeyStore) Count(ctx context.Context) (int, error) {
	if s.prefix == "" {
		return s.inner.Count(ctx)
	}
	all, err := s.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
