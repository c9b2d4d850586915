package store

import "context"

// Store is a named, mutable mapping from key to Value.
//
// Every backend implements the same contract:
//   - Save overwrites any previous value for the key.
//   - Load reports absence with ok == false, never with an error.
//   - Delete is idempotent.
//   - LoadAll and Count only see keys belonging to this store, and
//     Count always equals len(LoadAll).
//   - HasItemWithKey is observably equivalent to Load's ok result.
//
// Medium failures are returned as *OpError matching ErrMediumUnavailable.
// Requests the medium rejects as malformed match ErrInvalidInput instead.
// Implementations are safe for concurrent use. No operation spans more than
// one key atomically.
type Store interface {
	// Name returns the store name.
	Name() string

	// TypeDescription names the backend kind (e.g. "dynamodb", "inmemory").
	// It is meant for diagnostics only.
	TypeDescription() string

	Save(ctx context.Context, key string, value Value) error
	Load(ctx context.Context, key string) (Value, bool, error)
	Delete(ctx context.Context, key string) error
	LoadAll(ctx context.Context) (map[string]Value, error)
	HasItemWithKey(ctx context.Context, key string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// BuildFunc constructs the configured backend for a store name.
// A returned error aborts the lookup; nothing is cached.
type BuildFunc func(ctx context.Context, name string) (Store, error)

// Wrapper decorates a freshly built store.
type Wrapper func(Store) Store
