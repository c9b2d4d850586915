package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jacentio/mockstate/internal/shard"
)

// registryShards is the number of independently locked registry shards.
const registryShards = 16

// Factory lazily builds named stores and caches them until evicted.
//
// At most one instance exists per name at any time. The registry is split
// into shards by name; a lookup holds its shard's lock while building, so
// only names in the same shard wait on each other.
type Factory struct {
	build         BuildFunc
	keyPrefix     string
	requestScoped func(string) bool
	wrappers      []Wrapper
	logger        *slog.Logger

	shards [registryShards]registryShard
	closed atomic.Bool
}

type registryShard struct {
	mu     sync.Mutex
	stores map[string]Store
}

// Option configures a Factory.
type Option func(*Factory)

// WithKeyPrefix sets the prefix applied to every key of non-forced stores.
func WithKeyPrefix(prefix string) Option {
	return func(f *Factory) { f.keyPrefix = prefix }
}

// WithRequestScoped sets the predicate naming stores that are created per
// request. HasStoreWithName reports true for such names before they exist.
func WithRequestScoped(fn func(name string) bool) Option {
	return func(f *Factory) { f.requestScoped = fn }
}

// WithWrapper adds a decorator applied, in order, around the prefixed store.
// Forced baseline stores are never wrapped.
func WithWrapper(w Wrapper) Option {
	return func(f *Factory) { f.wrappers = append(f.wrappers, w) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a Factory building stores with build. A nil build
// falls back to in-process stores.
func NewFactory(build BuildFunc, opts ...Option) *Factory {
	f := &Factory{build: build}
	for i := range f.shards {
		f.shards[i].stores = make(map[string]Store)
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.build == nil {
		f.build = BuildMemory
	}
	if f.requestScoped == nil {
		f.requestScoped = func(string) bool { return false }
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// KeyPrefix returns the prefix applied to non-forced stores.
func (f *Factory) KeyPrefix() string { return f.keyPrefix }

// GetStoreByName returns the cached store for name, building and caching it
// first if needed.
//
// With forceBaseline, a new store is always an undecorated MemoryStore,
// whatever backend is configured. An existing entry is returned as is.
func (f *Factory) GetStoreByName(ctx context.Context, name string, forceBaseline bool) (Store, error) {
	sh := f.shard(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if f.closed.Load() {
		return nil, ErrClosed
	}
	if s, ok := sh.stores[name]; ok {
		return s, nil
	}

	f.logger.Debug("initialising new store", "store", name, "forceBaseline", forceBaseline)

	var s Store
	if forceBaseline {
		s = NewMemoryStore(name)
	} else {
		built, err := f.build(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("build store %q: %w", name, err)
		}
		if built == nil {
			return nil, fmt.Errorf("build store %q: %w: builder returned no store", name, ErrInvalidConfig)
		}
		s = NewPrefixedKeyStore(f.keyPrefix, built)
		for _, w := range f.wrappers {
			s = w(s)
		}
	}

	sh.stores[name] = s
	f.logger.Debug("got store", "store", name, "type", s.TypeDescription())
	return s, nil
}

// HasStoreWithName reports whether name is cached or is request-scoped.
// It never builds a store.
func (f *Factory) HasStoreWithName(name string) bool {
	if f.requestScoped(name) {
		return true
	}
	sh := f.shard(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.stores[name]
	return ok
}

// DeleteStoreByName evicts name from the cache. Data held by the medium is
// untouched and references already handed out stay usable.
func (f *Factory) DeleteStoreByName(name string) {
	sh := f.shard(name)
	sh.mu.Lock()
	_, ok := sh.stores[name]
	delete(sh.stores, name)
	sh.mu.Unlock()

	if ok {
		f.logger.Debug("deleted store", "store", name)
	}
}

// Names returns the cached store names, sorted.
func (f *Factory) Names() []string {
	var names []string
	for i := range f.shards {
		sh := &f.shards[i]
		sh.mu.Lock()
		for name := range sh.stores {
			names = append(names, name)
		}
		sh.mu.Unlock()
	}

	slices.Sort(names)
	return names
}

// Close evicts every store. Later lookups fail with ErrClosed.
func (f *Factory) Close() error {
	f.closed.Store(true)
	for i := range f.shards {
		sh := &f.shards[i]
		sh.mu.Lock()
		clear(sh.stores)
		sh.mu.Unlock()
	}
	return nil
}

func (f *Factory) shard(name string) *registryShard {
	return &f.shards[shard.Index(name, registryShards)]
}
