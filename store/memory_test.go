package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/mockstate/store"
	"github.com/jacentio/mockstate/store/storetest"
)

func TestMemoryStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Medium {
		return func(name string) store.Store { return store.NewMemoryStore(name) }
	})
}

func TestMemoryStore_Describe(t *testing.T) {
	s := store.NewMemoryStore("orders")
	assert.Equal(t, "orders", s.Name())
	assert.Equal(t, "inmemory", s.TypeDescription())
}

func TestMemoryStore_LoadAllIsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore("snap")
	require.NoError(t, s.Save(ctx, "a", store.Int(1)))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	all["b"] = store.Int(2)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "mutating the LoadAll result must not change the store")
}

func TestBuildMemory(t *testing.T) {
	s, err := store.BuildMemory(context.Background(), "built")
	require.NoError(t, err)
	assert.Equal(t, "built", s.Name())
	assert.Equal(t, store.TypeInMemory, s.TypeDescription())
}
