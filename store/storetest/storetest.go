// Package storetest provides a conformance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/mockstate/store"
)

// Medium opens logical stores over one physical medium. Stores opened from
// the same Medium with different names must not see each other's keys.
type Medium func(name string) store.Store

// Run executes the suite. newMedium is called once per subtest and must
// return an empty medium.
func Run(t *testing.T, newMedium func(t *testing.T) Medium) {
	t.Helper()

	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newMedium(t)) })
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, newMedium(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newMedium(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newMedium(t)) })
	t.Run("LoadAll", func(t *testing.T) { testLoadAll(t, newMedium(t)) })
	t.Run("HasItemWithKey", func(t *testing.T) { testHasItemWithKey(t, newMedium(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, newMedium(t)) })
	t.Run("OrdersScenario", func(t *testing.T) { testOrdersScenario(t, newMedium(t)) })
	t.Run("ConcurrentKeys", func(t *testing.T) { testConcurrentKeys(t, newMedium(t)) })
}

func testRoundTrip(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("roundtrip")

	tests := []struct {
		key   string
		value store.Value
	}{
		{"string", store.String("open")},
		{"empty-string", store.String("")},
		{"unicode", store.String("日本語テスト")},
		{"int", store.Int(42)},
		{"negative", store.Int(-7)},
		{"large-int", store.Int(1<<62 + 1)},
		{"float", store.Float(3.25)},
		{"true", store.Bool(true)},
		{"false", store.Bool(false)},
		{"null", store.Null()},
		{"binary", store.Binary([]byte{0x00, 0xff, 0x10})},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, tt.key, tt.value))

			got, ok, err := s.Load(ctx, tt.key)
			require.NoError(t, err)
			require.True(t, ok, "expected key %q to be present", tt.key)
			assert.True(t, tt.value.Equal(got), "expected %s %v, got %s %v",
				tt.value.Kind(), tt.value, got.Kind(), got)
		})
	}
}

func testLoadMissing(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("missing")

	got, ok, err := s.Load(ctx, "never-saved")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, got.IsNull())
}

func testOverwrite(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("overwrite")

	require.NoError(t, s.Save(ctx, "k", store.String("first")))
	require.NoError(t, s.Save(ctx, "k", store.Int(2)))

	got, ok, err := s.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, store.Int(2).Equal(got), "expected 2, got %v", got)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testDelete(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("delete")

	require.NoError(t, s.Save(ctx, "k", store.String("v")))
	require.NoError(t, s.Delete(ctx, "k"))

	_, ok, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again, or deleting a key that never existed, is fine.
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "never-saved"))
}

func testLoadAll(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("loadall")

	empty, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.Save(ctx, "a", store.String("1")))
	require.NoError(t, s.Save(ctx, "b", store.Int(2)))
	require.NoError(t, s.Save(ctx, "c", store.Bool(true)))
	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Save(ctx, "a", store.String("one")))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, store.String("one").Equal(all["a"]))
	assert.True(t, store.Bool(true).Equal(all["c"]))
	assert.NotContains(t, all, "b")

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(all), count)
}

func testHasItemWithKey(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("has")

	require.NoError(t, s.Save(ctx, "present", store.Null()))

	for _, key := range []string{"present", "absent"} {
		has, err := s.HasItemWithKey(ctx, key)
		require.NoError(t, err)
		_, ok, err := s.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, ok, has, "key %q", key)
	}
}

func testIsolation(t *testing.T, m Medium) {
	ctx := context.Background()
	a := m("store-a")
	b := m("store-b")

	require.NoError(t, a.Save(ctx, "k", store.String("from-a")))

	_, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "store-b must not see store-a's key")

	all, err := b.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, b.Save(ctx, "k", store.String("from-b")))
	got, ok, err := a.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, store.String("from-a").Equal(got))

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = a.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "deleting from store-b must not affect store-a")
}

func testOrdersScenario(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("orders")

	require.NoError(t, s.Save(ctx, "1", store.String("open")))

	got, ok, err := s.Load(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, store.String("open").Equal(got))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.Delete(ctx, "1"))

	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, ok, err = s.Load(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentKeys(t *testing.T, m Medium) {
	ctx := context.Background()
	s := m("concurrent")

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Save(ctx, fmt.Sprintf("key-%02d", i), store.Int(int64(i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, workers)
}
