package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotizador/backend/internal/domain"
)

// newTestCache returns a cache whose clock is controlled by the returned func
func newTestCache(t *testing.T, maxSize int) (*MemoryCache, func(time.Duration)) {
	t.Helper()

	cache := NewMemoryCache(maxSize, time.Hour)
	t.Cleanup(cache.Close)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	cache.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	return cache, advance
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{name: "store and retrieve string", key: "k1", value: "value"},
		{name: "store and retrieve pointer", key: "k2", value: &domain.BatchResult{}},
		{name: "store and retrieve slice", key: "k3", value: []domain.MatchResult{{Score: 95}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, _ := newTestCache(t, 0)

			require.NoError(t, cache.Set(ctx, tt.key, tt.value, time.Minute))

			got, err := cache.Get(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestMemoryCache_StoresValueWithoutCopy(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	result := &domain.BatchResult{}
	require.NoError(t, cache.Set(ctx, "k", result, time.Minute))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Same(t, result, got)
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache, advance := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "value", time.Second))

	advance(500 * time.Millisecond)
	_, err := cache.Get(ctx, "short")
	assert.NoError(t, err)

	advance(time.Second)
	_, err = cache.Get(ctx, "short")
	assert.True(t, errors.Is(err, domain.ErrCacheMiss), "got %v", err)

	exists, err := cache.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache, _ := newTestCache(t, 0)

	_, err := cache.Get(context.Background(), "non-existent-key")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_Delete(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "delete-test", "value", time.Minute))
	require.NoError(t, cache.Delete(ctx, "delete-test"))

	_, err := cache.Get(ctx, "delete-test")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_Exists(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "exists-test")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Set(ctx, "exists-test", "value", time.Minute))

	exists, err = cache.Exists(ctx, "exists-test")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryCache_MaxSize(t *testing.T) {
	t.Run("evicts expired entries first", func(t *testing.T) {
		cache, advance := newTestCache(t, 2)
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "old", 1, time.Second))
		require.NoError(t, cache.Set(ctx, "live", 2, time.Hour))
		advance(2 * time.Second)

		require.NoError(t, cache.Set(ctx, "new", 3, time.Hour))

		assert.Equal(t, 2, cache.Size())
		_, err := cache.Get(ctx, "live")
		assert.NoError(t, err)
		_, err = cache.Get(ctx, "new")
		assert.NoError(t, err)
	})

	t.Run("never exceeds the bound", func(t *testing.T) {
		cache, _ := newTestCache(t, 3)
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			require.NoError(t, cache.Set(ctx, fmt.Sprintf("k%d", i), i, time.Hour))
		}
		assert.Equal(t, 3, cache.Size())

		_, err := cache.Get(ctx, "k9")
		assert.NoError(t, err, "most recent entry must survive")
	})

	t.Run("overwriting a key does not evict", func(t *testing.T) {
		cache, _ := newTestCache(t, 2)
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "a", 1, time.Hour))
		require.NoError(t, cache.Set(ctx, "b", 2, time.Hour))
		require.NoError(t, cache.Set(ctx, "a", 3, time.Hour))

		assert.Equal(t, 2, cache.Size())
		got, err := cache.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	})
}

func TestMemoryCache_Clear(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.Set(ctx, string(rune('a'+i)), i, time.Minute))
	}
	require.Equal(t, 5, cache.Size())

	cache.Clear()

	assert.Equal(t, 0, cache.Size())
	_, err := cache.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache(0, time.Millisecond)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			if err := cache.Set(ctx, key, id, time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			if _, err := cache.Get(ctx, key); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, cache.Size())
}
