package kvstore

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/metrics"
)

type cachedBlock struct {
	Height int64
	Hash   string
	Time   time.Time
}

func openTestStore(t *testing.T, m *metrics.StorageMetrics) KVStore {
	store, err := OpenKVStore(log.NewDefaultLogger("kvstore-test"), filepath.Join(t.TempDir(), "cache"), m)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestGetFromCacheOrCall(t *testing.T) {
	m := metrics.NewDefaultStorageMetrics("kvstore_test")
	store := openTestStore(t, &m)
	key := GenerateCacheKey("Block", int64(10))

	calls := 0
	fetch := func() (*cachedBlock, error) {
		calls++
		return &cachedBlock{Height: 10, Hash: "abc", Time: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)}, nil
	}

	first, err := GetFromCacheOrCall(store, false, key, fetch)
	require.NoError(t, err)
	second, err := GetFromCacheOrCall(store, false, key, fetch)
	require.NoError(t, err)

	require.Equal(t, 1, calls, "second read must come from the cache")
	require.Equal(t, *first, *second)
	require.True(t, first.Time.Equal(second.Time))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheReads(metricsLabel, metrics.CacheReadStatusHit)))
}

func TestGetFromCacheOrCallVolatile(t *testing.T) {
	store := openTestStore(t, nil)
	key := GenerateCacheKey("Block", int64(11))

	calls := 0
	fetch := func() (*cachedBlock, error) {
		calls++
		return &cachedBlock{Height: 11}, nil
	}
	for i := 0; i < 3; i++ {
		_, err := GetFromCacheOrCall(store, true, key, fetch)
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)

	has, err := store.Has(key)
	require.NoError(t, err)
	require.False(t, has)
}

func TestGetFromCacheOrCallSkipsNilAndErrors(t *testing.T) {
	store := openTestStore(t, nil)
	key := GenerateCacheKey("Block", int64(12))

	v, err := GetFromCacheOrCall(store, false, key, func() (*cachedBlock, error) { return nil, nil })
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = GetFromCacheOrCall(store, false, key, func() (*cachedBlock, error) { return nil, fmt.Errorf("db down") })
	require.Error(t, err)

	has, err := store.Has(key)
	require.NoError(t, err)
	require.False(t, has)
}

func TestBadValueFallsBackToCall(t *testing.T) {
	store := openTestStore(t, nil)
	key := GenerateCacheKey("Block", int64(13))
	require.NoError(t, store.Put(key, []byte{0xff, 0x00}))

	v, err := GetFromCacheOrCall(store, false, key, func() (*cachedBlock, error) { return &cachedBlock{Height: 13}, nil })
	require.NoError(t, err)
	require.Equal(t, int64(13), v.Height)
}

func TestGenerateCacheKey(t *testing.T) {
	require.Equal(t, GenerateCacheKey("Block", int64(1), "frag"), GenerateCacheKey("Block", int64(1), "frag"))
	require.NotEqual(t, GenerateCacheKey("Block", int64(1)), GenerateCacheKey("Block", int64(2)))
	require.Contains(t, GenerateCacheKey("Block", int64(1)).Pretty(), "Block")
}

func TestGetFinalFromCacheOrCall(t *testing.T) {
	store := openTestStore(t, nil)
	key := GenerateCacheKey("Block", int64(14))

	calls := 0
	final := false
	fetch := func() (*cachedBlock, error) {
		calls++
		return &cachedBlock{Height: 14}, nil
	}
	isFinal := func(*cachedBlock) bool { return final }

	_, err := GetFinalFromCacheOrCall(store, key, fetch, isFinal)
	require.NoError(t, err)
	has, err := store.Has(key)
	require.NoError(t, err)
	require.False(t, has, "non-final values must not be cached")

	final = true
	_, err = GetFinalFromCacheOrCall(store, key, fetch, isFinal)
	require.NoError(t, err)
	_, err = GetFinalFromCacheOrCall(store, key, fetch, isFinal)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
