// Package kvstore implements a persistent key-value cache.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/akrylysov/pogreb"
	"github.com/fxamacker/cbor/v2"

	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/metrics"
)

const (
	moduleName = "kvstore"

	// Label of this cache in the cache read metrics.
	metricsLabel = "kvstore"
)

// How long OpenKVStore waits for pogreb before continuing without the cache.
const initTimeout = 30 * time.Second

var (
	// Canonical, so that equal keys always encode to equal bytes.
	keyEncoding cbor.EncMode
	// Timestamps as RFC3339 with nanoseconds, so they round-trip exactly.
	valueEncoding cbor.EncMode
)

func init() {
	var err error
	if keyEncoding, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if valueEncoding, err = (cbor.EncOptions{Time: cbor.TimeRFC3339Nano}).EncMode(); err != nil {
		panic(err)
	}
}

// CacheKey is a key in the KVStore.
type CacheKey []byte

// GenerateCacheKey builds a key out of a name and parameters.
func GenerateCacheKey(name string, params ...interface{}) CacheKey {
	raw, err := keyEncoding.Marshal([]interface{}{name, params})
	if err != nil {
		// Only reachable with unencodable params, which is a programming error.
		panic(fmt.Sprintf("kvstore: unencodable cache key %s%v: %v", name, params, err))
	}
	return CacheKey(raw)
}

// Pretty returns a human-readable form of the key, for logs only.
func (k CacheKey) Pretty() string {
	var parsed interface{}
	pretty := fmt.Sprintf("%x", []byte(k))
	if err := cbor.Unmarshal(k, &parsed); err == nil {
		pretty = fmt.Sprintf("%+v", parsed)
	}
	if len(pretty) > 100 {
		pretty = pretty[:95] + "[...]"
	}
	return pretty
}

// KVStore is a byte-level key-value store. Typed access goes through
// GetFromCacheOrCall.
type KVStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Close() error
}

type pogrebKVStore struct {
	db *pogreb.DB

	path    string
	logger  *log.Logger
	metrics *metrics.StorageMetrics // nil disables metrics

	// Set once db is open; the store may be opened in the background.
	initialized atomic.Bool
}

var _ KVStore = (*pogrebKVStore)(nil)

func (s *pogrebKVStore) Has(key []byte) (bool, error) {
	if !s.initialized.Load() {
		return false, nil
	}
	return s.db.Has(key)
}

// Get returns the value under key. It does not count cache metrics;
// GetFromCacheOrCall does.
func (s *pogrebKVStore) Get(key []byte) ([]byte, error) {
	if !s.initialized.Load() {
		return nil, fmt.Errorf("kvstore: not initialized yet")
	}
	return s.db.Get(key)
}

func (s *pogrebKVStore) Put(key []byte, value []byte) error {
	if !s.initialized.Load() {
		s.logger.Debug("skipping write to uninitialized KVStore", "key", CacheKey(key).Pretty())
		return nil
	}
	return s.db.Put(key, value)
}

func (s *pogrebKVStore) Close() error {
	if !s.initialized.Load() {
		// A reindex in progress is abandoned; pogreb restarts it on next open.
		s.logger.Warn("skipping closing uninitialized KVStore")
		return nil
	}
	s.logger.Info("closing KVStore", "path", s.path)
	return s.db.Close()
}

// removeStaleBackups deletes index backups of index backups. Every unclean
// shutdown makes pogreb rename its index to <name>.bac, so a crash loop
// grows names until the filesystem rejects them.
func (s *pogrebKVStore) removeStaleBackups() {
	matches, err := filepath.Glob(filepath.Join(s.path, "*.bac.bac"))
	if err != nil {
		s.logger.Warn("failed to glob pogreb backups", "err", err)
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			s.logger.Warn("failed to delete pogreb backup", "file", m, "err", err)
		}
	}
}

func (s *pogrebKVStore) init() error {
	s.removeStaleBackups()

	// If a reindex is needed, this can take a long time.
	s.logger.Info("(re)opening KVStore", "path", s.path)
	db, err := pogreb.Open(s.path, &pogreb.Options{BackgroundSyncInterval: -1})
	if err != nil {
		s.logger.Error("failed to initialize pogreb store", "err", err)
		return err
	}

	s.db = db
	s.initialized.Store(true)
	s.logger.Info("KVStore opened", "path", s.path, "entries", db.Count())
	return nil
}

// OpenKVStore opens the store at path, creating it if needed. If pogreb
// takes longer than initTimeout (it reindexes after a crash), the store
// is returned anyway and behaves as an empty, read-only cache until the
// open completes in the background.
// metrics may be nil.
func OpenKVStore(logger *log.Logger, path string, metrics *metrics.StorageMetrics) (KVStore, error) {
	store := &pogrebKVStore{
		logger:  logger.WithModule(moduleName),
		path:    path,
		metrics: metrics,
	}

	initErrCh := make(chan error, 1)
	go func() {
		initErrCh <- store.init()
	}()

	select {
	case err := <-initErrCh:
		if err != nil {
			return nil, err
		}
		return store, nil
	case <-time.After(initTimeout):
		store.logger.Warn("KVStore initialization timed out, continuing without cache while it opens in the background")
		return store, nil
	}
}

var errNoSuchKey = errors.New("no such key")

func countRead(cache KVStore, status metrics.CacheReadStatus) {
	if s, ok := cache.(*pogrebKVStore); ok && s.metrics != nil {
		s.metrics.CacheReads(metricsLabel, status).Inc()
	}
}

func fetchTypedValue[Value any](cache KVStore, key CacheKey, value *Value) error {
	isCached, err := cache.Has(key)
	if err != nil {
		countRead(cache, metrics.CacheReadStatusError)
		return err
	}
	if !isCached {
		countRead(cache, metrics.CacheReadStatusMiss)
		return errNoSuchKey
	}
	raw, err := cache.Get(key)
	if err != nil {
		countRead(cache, metrics.CacheReadStatusError)
		return fmt.Errorf("failed to fetch key %s from cache: %w", key.Pretty(), err)
	}
	if err = cbor.Unmarshal(raw, value); err != nil {
		countRead(cache, metrics.CacheReadStatusBadValue)
		return fmt.Errorf("failed to unmarshal the value for key %s from cache into %T: %w", key.Pretty(), value, err)
	}
	countRead(cache, metrics.CacheReadStatusHit)
	return nil
}

// GetFromCacheOrCall returns the cached value under key if there is one.
// Otherwise it calls valueFunc and caches a non-nil result. If volatile is
// true the cache is bypassed entirely. A nil result is returned as is and
// never cached.
func GetFromCacheOrCall[Value any](cache KVStore, volatile bool, key CacheKey, valueFunc func() (*Value, error)) (*Value, error) {
	if volatile {
		return valueFunc()
	}
	return getOrCall(cache, key, valueFunc, func(*Value) bool { return true })
}

// GetFinalFromCacheOrCall is like GetFromCacheOrCall, but a computed value
// is only cached if isFinal reports that it can no longer change.
func GetFinalFromCacheOrCall[Value any](cache KVStore, key CacheKey, valueFunc func() (*Value, error), isFinal func(*Value) bool) (*Value, error) {
	return getOrCall(cache, key, valueFunc, isFinal)
}

func getOrCall[Value any](cache KVStore, key CacheKey, valueFunc func() (*Value, error), cacheable func(*Value) bool) (*Value, error) {
	var cached Value
	switch err := fetchTypedValue(cache, key, &cached); {
	case err == nil:
		return &cached, nil
	case errors.Is(err, errNoSuchKey):
	default:
		if s, ok := cache.(*pogrebKVStore); ok {
			s.logger.Warn("error fetching from cache", "key", key.Pretty(), "err", err)
		}
	}

	computed, err := valueFunc()
	if err != nil || computed == nil || !cacheable(computed) {
		return computed, err
	}
	raw, err := valueEncoding.Marshal(computed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for key %s: %w", key.Pretty(), err)
	}
	return computed, cache.Put(key, raw)
}
