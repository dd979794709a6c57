package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics are the service metrics for database and cache accesses.
type StorageMetrics struct {
	databaseOperations *prometheus.CounterVec
	databaseLatencies  *prometheus.HistogramVec
	cacheReads         *prometheus.CounterVec
}

type CacheReadStatus string

const (
	CacheReadStatusHit      CacheReadStatus = "hit"
	CacheReadStatusMiss     CacheReadStatus = "miss"
	CacheReadStatusBadValue CacheReadStatus = "bad_value" // Value could not be decoded into the requested type.
	CacheReadStatusError    CacheReadStatus = "error"
)

// NewDefaultStorageMetrics creates database and cache metrics prefixed
// with pkg.
func NewDefaultStorageMetrics(pkg string) StorageMetrics {
	return StorageMetrics{
		databaseOperations: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_db_operations", pkg),
				Help: "How many database operations occur, partitioned by operation and status.",
			},
			[]string{"database", "operation", "status"},
		)),
		databaseLatencies: registerOnce(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_db_latencies", pkg),
				Help: "How long database operations take, partitioned by operation.",
			},
			[]string{"database", "operation"},
		)),
		cacheReads: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_cache_reads", pkg),
				Help: "How many cache reads occur, partitioned by cache and status (hit, miss, bad_value, error).",
			},
			[]string{"cache", "status"},
		)),
	}
}

// DatabaseOperations returns the counter for the database operation.
func (m *StorageMetrics) DatabaseOperations(db, operation, status string) prometheus.Counter {
	return m.databaseOperations.WithLabelValues(db, operation, status)
}

// DatabaseLatencies returns a new latency timer for the database operation.
func (m *StorageMetrics) DatabaseLatencies(db, operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.databaseLatencies.WithLabelValues(db, operation))
}

// CacheReads returns the counter for reads from the named cache.
func (m *StorageMetrics) CacheReads(cache string, status CacheReadStatus) prometheus.Counter {
	return m.cacheReads.WithLabelValues(cache, string(status))
}
