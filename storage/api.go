// Package storage defines storage interfaces.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// QueryBatch represents a batch of queries to be executed atomically.
type QueryBatch = pgx.Batch

// QueryResults represents the results from a read query.
type QueryResults = pgx.Rows

// QueryResult represents the result from a single-row read query.
type QueryResult = pgx.Row

// TargetStorage is the database blockview reads indexed blocks from.
type TargetStorage interface {
	// SendBatch applies a batch of queries atomically.
	SendBatch(ctx context.Context, batch *QueryBatch) error

	// Query submits a read query.
	Query(ctx context.Context, sql string, args ...interface{}) (QueryResults, error)

	// QueryRow submits a read query for a single row. A missing row is
	// reported as pgx.ErrNoRows by Scan.
	QueryRow(ctx context.Context, sql string, args ...interface{}) QueryResult

	// Close releases the connections to the storage.
	Close()

	// Name returns the name of the storage backend.
	Name() string
}
