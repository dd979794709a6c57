// Package postgres implements the target storage interface
// backed by PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/storage"
)

const (
	moduleName = "postgres"
)

// Client is a client for connecting to PostgreSQL.
type Client struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ storage.TargetStorage = (*Client)(nil)

// pgxLogger forwards pgx trace logs to the blockview logger.
type pgxLogger struct {
	logger *log.Logger
}

func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	args := make([]interface{}, 0, 2*len(data))
	for k, v := range data {
		args = append(args, k, v)
	}

	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.logger.Debug(msg, args...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, args...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, args...)
	default:
		l.logger.Error(msg, args...)
	}
}

// NewClient creates a new PostgreSQL client.
func NewClient(connString string, l *log.Logger) (*Client, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	// A line is logged only if it is at or above both this level and the
	// level of the blockview logger. "Info" would log every statement.
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		LogLevel: tracelog.LogLevelWarn,
		Logger: &pgxLogger{
			logger: l.WithModule(moduleName).With("db", config.ConnConfig.Database),
		},
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}
	return &Client{
		pool:   pool,
		logger: l.WithModule(moduleName),
	}, nil
}

// SendBatch submits a batch of queries as one transaction. Row counts
// are discarded; only atomic success or failure matters.
func (c *Client) SendBatch(ctx context.Context, batch *storage.QueryBatch) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	queries := batch.QueuedQueries
	results := tx.SendBatch(ctx, batch)
	for i := range queries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("query %d %q: %w", i, queries[i].SQL, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		c.logger.Error("failed to commit tx",
			"error", err,
			"num_queries", len(queries),
		)
		return err
	}
	return nil
}

// Query submits a new read query to PostgreSQL.
func (c *Client) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		c.logger.Error("failed to query db",
			"error", err,
			"query_cmd", sql,
			"query_args", args,
		)
		return nil, err
	}
	return rows, nil
}

// QueryRow submits a new read query for a single row to PostgreSQL.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Close closes all connections in the pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Name implements the storage.TargetStorage interface for Client.
func (c *Client) Name() string {
	return moduleName
}

// Wipe drops every non-system schema, including golang-migrate's
// bookkeeping table, so that migrations run from scratch.
func (c *Client) Wipe(ctx context.Context) error {
	rows, err := c.Query(ctx, `
		SELECT nspname
		FROM pg_namespace
		WHERE nspname NOT IN ('public', 'information_schema') AND nspname NOT LIKE 'pg_%'
	`)
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}
	schemas, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}

	batch := &storage.QueryBatch{}
	for _, schema := range schemas {
		c.logger.Info("dropping schema", "schema", schema)
		batch.Queue(fmt.Sprintf("DROP SCHEMA %s CASCADE", pgx.Identifier{schema}.Sanitize()))
	}
	batch.Queue("DROP TABLE IF EXISTS public.schema_migrations")
	return c.SendBatch(ctx, batch)
}
