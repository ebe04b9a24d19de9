// Package postgres implements the target storage interface backed by
// PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/metrics"
	"github.com/cryptotheoryum/adex-validator/storage"
)

const moduleName = "postgres"

// Client is a client for connecting to PostgreSQL.
type Client struct {
	pool    *pgxpool.Pool
	logger  *log.Logger
	metrics metrics.StorageMetrics
}

// pgxLogger is a pgx-compatible logger interface that uses the node's
// standard logger as the backend.
type pgxLogger struct {
	logger *log.Logger
}

// logFuncForLevel maps a pgx log severity level to a corresponding logger function.
func (l *pgxLogger) logFuncForLevel(level tracelog.LogLevel) func(string, ...interface{}) {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return l.logger.Debug
	case tracelog.LogLevelInfo:
		return l.logger.Info
	case tracelog.LogLevelWarn:
		return l.logger.Warn
	case tracelog.LogLevelError, tracelog.LogLevelNone:
		return l.logger.Error
	default:
		l.logger.Warn("unknown log level", "unknown_level", level)
		return l.logger.Info
	}
}

// Log implements the tracelog.Logger interface.
func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	args := []interface{}{}
	for k, v := range data {
		args = append(args, k, v)
	}
	l.logFuncForLevel(level)(msg, args...)
}

// NewClient creates a new PostgreSQL client.
func NewClient(connString string, l *log.Logger) (*Client, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	// For a log line to be produced, it needs to be >= the level
	// specified here, and >= the level of the underlying logger.
	// "Info" level logs every SQL statement executed.
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
	// Fail fast on unreachable or misconfigured storage.
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return &Client{
		pool:    pool,
		logger:  l.WithModule(moduleName),
		metrics: metrics.NewDefaultStorageMetrics(config.ConnConfig.Database),
	}, nil
}

// SendBatch submits a new batch of queries as an atomic transaction.
func (c *Client) SendBatch(ctx context.Context, batch *storage.QueryBatch) error {
	timer := c.metrics.OperationTimer("batch")
	defer timer.ObserveDuration()

	if err := c.sendBatchFast(ctx, batch); err == nil {
		// The fast path succeeded. This should happen most of the time.
		c.metrics.OperationCounter("batch", "success").Inc()
		return nil
	}
	// There was an error. The tx was reverted, so we can resubmit.
	// This time, use the slow method for better error messages.
	err := c.sendBatchSlow(ctx, batch)
	if err != nil {
		c.metrics.OperationCounter("batch", "failure").Inc()
		return err
	}
	c.metrics.OperationCounter("batch", "success").Inc()
	return nil
}

// Submits the batch in a single roundtrip via `SendBatch(batch.AsPgxBatch())`.
// Fast, but reports errors poorly: if _any_ query is malformed, called with the
// wrong number of args, or has a type conversion problem, pgx will report the
// _first_ query as failing.
func (c *Client) sendBatchFast(ctx context.Context, batch *storage.QueryBatch) error {
	pgxBatch := batch.AsPgxBatch()
	// Uses the implicit tx provided by SendBatch; see https://github.com/jackc/pgx/issues/879
	batchResults := c.pool.SendBatch(ctx, &pgxBatch)
	defer func() {
		if err := batchResults.Close(); err != nil {
			c.logger.Warn("failed to close batch results", "err", err)
		}
	}()

	for i := 0; i < pgxBatch.Len(); i++ {
		if _, err := batchResults.Exec(); err != nil {
			return fmt.Errorf("query %d %v: %w", i, batch.Queries()[i], err)
		}
	}
	return nil
}

// Submits the batch one query at a time. Slower than `sendBatchFast`, but
// gives better error reporting.
func (c *Client) sendBatchSlow(ctx context.Context, batch *storage.QueryBatch) error {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	for i, q := range batch.Queries() {
		if _, err2 := tx.Exec(ctx, q.Cmd, q.Args...); err2 != nil {
			rollbackErr := ""
			if err3 := tx.Rollback(ctx); err3 != nil {
				rollbackErr = fmt.Sprintf("; also failed to rollback tx: %s", err3.Error())
			}
			return fmt.Errorf("query %d %v: %w%s", i, q, err2, rollbackErr)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		c.logger.Error("failed to commit tx",
			"error", err,
			"batch", batch.Queries(),
		)
		return err
	}
	return nil
}

// Query submits a new read query to PostgreSQL.
func (c *Client) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	timer := c.metrics.OperationTimer("query")
	defer timer.ObserveDuration()

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		c.logger.Error("failed to query db",
			"error", err,
			"query_cmd", sql,
			"query_args", args,
		)
		c.metrics.OperationCounter("query", "failure").Inc()
		return nil, err
	}
	c.metrics.OperationCounter("query", "success").Inc()
	return rows, nil
}

// QueryRow submits a new read query for a single row to PostgreSQL.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Shutdown implements the storage.TargetStorage interface for Client.
func (c *Client) Shutdown() {
	c.pool.Close()
}

// Name implements the storage.TargetStorage interface for Client.
func (c *Client) Name() string {
	return moduleName
}

// Returns all tables that are not internal to Postgres. Table names are
// fully-qualified, i.e. of the form "<schema>.<table>".
func (c *Client) listTables(ctx context.Context) ([]string, error) {
	rows, err := c.Query(ctx, `
		SELECT schemaname, tablename
		FROM pg_tables
		WHERE schemaname != 'information_schema' AND schemaname NOT LIKE 'pg_%'
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := []string{}
	defer rows.Close()
	for rows.Next() {
		var schema, table string
		if err = rows.Scan(&schema, &table); err != nil {
			return nil, err
		}
		tables = append(tables, fmt.Sprintf("%s.%s", schema, table))
	}
	return tables, nil
}

// Wipe removes all contents of the database.
func (c *Client) Wipe(ctx context.Context) error {
	tables, err := c.listTables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		c.logger.Info("dropping table", "table", table)
		if _, err = c.pool.Exec(ctx, fmt.Sprintf("DROP TABLE %s CASCADE;", table)); err != nil {
			return err
		}
	}
	return nil
}
