// Package storage defines the target storage interfaces.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Query is a single database query with its arguments.
type Query struct {
	Cmd  string
	Args []interface{}
}

// QueryBatch represents a batch of queries to be executed atomically.
type QueryBatch struct {
	queries []*Query
}

// Queue adds a query to the batch.
func (b *QueryBatch) Queue(cmd string, args ...interface{}) {
	b.queries = append(b.queries, &Query{Cmd: cmd, Args: args})
}

// Extend adds all queries from another batch.
func (b *QueryBatch) Extend(qb *QueryBatch) {
	b.queries = append(b.queries, qb.queries...)
}

// Length returns the number of queries in the batch.
func (b *QueryBatch) Length() int {
	return len(b.queries)
}

// Queries returns the queries in the batch.
func (b *QueryBatch) Queries() []*Query {
	return b.queries
}

// AsPgxBatch converts the batch into a pgx batch for a single-roundtrip
// submission.
func (b *QueryBatch) AsPgxBatch() pgx.Batch {
	pgxBatch := pgx.Batch{}
	for _, q := range b.queries {
		pgxBatch.Queue(q.Cmd, q.Args...)
	}
	return pgxBatch
}

// TargetStorage defines an interface for reading and writing the
// channel and validator-message state.
type TargetStorage interface {
	// SendBatch sends a batch of queries to be applied atomically to
	// target storage.
	SendBatch(ctx context.Context, batch *QueryBatch) error

	// Query submits a query to fetch data from target storage.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// QueryRow submits a query to fetch a single row of data from
	// target storage.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row

	// Wipe removes all contents of the database.
	Wipe(ctx context.Context) error

	// Shutdown shuts down the target storage client.
	Shutdown()

	// Name returns the name of the target storage.
	Name() string
}
