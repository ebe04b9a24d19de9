package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/storage"
)

func newClient(t *testing.T) *Client {
	connString := os.Getenv("CI_TEST_CONN_STRING")
	if connString == "" {
		t.Skip("CI_TEST_CONN_STRING not set; skipping test that requires postgres")
	}
	client, err := NewClient(connString, log.NewDefaultLogger("postgres-test"))
	require.Nil(t, err)
	return client
}

func TestInvalidConnect(t *testing.T) {
	_, err := NewClient("an invalid connstring", log.NewDefaultLogger("postgres-test"))
	require.NotNil(t, err)
}

func TestQuery(t *testing.T) {
	client := newClient(t)
	defer client.Shutdown()

	rows, err := client.Query(context.Background(), `
		SELECT * FROM ( VALUES (0),(1),(2) ) AS q;
	`)
	require.Nil(t, err)

	i := 0
	for rows.Next() {
		var result int
		err = rows.Scan(&result)
		require.Nil(t, err)
		require.Equal(t, i, result)

		i++
	}
	require.Equal(t, 3, i)
}

func TestQueryRow(t *testing.T) {
	client := newClient(t)
	defer client.Shutdown()

	var result int
	err := client.QueryRow(context.Background(), `
		SELECT 1+1;
	`).Scan(&result)
	require.Nil(t, err)
	require.Equal(t, 2, result)
}

func TestSendBatchAtomicity(t *testing.T) {
	client := newClient(t)
	defer client.Shutdown()
	ctx := context.Background()

	defer func() {
		destroy := &storage.QueryBatch{}
		destroy.Queue(`DROP TABLE IF EXISTS batch_test;`)
		require.Nil(t, client.SendBatch(ctx, destroy))
	}()

	create := &storage.QueryBatch{}
	create.Queue(`
		CREATE TABLE batch_test (
			n INTEGER PRIMARY KEY
		);
	`)
	require.Nil(t, client.SendBatch(ctx, create))

	// A batch with a failing query must leave no trace of its
	// successful siblings.
	poisoned := &storage.QueryBatch{}
	poisoned.Queue(`INSERT INTO batch_test (n) VALUES ($1);`, 1)
	poisoned.Queue(`INSERT INTO batch_test (n) VALUES ($1);`, 1) // pkey conflict
	err := client.SendBatch(ctx, poisoned)
	require.NotNil(t, err)

	var count int
	require.Nil(t, client.QueryRow(ctx, `SELECT count(*) FROM batch_test;`).Scan(&count))
	require.Equal(t, 0, count)

	ok := &storage.QueryBatch{}
	ok.Queue(`INSERT INTO batch_test (n) VALUES ($1);`, 1)
	ok.Queue(`INSERT INTO batch_test (n) VALUES ($1);`, 2)
	require.Nil(t, client.SendBatch(ctx, ok))

	require.Nil(t, client.QueryRow(ctx, `SELECT count(*) FROM batch_test;`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestInvalidSendBatch(t *testing.T) {
	client := newClient(t)
	defer client.Shutdown()

	invalid := &storage.QueryBatch{}
	invalid.Queue(`
		an invalid query
	`)
	require.NotNil(t, client.SendBatch(context.Background(), invalid))
}
