// Package testutil provides a postgres client for CI tests.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/storage/postgres"
)

// NewTestClient returns a postgres client used in CI tests. Tests that
// need a database are skipped when CI_TEST_CONN_STRING is not set.
func NewTestClient(t *testing.T) *postgres.Client {
	connString := os.Getenv("CI_TEST_CONN_STRING")
	if connString == "" {
		t.Skip("CI_TEST_CONN_STRING not set; skipping test that requires postgres")
	}
	logger, err := log.NewLogger("postgres-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.Nil(t, err, "log.NewLogger")

	client, err := postgres.NewClient(connString, logger)
	require.Nil(t, err, "postgres.NewClient")
	return client
}
