// Package testutil provides helpers for tests against a live PostgreSQL.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/storage/postgres"
)

// SkipIfShort skips tests that need a database, in -short mode or when
// no database is configured.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}
	if os.Getenv("CI_TEST_CONN_STRING") == "" {
		t.Skip("CI_TEST_CONN_STRING not set")
	}
}

// NewTestClient returns a postgres client for the CI test database.
func NewTestClient(t *testing.T) *postgres.Client {
	connString := os.Getenv("CI_TEST_CONN_STRING")
	logger, err := log.NewLogger("postgres-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.NoError(t, err, "log.NewLogger")

	client, err := postgres.NewClient(connString, logger)
	require.NoError(t, err, "postgres.NewClient")
	return client
}
