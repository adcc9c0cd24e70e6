//go:build mssql

package mssql

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	host := os.Getenv("MSSQL_HOST")
	user := os.Getenv("MSSQL_USER")
	password := os.Getenv("MSSQL_PASSWORD")
	database := os.Getenv("MSSQL_DATABASE")
	if host == "" || user == "" || password == "" || database == "" {
		t.Skip("skipping integration test: MSSQL_HOST, MSSQL_USER, MSSQL_PASSWORD, or MSSQL_DATABASE not set")
	}

	port := 1433
	if p := os.Getenv("MSSQL_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err, "invalid MSSQL_PORT")
	}
	return &Config{Host: host, Port: port, Database: database, AuthMethod: "sql", Username: user, Password: password, TrustServerCertificate: true}
}

func TestNode_ExecuteAndQuery(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })

	table := "typestore_scratch_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	_, err = n.Execute(ctx, "CREATE TABLE "+table+" (id INT, label NVARCHAR(20), amount DECIMAL(10,2))")
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = n.Execute(context.Background(), "DROP TABLE "+table) })

	affected, err := n.Execute(ctx, "INSERT INTO "+table+" VALUES ($1, $2, $3)", 1, "one", "12.50")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	tuples, err := n.Query(ctx, "SELECT id, label, amount FROM "+table+" WHERE id = $1", 1)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	label, err := tuples[0].String("label")
	require.NoError(t, err)
	assert.Equal(t, "one", label)
	amount, err := tuples[0].Decimal("amount")
	require.NoError(t, err)
	assert.Equal(t, "12.5", amount.String())
}
