package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestUp_CreatesTablesAndIsRepeatable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Up(context.Background(), db))
	require.NoError(t, Up(context.Background(), db))

	for _, table := range []string{"metadata", "replica", "outbox", "conflicts"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
	_, err = db.Exec(`SELECT moves_status FROM outbox`)
	require.NoError(t, err)
}
