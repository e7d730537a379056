package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedSchemaVersion is the number of the newest migration.
// Update this when adding new migrations.
const expectedSchemaVersion = 2

func TestMigrations_FreshDatabase(t *testing.T) {
	store := newTestStorage(t)

	version, err := schemaVersion(context.Background(), store.db)
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	for _, table := range []string{"transactions", "expenses", "reconciliations", "reconciliation_runs"} {
		var count int
		err := store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestMigrations_Idempotency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reconcile.db")

	store, err := NewStorage(dbPath, nil)
	require.NoError(t, err)
	seed(t, store, []string{"t1"}, []string{"e1"})
	require.NoError(t, store.Close())

	store, err = NewStorage(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	version, err := schemaVersion(context.Background(), store.db)
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	tx, err := store.GetTransaction(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", tx.ID, "data must survive reopening")
}

func TestStorage_UniqueLinkIndexes(t *testing.T) {
	store := newTestStorage(t)
	seed(t, store, []string{"t1", "t2"}, []string{"e1"})

	_, err := store.db.Exec(`UPDATE transactions SET expense_id = 'e1' WHERE id IN ('t1', 't2')`)
	assert.Error(t, err, "two transactions may not point at the same expense")
}
