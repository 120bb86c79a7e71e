package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("creates the annotation schema", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		for _, table := range []string{
			"schema_migrations", "entities", "date_observations", "annotations",
			"classes", "entity_classes", "class_parents", "genres", "entity_genres", "pipeline_runs",
		} {
			var n int
			err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "table %s should exist", table)
		}
	})

	t.Run("open failures carry stack traces", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		first, err := Open(dbPath, nil)
		require.NoError(t, err)
		first.Close()

		// Read-only directory: WAL files cannot be created
		require.NoError(t, os.Chmod(tmpDir, 0555))
		defer os.Chmod(tmpDir, 0755)

		db, err := OpenWithMigrations(dbPath, nil)
		if os.Geteuid() == 0 {
			// root ignores directory permissions
			if db != nil {
				db.Close()
			}
			t.Skip("running as root")
		}
		require.Error(t, err)
		assert.Nil(t, db)
		assert.Contains(t, fmt.Sprintf("%+v", err), "connection.go")
	})
}

func TestMigrate(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, nil))
		require.NoError(t, Migrate(db, nil), "running migrations multiple times should be safe")

		files, err := migrationFiles()
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
		assert.Equal(t, len(files), count)
	})

	t.Run("fails on closed database", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		assert.Error(t, Migrate(db, nil))
	})

	t.Run("observations cascade with entities", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(`INSERT INTO date_observations (entity_id, kind, raw, fetched_at) VALUES ('Q1', 'inception', '1990', CURRENT_TIMESTAMP)`)
		assert.Error(t, err, "foreign key should reject observation for unknown entity")

		_, err = db.Exec(`INSERT INTO annotations (entity_id, blurb_source, updated_at) VALUES ('Q1', 'guessed', CURRENT_TIMESTAMP)`)
		assert.Error(t, err)
	})
}

func TestStatus(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	before, err := Status(db)
	require.NoError(t, err)
	require.NotEmpty(t, before)
	for _, s := range before {
		assert.False(t, s.Applied, s.Filename)
	}
	assert.Equal(t, "000", before[0].Version)

	require.NoError(t, Migrate(db, nil))

	after, err := Status(db)
	require.NoError(t, err)
	for _, s := range after {
		assert.True(t, s.Applied, s.Filename)
	}
}
