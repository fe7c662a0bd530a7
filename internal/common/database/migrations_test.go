package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_indexes.sql": {Data: []byte("CREATE INDEX IF NOT EXISTS foo ON bar (baz);")},
		"migrations/001_init.sql":    {Data: []byte("CREATE TABLE IF NOT EXISTS bar (baz int);")},
		"migrations/README.md":       {Data: []byte("not a migration")},
	}

	migrations, err := ReadMigrations(fsys, "migrations")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, NewMigration(1, "001_init.sql", "CREATE TABLE IF NOT EXISTS bar (baz int);"), migrations[0])
	assert.Equal(t, NewMigration(2, "002_indexes.sql", "CREATE INDEX IF NOT EXISTS foo ON bar (baz);"), migrations[1])
}

func TestReadMigrations_InvalidName(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/init.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := ReadMigrations(fsys, "migrations")
	assert.Error(t, err)
}

func TestReadMigrations_MissingDir(t *testing.T) {
	_, err := ReadMigrations(fstest.MapFS{}, "migrations")
	assert.Error(t, err)
}
