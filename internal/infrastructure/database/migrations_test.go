package database

import (
	"testing"
	"testing/fstest"

	"user-api/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_OrderAndParse(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_add_index.sql":    {Data: []byte("CREATE INDEX x ON users (login);")},
		"0001_create_users.sql": {Data: []byte("CREATE TABLE users (id TEXT);")},
		"README.md":             {Data: []byte("ignored")},
	}

	runner := NewMigrationRunner(nil, fsys)
	loaded, err := runner.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "0001", loaded[0].ID)
	assert.Equal(t, "create users", loaded[0].Description)
	assert.Equal(t, "CREATE TABLE users (id TEXT);", loaded[0].SQL)
	assert.Equal(t, "0002", loaded[1].ID)
	assert.Equal(t, "add index", loaded[1].Description)
}

func TestLoadMigrations_InvalidName(t *testing.T) {
	fsys := fstest.MapFS{
		"broken.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := NewMigrationRunner(nil, fsys).LoadMigrations()
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	loaded, err := NewMigrationRunner(nil, migrations.FS).LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, loaded)

	assert.Equal(t, "0001", loaded[0].ID)
	assert.Contains(t, loaded[0].SQL, "CREATE TABLE IF NOT EXISTS users")
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "users", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=users port=5432 sslmode=disable connect_timeout=10", cfg.DSN())
}
