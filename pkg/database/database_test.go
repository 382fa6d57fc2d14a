package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty path", func(c *Config) { c.DatabasePath = "" }},
		{"no connections", func(c *Config) { c.MaxConnections = 0 }},
		{"no lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }},
		{"no idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }},
	}
	assert.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(&Config{})
	assert.Error(t, err)
}

func TestMigrationManager_AppliesInOrderOnce(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/002_add_index.sql":     {Data: []byte("CREATE INDEX idx_things_name ON things(name);")},
		"migrations/001_create_things.sql": {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT);")},
		"migrations/README.md":             {Data: []byte("ignored")},
	}
	mm := NewMigrationManager(db, fsys, "migrations")

	migrations, err := mm.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001", migrations[0].Version)
	assert.Equal(t, "create_things", migrations[0].Description)

	require.NoError(t, mm.ApplyMigrations())
	require.NoError(t, mm.ApplyMigrations(), "second run is a no-op")

	applied, err := mm.AppliedVersions()
	require.NoError(t, err)
	assert.Len(t, applied, 2)

	assert.NoError(t, mm.ValidateSchema([]string{"things"}, []string{"idx_things_name"}))
	assert.Error(t, mm.ValidateSchema([]string{"missing"}, nil))
	assert.Error(t, mm.ValidateSchema(nil, []string{"idx_missing"}))
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"m/001_broken.sql": {Data: []byte("CREATE TABLE ok (id INTEGER); NOT SQL;")},
	}
	mm := NewMigrationManager(db, fsys, "m")
	assert.Error(t, mm.ApplyMigrations())

	applied, err := mm.AppliedVersions()
	require.NoError(t, err)
	assert.Empty(t, applied)
}
