package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Len(t, cfg.Shards, 3)
	assert.Equal(t, DriverPgx, cfg.Driver)
	assert.NoError(t, cfg.Validate())

	for i, shard := range cfg.Shards {
		assert.Equal(t, i, shard.ShardID)
		assert.Equal(t, 5440+2*i, shard.Primary.Port)
		require.Len(t, shard.Replicas, 1)
		assert.Equal(t, 5441+2*i, shard.Replicas[0].Port)
		assert.Equal(t, shard.Primary.DBName, shard.Replicas[0].DBName)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	dc := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "users"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=users sslmode=disable", dc.ConnectionString())

	dc.SSLMode = "require"
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=users sslmode=require", dc.ConnectionString())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Driver = "mysql" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"empty log level", func(c *Config) { c.LogLevel = "" }},
		{"no shards", func(c *Config) { c.Shards = nil }},
		{"ids out of order", func(c *Config) { c.Shards[0].ShardID = 1 }},
		{"missing host", func(c *Config) { c.Shards[1].Primary.Host = "" }},
		{"bad replica port", func(c *Config) { c.Shards[2].Replicas[0].Port = 0 }},
		{"missing dbname", func(c *Config) { c.Shards[0].Replicas[0].DBName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("USERSTORE_DRIVER", "")
	t.Setenv("USERSTORE_LOG_LEVEL", "")
	t.Setenv("USERSTORE_TOPOLOGY", "")
	os.Unsetenv("USERSTORE_DRIVER")
	os.Unsetenv("USERSTORE_LOG_LEVEL")
	os.Unsetenv("USERSTORE_TOPOLOGY")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPgx, cfg.Driver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Len(t, cfg.Shards, 3)
}

func TestLoad_FromEnvAndTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	topology := `
shards:
  - shard_id: 0
    primary: {host: pg0, port: 5432, user: app, password: secret, dbname: users}
    replicas:
      - {host: pg0-ro, port: 5432, user: app, password: secret, dbname: users}
  - shard_id: 1
    primary: {host: pg1, port: 5432, user: app, password: secret, dbname: users, sslmode: require}
`
	require.NoError(t, os.WriteFile(path, []byte(topology), 0o600))

	t.Setenv("USERSTORE_DRIVER", "postgres")
	t.Setenv("USERSTORE_LOG_LEVEL", "debug")
	t.Setenv("USERSTORE_TOPOLOGY", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPQ, cfg.Driver)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Shards, 2)
	assert.Equal(t, "pg0-ro", cfg.Shards[0].Replicas[0].Host)
	assert.Empty(t, cfg.Shards[1].Replicas)
	assert.Equal(t, "require", cfg.Shards[1].Primary.SSLMode)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("USERSTORE_TOPOLOGY", "")
		t.Setenv("USERSTORE_DRIVER", "sqlite")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown log level", func(t *testing.T) {
		t.Setenv("USERSTORE_TOPOLOGY", "")
		t.Setenv("USERSTORE_DRIVER", "pgx")
		t.Setenv("USERSTORE_LOG_LEVEL", "verbose")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("missing topology file", func(t *testing.T) {
		t.Setenv("USERSTORE_DRIVER", "pgx")
		t.Setenv("USERSTORE_TOPOLOGY", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed topology file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("shards: [oops"), 0o600))
		t.Setenv("USERSTORE_DRIVER", "pgx")
		t.Setenv("USERSTORE_TOPOLOGY", path)
		_, err := Load()
		assert.Error(t, err)
	})
}
