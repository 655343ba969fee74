package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Supported database/sql driver names
const (
	DriverPgx = "pgx"      // registered by github.com/jackc/pgx/v5/stdlib
	DriverPQ  = "postgres" // registered by github.com/lib/pq
)

// ShardConfig represents configuration for a single shard
type ShardConfig struct {
	ShardID  int              `yaml:"shard_id"`
	Primary  DatabaseConfig   `yaml:"primary"`
	Replicas []DatabaseConfig `yaml:"replicas"`
}

// DatabaseConfig represents a single database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Config holds the complete application configuration
type Config struct {
	Driver   string
	LogLevel string
	Shards   []ShardConfig
}

// settings are the values read from the environment
type settings struct {
	Driver   string `env:"USERSTORE_DRIVER" envDefault:"pgx"`
	LogLevel string `env:"USERSTORE_LOG_LEVEL" envDefault:"info"`
	Topology string `env:"USERSTORE_TOPOLOGY"`
}

type topology struct {
	Shards []ShardConfig `yaml:"shards"`
}

// ConnectionString returns a PostgreSQL connection string
func (dc *DatabaseConfig) ConnectionString() string {
	sslMode := dc.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dc.Host, dc.Port, dc.User, dc.Password, dc.DBName, sslMode,
	)
}

func (dc *DatabaseConfig) validate() error {
	if dc.Host == "" {
		return errors.New("host is required")
	}
	if dc.Port <= 0 {
		return fmt.Errorf("invalid port: %d", dc.Port)
	}
	if dc.DBName == "" {
		return errors.New("dbname is required")
	}
	return nil
}

// Validate checks that the shard layout is usable.
// Shard IDs must be 0..n-1 in order since they index the shard list.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPgx, DriverPQ:
	default:
		return fmt.Errorf("unsupported driver: %q", c.Driver)
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if level == zerolog.NoLevel {
		return errors.New("log level is required")
	}

	if len(c.Shards) == 0 {
		return errors.New("at least one shard is required")
	}

	for i, shard := range c.Shards {
		if shard.ShardID != i {
			return fmt.Errorf("shard at position %d has ID %d", i, shard.ShardID)
		}
		if err := shard.Primary.validate(); err != nil {
			return fmt.Errorf("shard %d primary: %w", i, err)
		}
		for j, replica := range shard.Replicas {
			if err := replica.validate(); err != nil {
				return fmt.Errorf("shard %d replica %d: %w", i, j, err)
			}
		}
	}

	return nil
}

// DefaultConfig returns the default configuration with 3 shards and 1 replica each
func DefaultConfig() *Config {
	cfg := &Config{
		Driver:   DriverPgx,
		LogLevel: "info",
	}

	for i := 0; i < 3; i++ {
		dbName := fmt.Sprintf("shard%d", i)
		cfg.Shards = append(cfg.Shards, ShardConfig{
			ShardID: i,
			Primary: localDatabase(5440+2*i, dbName),
			Replicas: []DatabaseConfig{
				localDatabase(5441+2*i, dbName),
			},
		})
	}

	return cfg
}

func localDatabase(port int, dbName string) DatabaseConfig {
	return DatabaseConfig{
		Host:     "localhost",
		Port:     port,
		User:     "postgres",
		Password: "postgres",
		DBName:   dbName,
	}
}

// LoadTopology reads the shard layout from a YAML file
func LoadTopology(path string) ([]ShardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var t topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}

	return t.Shards, nil
}

// Load builds the configuration from environment variables.
// Without USERSTORE_TOPOLOGY the default shard layout is used.
func Load() (*Config, error) {
	var s settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Driver = s.Driver
	cfg.LogLevel = s.LogLevel

	if s.Topology != "" {
		shards, err := LoadTopology(s.Topology)
		if err != nil {
			return nil, err
		}
		cfg.Shards = shards
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
