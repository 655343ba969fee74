package sharding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/samandartukhtayev/first-steps/config"
)

// ShardManager manages database shards and their replicas
type ShardManager struct {
	shards    []*Shard
	numShards int
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// Shard represents a single database shard with primary and replica connections
type Shard struct {
	ShardID  int
	Primary  *sql.DB
	Replicas []*sql.DB
}

// NewShardManager connects to every primary and replica in cfg.
// Connections opened before a failure are closed again.
func NewShardManager(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ShardManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shard config: %w", err)
	}

	sm := &ShardManager{
		shards:    make([]*Shard, 0, len(cfg.Shards)),
		numShards: len(cfg.Shards),
		logger:    logger,
	}

	for _, shardCfg := range cfg.Shards {
		shard := &Shard{
			ShardID:  shardCfg.ShardID,
			Replicas: make([]*sql.DB, 0, len(shardCfg.Replicas)),
		}
		sm.shards = append(sm.shards, shard)

		primaryDB, err := openDB(ctx, cfg.Driver, shardCfg.Primary)
		if err != nil {
			sm.Close()
			return nil, fmt.Errorf("failed to connect to primary for shard %d: %w", shardCfg.ShardID, err)
		}
		shard.Primary = primaryDB

		for j, replicaCfg := range shardCfg.Replicas {
			replicaDB, err := openDB(ctx, cfg.Driver, replicaCfg)
			if err != nil {
				sm.Close()
				return nil, fmt.Errorf("failed to connect to replica %d for shard %d: %w", j, shardCfg.ShardID, err)
			}
			shard.Replicas = append(shard.Replicas, replicaDB)
		}

		logger.Debug().
			Int("shard_id", shard.ShardID).
			Int("replicas", len(shard.Replicas)).
			Str("primary", fmt.Sprintf("%s:%d", shardCfg.Primary.Host, shardCfg.Primary.Port)).
			Msg("shard connected")
	}

	return sm, nil
}

func openDB(ctx context.Context, driver string, dc config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, dc.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", dc.Host, dc.Port, err)
	}

	return db, nil
}

// GetShardID maps a shard key to a shard using FNV-1a.
// The same key always goes to the same shard.
func (sm *ShardManager) GetShardID(shardKey string) int {
	h := fnv.New32a()
	h.Write([]byte(shardKey))
	return int(h.Sum32() % uint32(sm.numShards))
}

// GetPrimaryDB returns the primary database for a given shard key
// All write operations should use this
func (sm *ShardManager) GetPrimaryDB(shardKey string) *sql.DB {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.shards[sm.GetShardID(shardKey)].Primary
}

// GetReplicaDB returns a random replica for a given shard key,
// or the primary when the shard has no replicas.
func (sm *ShardManager) GetReplicaDB(shardKey string) *sql.DB {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.shards[sm.GetShardID(shardKey)].ReadDB()
}

// ReadDB returns a random replica of the shard, or the primary when it has none
func (s *Shard) ReadDB() *sql.DB {
	if len(s.Replicas) == 0 {
		return s.Primary
	}
	return s.Replicas[rand.Intn(len(s.Replicas))]
}

// GetShardByID returns a specific shard by its ID
func (sm *ShardManager) GetShardByID(shardID int) (*Shard, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if shardID < 0 || shardID >= sm.numShards {
		return nil, fmt.Errorf("invalid shard ID: %d", shardID)
	}

	return sm.shards[shardID], nil
}

// GetAllShards returns a copy of the shard list
func (sm *ShardManager) GetAllShards() []*Shard {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	shardsCopy := make([]*Shard, len(sm.shards))
	copy(shardsCopy, sm.shards)
	return shardsCopy
}

// Close closes all database connections
func (sm *ShardManager) Close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var errs []error

	for _, shard := range sm.shards {
		if shard.Primary != nil {
			if err := shard.Primary.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close primary for shard %d: %w", shard.ShardID, err))
			}
		}

		for i, replica := range shard.Replicas {
			if err := replica.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close replica %d for shard %d: %w", i, shard.ShardID, err))
			}
		}
	}

	return errors.Join(errs...)
}

// NumShards returns the total number of shards
func (sm *ShardManager) NumShards() int {
	return sm.numShards
}
