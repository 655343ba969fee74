package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samandartukhtayev/first-steps/config"
	"github.com/samandartukhtayev/first-steps/models"
	"github.com/samandartukhtayev/first-steps/repository"
	"github.com/samandartukhtayev/first-steps/sharding"
)

// replicationDelay is how long the demo waits before reading from replicas
const replicationDelay = 200 * time.Millisecond

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Load validates the level
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	sm, err := sharding.NewShardManager(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create shard manager")
	}
	defer sm.Close()

	log.Info().Int("shards", sm.NumShards()).Str("driver", cfg.Driver).Msg("connected to all shards")

	repo := repository.NewUserRepository(sm)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare schema")
	}

	demonstrateSharding(sm)
	demonstrateLifecycle(ctx, repo, sm)
	demonstrateShardDistribution(ctx, repo)
}

func demonstrateSharding(sm *sharding.ShardManager) {
	for _, username := range []string{"user_alice", "user_bob", "user_charlie", "user_diana", "user_eve"} {
		log.Info().Str("username", username).Int("shard_id", sm.GetShardID(username)).Msg("shard key placement")
	}
}

func demonstrateLifecycle(ctx context.Context, repo *repository.UserRepository, sm *sharding.ShardManager) {
	user := models.BuildUser("someone@example.com", "someusername123")
	logger := log.With().Str("username", user.Username).Int("shard_id", sm.GetShardID(user.Username)).Logger()

	if err := repo.Create(ctx, user); err != nil {
		logger.Error().Err(err).Msg("failed to create user")
		return
	}
	defer func() {
		if err := repo.Delete(ctx, user.Username); err != nil {
			logger.Error().Err(err).Msg("failed to delete user")
		}
	}()
	logger.Info().Int64("id", user.ID).Msg("user created")

	count, err := repo.RecordSignIn(ctx, user.Username)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record sign-in")
		return
	}
	logger.Info().Uint64("sign_in_count", count).Msg("sign-in recorded on primary")

	// Replicas may lag behind the primary
	if _, err := repo.GetByUsername(ctx, user.Username); err != nil {
		logger.Info().Err(err).Msg("not yet visible on replica")
	}
	time.Sleep(replicationDelay)

	replicated, err := repo.GetByUsername(ctx, user.Username)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read user from replica")
		return
	}
	logger.Info().
		Bool("active", replicated.Active).
		Uint64("sign_in_count", replicated.SignInCount).
		Msg("user read from replica")

	if err := repo.Deactivate(ctx, user.Username); err != nil {
		logger.Error().Err(err).Msg("failed to deactivate user")
		return
	}
	logger.Info().Msg("user deactivated")
}

func demonstrateShardDistribution(ctx context.Context, repo *repository.UserRepository) {
	usernames := []string{"dist_user_1", "dist_user_2", "dist_user_3", "dist_user_4", "dist_user_5"}

	for _, username := range usernames {
		if err := repo.Create(ctx, models.BuildUser(username+"@example.com", username)); err != nil {
			log.Error().Err(err).Str("username", username).Msg("failed to create user")
		}
	}
	defer func() {
		for _, username := range usernames {
			_ = repo.Delete(ctx, username)
		}
	}()

	counts, err := repo.CountUsersPerShard(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to count users per shard")
		return
	}

	total := 0
	for shardID, count := range counts {
		log.Info().Int("shard_id", shardID).Int("users", count).Msg("shard size")
		total += count
	}
	log.Info().Int("users", total).Msg("total users")
}
