package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/samandartukhtayev/first-steps/models"
	"github.com/samandartukhtayev/first-steps/sharding"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

const uniqueViolation = "23505"

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		sign_in_count BIGINT NOT NULL DEFAULT 1,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

const selectUser = `
	SELECT id, active, username, email, sign_in_count, created_at
	FROM users
`

// UserRepository stores users across shards, keyed by username.
// Writes go to the shard primary, reads may go to a replica.
type UserRepository struct {
	shardManager *sharding.ShardManager
}

// NewUserRepository creates a new user repository
func NewUserRepository(sm *sharding.ShardManager) *UserRepository {
	return &UserRepository{
		shardManager: sm,
	}
}

// EnsureSchema creates the users table on every shard primary
func (r *UserRepository) EnsureSchema(ctx context.Context) error {
	for _, shard := range r.shardManager.GetAllShards() {
		if _, err := shard.Primary.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema on shard %d: %w", shard.ShardID, err)
		}
	}
	return nil
}

// Create stores a new user and fills in its ID and CreatedAt
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	db := r.shardManager.GetPrimaryDB(user.Username)

	query := `
		INSERT INTO users (username, email, active, sign_in_count, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at
	`

	err := db.QueryRowContext(ctx, query, user.Username, user.Email, user.Active, int64(user.SignInCount)).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByUsername retrieves a user from a replica.
// Recent writes may not be visible yet.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, r.shardManager.GetReplicaDB(username), username)
}

// GetByUsernameFromPrimary retrieves a user from the primary database.
// Use this when you need to read your own writes.
func (r *UserRepository) GetByUsernameFromPrimary(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, r.shardManager.GetPrimaryDB(username), username)
}

func (r *UserRepository) getUser(ctx context.Context, db *sql.DB, username string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx, selectUser+" WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// RecordSignIn increments the sign-in counter and returns the new value
func (r *UserRepository) RecordSignIn(ctx context.Context, username string) (uint64, error) {
	db := r.shardManager.GetPrimaryDB(username)

	query := `
		UPDATE users
		SET sign_in_count = sign_in_count + 1
		WHERE username = $1
		RETURNING sign_in_count
	`

	var count int64
	err := db.QueryRowContext(ctx, query, username).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return 0, fmt.Errorf("failed to record sign-in: %w", err)
	}

	return uint64(count), nil
}

// Deactivate clears the active flag of a user
func (r *UserRepository) Deactivate(ctx context.Context, username string) error {
	return r.exec(ctx, username, "deactivate user", `UPDATE users SET active = FALSE WHERE username = $1`)
}

// Delete deletes a user by username
func (r *UserRepository) Delete(ctx context.Context, username string) error {
	return r.exec(ctx, username, "delete user", `DELETE FROM users WHERE username = $1`)
}

func (r *UserRepository) exec(ctx context.Context, username, action, query string) error {
	db := r.shardManager.GetPrimaryDB(username)

	result, err := db.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	return nil
}

// GetAllUsers retrieves all users across all shards.
// This queries every shard, so keep it out of hot paths.
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	var allUsers []*models.User

	for _, shard := range r.shardManager.GetAllShards() {
		users, err := queryUsers(ctx, shard, selectUser+" ORDER BY created_at DESC")
		if err != nil {
			return nil, err
		}
		allUsers = append(allUsers, users...)
	}

	return allUsers, nil
}

func queryUsers(ctx context.Context, shard *sharding.Shard, query string) ([]*models.User, error) {
	rows, err := shard.ReadDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query shard %d: %w", shard.ShardID, err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user from shard %d: %w", shard.ShardID, err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from shard %d: %w", shard.ShardID, err)
	}

	return users, nil
}

// CountUsersPerShard returns the count of users in each shard
func (r *UserRepository) CountUsersPerShard(ctx context.Context) (map[int]int, error) {
	counts := make(map[int]int)

	for _, shard := range r.shardManager.GetAllShards() {
		var count int
		err := shard.Primary.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed to count users in shard %d: %w", shard.ShardID, err)
		}
		counts[shard.ShardID] = count
	}

	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var count int64

	err := row.Scan(&user.ID, &user.Active, &user.Username, &user.Email, &count, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	user.SignInCount = uint64(count)
	return user, nil
}

// isUniqueViolation reports a unique constraint error from either driver
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}

	return false
}
