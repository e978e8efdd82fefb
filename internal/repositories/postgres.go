package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/minitweet/backend/internal/db"
	"github.com/minitweet/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, name, email, profile, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, user.Name, user.Email, user.Profile, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT id, name, email, profile, password_hash, created_at
        FROM users
        WHERE id = $1
    `, id)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT id, name, email, profile, password_hash, created_at
        FROM users
        WHERE email = $1
    `, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.User
	row := conn.QueryRow(ctx, query, arg)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Profile, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// PostgresFollowRepository provides PostgreSQL-backed persistence for follow edges.
type PostgresFollowRepository struct {
	pool db.Pool
}

// NewPostgresFollowRepository constructs a follow repository backed by PostgreSQL.
func NewPostgresFollowRepository(pool db.Pool) *PostgresFollowRepository {
	return &PostgresFollowRepository{pool: pool}
}

// Insert records that followerID follows followeeID. Existing edges and unknown
// followees leave the table unchanged.
func (r *PostgresFollowRepository) Insert(ctx context.Context, followerID, followeeID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO follows (follower_id, followee_id, created_at)
        SELECT $1::TEXT, $2::TEXT, $3::TIMESTAMPTZ
        WHERE EXISTS (SELECT 1 FROM users WHERE id = $2::TEXT)
        ON CONFLICT (follower_id, followee_id) DO NOTHING
    `, followerID, followeeID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("insert follow: %w", err)
	}

	return nil
}

// Delete removes the edge if present.
func (r *PostgresFollowRepository) Delete(ctx context.Context, followerID, followeeID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM follows
        WHERE follower_id = $1 AND followee_id = $2
    `, followerID, followeeID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}

	return nil
}

// ListFollowees returns the ids followerID follows, oldest edge first.
func (r *PostgresFollowRepository) ListFollowees(ctx context.Context, followerID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT followee_id
        FROM follows
        WHERE follower_id = $1
        ORDER BY created_at ASC, followee_id ASC
    `, followerID)
	if err != nil {
		return nil, fmt.Errorf("query followees: %w", err)
	}
	defer rows.Close()

	var followees []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan followee: %w", err)
		}
		followees = append(followees, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followees: %w", err)
	}

	return followees, nil
}

// PostgresTweetRepository provides PostgreSQL-backed persistence for tweets.
type PostgresTweetRepository struct {
	pool db.Pool
}

// NewPostgresTweetRepository constructs a tweet repository backed by PostgreSQL.
func NewPostgresTweetRepository(pool db.Pool) *PostgresTweetRepository {
	return &PostgresTweetRepository{pool: pool}
}

// Append stores a new tweet and returns it with its assigned id.
func (r *PostgresTweetRepository) Append(ctx context.Context, authorID, text string) (models.Tweet, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Tweet{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tweet := models.Tweet{AuthorID: authorID, Text: text}
	row := conn.QueryRow(ctx, `
        INSERT INTO tweets (author_id, body, created_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `, authorID, text, time.Now().UTC())
	if err := row.Scan(&tweet.ID, &tweet.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return models.Tweet{}, ErrNotFound
		}
		return models.Tweet{}, fmt.Errorf("insert tweet: %w", err)
	}

	tweet.CreatedAt = tweet.CreatedAt.UTC()
	return tweet, nil
}

// ScanByAuthors returns the tweets of authorIDs in id order. Ids approximate
// append order only: concurrent inserts may commit out of sequence order, and on
// CockroachDB unique_rowid() is only roughly ordered across nodes.
func (r *PostgresTweetRepository) ScanByAuthors(ctx context.Context, authorIDs []string) ([]models.Tweet, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, author_id, body, created_at
        FROM tweets
        WHERE author_id = ANY($1)
        ORDER BY id ASC
    `, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("query tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.Tweet
	for rows.Next() {
		var tweet models.Tweet
		if err := rows.Scan(&tweet.ID, &tweet.AuthorID, &tweet.Text, &tweet.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweet.CreatedAt = tweet.CreatedAt.UTC()
		tweets = append(tweets, tweet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tweets: %w", err)
	}

	return tweets, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FollowRepository = (*PostgresFollowRepository)(nil)
var _ TweetRepository = (*PostgresTweetRepository)(nil)
