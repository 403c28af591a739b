// Package db provides PostgreSQL database access for album rankings.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

//go:embed schema.sql
var schema string

// psql builds queries with PostgreSQL placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Migrate creates the schema if it does not exist yet.
// Every statement is idempotent, so running it on each start is safe.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{pool: db.pool}
}

// Albums returns an AlbumRepository.
func (db *DB) Albums() *AlbumRepository {
	return &AlbumRepository{pool: db.pool}
}

// UserAlbums returns a UserAlbumRepository.
func (db *DB) UserAlbums() *UserAlbumRepository {
	return &UserAlbumRepository{pool: db.pool}
}

// Lists returns a ListRepository.
func (db *DB) Lists() *ListRepository {
	return &ListRepository{pool: db.pool}
}

// Memberships returns a MembershipRepository.
func (db *DB) Memberships() *MembershipRepository {
	return &MembershipRepository{pool: db.pool}
}

// Ratings returns a RatingRepository.
func (db *DB) Ratings() *RatingRepository {
	return &RatingRepository{pool: db.pool}
}

// Comparisons returns a ComparisonRepository.
func (db *DB) Comparisons() *ComparisonRepository {
	return &ComparisonRepository{pool: db.pool}
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
