package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserAlbumRepository handles per-user album annotations.
type UserAlbumRepository struct {
	pool *pgxpool.Pool
}

// Ensure creates the annotation with status not_listened if it does not
// exist and returns the stored row.
func (r *UserAlbumRepository) Ensure(ctx context.Context, userID string, albumID uuid.UUID) (*UserAlbum, error) {
	query := `
		INSERT INTO user_albums (user_id, album_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, 'not_listened', '', NOW(), NOW())
		ON CONFLICT (user_id, album_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID, albumID); err != nil {
		return nil, fmt.Errorf("ensuring user album: %w", err)
	}
	return r.Get(ctx, userID, albumID)
}

// Get retrieves one user's annotation of an album.
func (r *UserAlbumRepository) Get(ctx context.Context, userID string, albumID uuid.UUID) (*UserAlbum, error) {
	query := `
		SELECT user_id, album_id, status, notes, created_at, updated_at
		FROM user_albums
		WHERE user_id = $1 AND album_id = $2
	`
	var ua UserAlbum
	err := r.pool.QueryRow(ctx, query, userID, albumID).Scan(
		&ua.UserID,
		&ua.AlbumID,
		&ua.Status,
		&ua.Notes,
		&ua.CreatedAt,
		&ua.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user album: %w", err)
	}
	return &ua, nil
}

// Upsert creates or updates an annotation.
func (r *UserAlbumRepository) Upsert(ctx context.Context, ua *UserAlbum) error {
	query := `
		INSERT INTO user_albums (user_id, album_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, album_id) DO UPDATE SET
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		ua.UserID,
		ua.AlbumID,
		ua.Status,
		ua.Notes,
	).Scan(&ua.CreatedAt, &ua.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user album: %w", err)
	}
	return nil
}

// NeedsListening returns the user's albums that are not finished:
// in-progress first, then not started, each newest annotation first.
func (r *UserAlbumRepository) NeedsListening(ctx context.Context, userID string) ([]UserAlbumEntry, error) {
	query := `
		SELECT ua.user_id, ua.album_id, ua.status, ua.notes, ua.created_at, ua.updated_at,
			` + prefixed("a", albumColumns) + `
		FROM user_albums ua
		JOIN albums a ON a.id = ua.album_id
		WHERE ua.user_id = $1 AND ua.status IN ('listening', 'not_listened')
		ORDER BY CASE ua.status WHEN 'listening' THEN 0 ELSE 1 END, ua.created_at DESC, ua.album_id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying needs listening: %w", err)
	}
	defer rows.Close()

	var entries []UserAlbumEntry
	for rows.Next() {
		var e UserAlbumEntry
		a := &e.Album
		if err := rows.Scan(
			&e.UserID, &e.AlbumID, &e.Status, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
			&a.ID, &a.Provider, &a.ProviderAlbumID, &a.CreatedByUserID, &a.Title, &a.Artist,
			&a.ReleaseYear, &a.ExternalURL, &a.ArtworkThumbPath, &a.ArtworkMediumPath,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning user album: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user albums: %w", err)
	}
	return entries, nil
}
