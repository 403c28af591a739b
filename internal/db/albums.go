package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlbumRepository handles album database operations.
type AlbumRepository struct {
	pool *pgxpool.Pool
}

const albumColumns = `
	id, provider, provider_album_id, created_by_user_id, title, artist,
	release_year, external_url, artwork_thumb_path, artwork_medium_path,
	created_at, updated_at
`

// Create inserts a new album. A zero ID is replaced with a fresh UUID.
// Returns ErrConflict when the provider already has an album with the same ID.
func (r *AlbumRepository) Create(ctx context.Context, album *Album) error {
	if album.ID == uuid.Nil {
		album.ID = uuid.New()
	}
	query := `
		INSERT INTO albums (id, provider, provider_album_id, created_by_user_id, title, artist,
			release_year, external_url, artwork_thumb_path, artwork_medium_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		album.ID,
		album.Provider,
		album.ProviderAlbumID,
		album.CreatedByUserID,
		album.Title,
		album.Artist,
		album.ReleaseYear,
		album.ExternalURL,
		album.ArtworkThumbPath,
		album.ArtworkMediumPath,
	).Scan(&album.CreatedAt, &album.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("inserting album: %w", err)
	}
	return nil
}

// Get retrieves an album by ID.
func (r *AlbumRepository) Get(ctx context.Context, id uuid.UUID) (*Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE id = $1`
	album, err := scanAlbum(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying album: %w", err)
	}
	return album, nil
}

// GetByProviderID retrieves an album by its catalog identity.
func (r *AlbumRepository) GetByProviderID(ctx context.Context, provider Provider, providerAlbumID string) (*Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE provider = $1 AND provider_album_id = $2`
	album, err := scanAlbum(r.pool.QueryRow(ctx, query, provider, providerAlbumID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying album by provider id: %w", err)
	}
	return album, nil
}

// UpdateMetadata refreshes the descriptive fields of an album.
func (r *AlbumRepository) UpdateMetadata(ctx context.Context, album *Album) error {
	query := `
		UPDATE albums
		SET title = $2, artist = $3, release_year = $4, external_url = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		album.ID,
		album.Title,
		album.Artist,
		album.ReleaseYear,
		album.ExternalURL,
	).Scan(&album.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating album: %w", err)
	}
	return nil
}

// UpdateArtwork records the stored artwork paths of an album.
func (r *AlbumRepository) UpdateArtwork(ctx context.Context, id uuid.UUID, thumbPath, mediumPath string) error {
	query := `
		UPDATE albums
		SET artwork_thumb_path = $2, artwork_medium_path = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, thumbPath, mediumPath)
	if err != nil {
		return fmt.Errorf("updating album artwork: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MissingArtwork returns catalog-sourced albums without stored artwork, oldest first.
// A non-positive limit returns all of them.
func (r *AlbumRepository) MissingArtwork(ctx context.Context, limit int) ([]Album, error) {
	var lim *int // LIMIT NULL means no limit
	if limit > 0 {
		lim = &limit
	}
	query := `SELECT ` + albumColumns + `
		FROM albums
		WHERE provider <> 'manual'
			AND provider_album_id IS NOT NULL
			AND (artwork_thumb_path IS NULL OR artwork_medium_path IS NULL)
		ORDER BY created_at, id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("querying albums missing artwork: %w", err)
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		albums = append(albums, *album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating albums: %w", err)
	}
	return albums, nil
}

func scanAlbum(row pgx.Row) (*Album, error) {
	var a Album
	err := row.Scan(
		&a.ID,
		&a.Provider,
		&a.ProviderAlbumID,
		&a.CreatedByUserID,
		&a.Title,
		&a.Artist,
		&a.ReleaseYear,
		&a.ExternalURL,
		&a.ArtworkThumbPath,
		&a.ArtworkMediumPath,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// prefixed qualifies every column in a comma-separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
