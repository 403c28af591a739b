package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RatingRepository handles Elo rating rows.
type RatingRepository struct {
	pool *pgxpool.Pool
}

// Ensure creates the rating at baseline with zero matches if it does not
// exist and returns the stored row.
func (r *RatingRepository) Ensure(ctx context.Context, listID, albumID uuid.UUID, baseline float64) (*EloRating, error) {
	insert := `
		INSERT INTO elo_ratings (ranking_list_id, album_id, rating, matches, updated_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (ranking_list_id, album_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, listID, albumID, baseline); err != nil {
		return nil, fmt.Errorf("ensuring rating: %w", err)
	}

	query := `
		SELECT ranking_list_id, album_id, rating, matches, updated_at
		FROM elo_ratings
		WHERE ranking_list_id = $1 AND album_id = $2
	`
	var rating EloRating
	err := r.pool.QueryRow(ctx, query, listID, albumID).Scan(
		&rating.ListID,
		&rating.AlbumID,
		&rating.Rating,
		&rating.Matches,
		&rating.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying rating: %w", err)
	}
	return &rating, nil
}

// Update writes a rating and its match count.
func (r *RatingRepository) Update(ctx context.Context, rating *EloRating) error {
	query := `
		UPDATE elo_ratings
		SET rating = $3, matches = $4, updated_at = NOW()
		WHERE ranking_list_id = $1 AND album_id = $2
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		rating.ListID,
		rating.AlbumID,
		rating.Rating,
		rating.Matches,
	).Scan(&rating.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating rating: %w", err)
	}
	return nil
}

// ForList returns every stored rating of a list, best first.
func (r *RatingRepository) ForList(ctx context.Context, listID uuid.UUID) ([]EloRating, error) {
	query := `
		SELECT ranking_list_id, album_id, rating, matches, updated_at
		FROM elo_ratings
		WHERE ranking_list_id = $1
		ORDER BY rating DESC, album_id
	`
	rows, err := r.pool.Query(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("querying ratings: %w", err)
	}
	defer rows.Close()

	var ratings []EloRating
	for rows.Next() {
		var rating EloRating
		if err := rows.Scan(
			&rating.ListID,
			&rating.AlbumID,
			&rating.Rating,
			&rating.Matches,
			&rating.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ratings: %w", err)
	}
	return ratings, nil
}
