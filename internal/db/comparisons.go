package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ComparisonRepository handles the append-only comparison log.
type ComparisonRepository struct {
	pool *pgxpool.Pool
}

// Create appends a comparison. A zero ID is replaced with a fresh UUID.
func (r *ComparisonRepository) Create(ctx context.Context, c *Comparison) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO comparisons (id, ranking_list_id, left_album_id, right_album_id, winner_album_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		c.ID,
		c.ListID,
		c.LeftAlbumID,
		c.RightAlbumID,
		c.WinnerAlbumID,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting comparison: %w", err)
	}
	return nil
}

// ForList returns the most recent comparisons of a list, newest first.
func (r *ComparisonRepository) ForList(ctx context.Context, listID uuid.UUID, limit int) ([]Comparison, error) {
	query := `
		SELECT id, ranking_list_id, left_album_id, right_album_id, winner_album_id, created_at
		FROM comparisons
		WHERE ranking_list_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, listID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []Comparison
	for rows.Next() {
		var c Comparison
		if err := rows.Scan(
			&c.ID,
			&c.ListID,
			&c.LeftAlbumID,
			&c.RightAlbumID,
			&c.WinnerAlbumID,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning comparison: %w", err)
		}
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comparisons: %w", err)
	}
	return comparisons, nil
}
