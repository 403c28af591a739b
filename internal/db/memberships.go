package db

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipRepository handles list membership rows.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// itemOrder is the stable reader ordering of a list. Collection lists have
// null positions and fall back to insertion order.
var itemOrder = []string{"ri.position NULLS LAST", "ri.added_at", "ri.album_id"}

// Insert adds an album to a list. Returns ErrConflict when the album is
// already a member or the position is taken.
func (r *MembershipRepository) Insert(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO ranking_items (ranking_list_id, album_id, position, added_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING added_at
	`
	err := r.pool.QueryRow(ctx, query, m.ListID, m.AlbumID, m.Position).Scan(&m.AddedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

// Get retrieves a single membership.
func (r *MembershipRepository) Get(ctx context.Context, listID, albumID uuid.UUID) (*Membership, error) {
	query := `
		SELECT ranking_list_id, album_id, position, added_at
		FROM ranking_items
		WHERE ranking_list_id = $1 AND album_id = $2
	`
	var m Membership
	err := r.pool.QueryRow(ctx, query, listID, albumID).Scan(&m.ListID, &m.AlbumID, &m.Position, &m.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying membership: %w", err)
	}
	return &m, nil
}

// Delete removes an album from a list.
func (r *MembershipRepository) Delete(ctx context.Context, listID, albumID uuid.UUID) error {
	query := `DELETE FROM ranking_items WHERE ranking_list_id = $1 AND album_id = $2`
	result, err := r.pool.Exec(ctx, query, listID, albumID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxPosition returns the largest persisted position of a list, 0 when none.
func (r *MembershipRepository) MaxPosition(ctx context.Context, listID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(position), 0) FROM ranking_items WHERE ranking_list_id = $1`
	var max int
	if err := r.pool.QueryRow(ctx, query, listID).Scan(&max); err != nil {
		return 0, fmt.Errorf("querying max position: %w", err)
	}
	return max, nil
}

// Count returns the number of members of a list.
func (r *MembershipRepository) Count(ctx context.Context, listID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM ranking_items WHERE ranking_list_id = $1`
	var n int
	if err := r.pool.QueryRow(ctx, query, listID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting memberships: %w", err)
	}
	return n, nil
}

// SetPosition writes one album's position.
// Returns ErrConflict when another member already holds position.
func (r *MembershipRepository) SetPosition(ctx context.Context, listID, albumID uuid.UUID, position int) error {
	query := `UPDATE ranking_items SET position = $3 WHERE ranking_list_id = $1 AND album_id = $2`
	result, err := r.pool.Exec(ctx, query, listID, albumID, position)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("updating position: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AlbumIDs returns the album IDs of a list in reader order.
func (r *MembershipRepository) AlbumIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	query, args, err := psql.Select("ri.album_id").
		From("ranking_items ri").
		Where("ri.ranking_list_id = ?", listID).
		OrderBy(itemOrder...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building membership query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collecting album ids: %w", err)
	}
	return ids, nil
}

// Items returns the members of a list joined with their albums, in reader order.
func (r *MembershipRepository) Items(ctx context.Context, listID uuid.UUID) ([]ListItem, error) {
	query, args, err := psql.Select("ri.ranking_list_id", "ri.album_id", "ri.position", "ri.added_at").
		Column(prefixed("a", albumColumns)).
		From("ranking_items ri").
		Join("albums a ON a.id = ri.album_id").
		Where("ri.ranking_list_id = ?", listID).
		OrderBy(itemOrder...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		a := &it.Album
		if err := rows.Scan(
			&it.ListID, &it.AlbumID, &it.Position, &it.AddedAt,
			&a.ID, &a.Provider, &a.ProviderAlbumID, &a.CreatedByUserID, &a.Title, &a.Artist,
			&a.ReleaseYear, &a.ExternalURL, &a.ArtworkThumbPath, &a.ArtworkMediumPath,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// ForAlbum returns every list of the user that contains the album, with
// the album's position in each.
func (r *MembershipRepository) ForAlbum(ctx context.Context, userID string, albumID uuid.UUID) ([]Placement, error) {
	query, args, err := psql.Select(prefixedList("l", listColumns)...).
		Columns("ri.position", "ri.added_at").
		From("ranking_items ri").
		Join("ranking_lists l ON l.id = ri.ranking_list_id").
		Where(sq.Eq{"l.user_id": userID}).
		Where("ri.album_id = ?", albumID).
		OrderBy("l.created_at", "l.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building placement query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying placements: %w", err)
	}
	defer rows.Close()

	var placements []Placement
	for rows.Next() {
		var p Placement
		l := &p.List
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Name, &l.Kind, &l.Year, &l.Mode, &l.Description,
			&l.IsPublic, &l.PublicSlug, &l.CreatedAt, &l.UpdatedAt,
			&p.Position, &p.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning placement: %w", err)
		}
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating placements: %w", err)
	}
	return placements, nil
}

func prefixedList(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}
