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

// ListRepository handles list database operations.
type ListRepository struct {
	pool *pgxpool.Pool
}

var listColumns = []string{
	"id", "user_id", "name", "kind", "year", "mode", "description",
	"is_public", "public_slug", "created_at", "updated_at",
}

func selectLists() sq.SelectBuilder {
	return psql.Select(listColumns...).From("ranking_lists")
}

// Create inserts a new list. A zero ID is replaced with a fresh UUID.
// Returns ErrConflict when the user already has a list with the same year
// (year lists) or name (custom lists).
func (r *ListRepository) Create(ctx context.Context, list *List) error {
	if list.ID == uuid.Nil {
		list.ID = uuid.New()
	}
	query, args, err := psql.Insert("ranking_lists").
		Columns("id", "user_id", "name", "kind", "year", "mode", "description", "is_public", "public_slug").
		Values(list.ID, list.UserID, list.Name, list.Kind, list.Year, list.Mode, list.Description, list.IsPublic, list.PublicSlug).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building list insert: %w", err)
	}
	err = r.pool.QueryRow(ctx, query, args...).Scan(&list.CreatedAt, &list.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("inserting list: %w", err)
	}
	return nil
}

// Get retrieves a list by ID.
func (r *ListRepository) Get(ctx context.Context, id uuid.UUID) (*List, error) {
	return r.getOne(ctx, selectLists().Where("id = ?", id))
}

// FindYear retrieves the user's year list for year.
func (r *ListRepository) FindYear(ctx context.Context, userID string, year int) (*List, error) {
	return r.getOne(ctx, selectLists().Where(sq.Eq{"user_id": userID, "kind": KindYear, "year": year}))
}

// FindCustom retrieves the user's custom list named name.
func (r *ListRepository) FindCustom(ctx context.Context, userID, name string) (*List, error) {
	return r.getOne(ctx, selectLists().Where(sq.Eq{"user_id": userID, "kind": KindCustom, "name": name}))
}

// GetBySlug retrieves a list by its public slug, whether or not it is public.
func (r *ListRepository) GetBySlug(ctx context.Context, slug string) (*List, error) {
	return r.getOne(ctx, selectLists().Where(sq.Eq{"public_slug": slug}))
}

// ForUser returns all lists of a user in creation order.
func (r *ListRepository) ForUser(ctx context.Context, userID string) ([]List, error) {
	query, args, err := selectLists().
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lists: %w", err)
	}
	defer rows.Close()

	var lists []List
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning list: %w", err)
		}
		lists = append(lists, *list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lists: %w", err)
	}
	return lists, nil
}

// Rename changes a list's name.
func (r *ListRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.update(ctx, id, sq.Eq{"name": name}, "renaming list")
}

// SetSharing updates the public flag and slug together.
func (r *ListRepository) SetSharing(ctx context.Context, id uuid.UUID, public bool, slug *string) error {
	return r.update(ctx, id, sq.Eq{"is_public": public, "public_slug": slug}, "updating list sharing")
}

// Delete removes a list. Memberships, ratings and comparisons of the list
// are removed by cascade.
func (r *ListRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM ranking_lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting list: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ListRepository) update(ctx context.Context, id uuid.UUID, set sq.Eq, action string) error {
	query, args, err := psql.Update("ranking_lists").
		SetMap(set).
		Set("updated_at", sq.Expr("NOW()")).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("building list update: %w", err)
	}
	result, err := r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ListRepository) getOne(ctx context.Context, b sq.SelectBuilder) (*List, error) {
	query, args, err := b.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	list, err := scanList(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying list: %w", err)
	}
	return list, nil
}

func scanList(row pgx.Row) (*List, error) {
	var l List
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.Name,
		&l.Kind,
		&l.Year,
		&l.Mode,
		&l.Description,
		&l.IsPublic,
		&l.PublicSlug,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
