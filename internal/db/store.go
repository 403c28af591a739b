package db

import (
	"context"

	"github.com/google/uuid"
)

// UserStore persists user profiles.
type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, user *User) error
}

// AlbumStore persists catalog albums.
type AlbumStore interface {
	Create(ctx context.Context, album *Album) error
	Get(ctx context.Context, id uuid.UUID) (*Album, error)
	GetByProviderID(ctx context.Context, provider Provider, providerAlbumID string) (*Album, error)
	UpdateMetadata(ctx context.Context, album *Album) error
	UpdateArtwork(ctx context.Context, id uuid.UUID, thumbPath, mediumPath string) error
	MissingArtwork(ctx context.Context, limit int) ([]Album, error)
}

// UserAlbumStore persists per-user album annotations.
type UserAlbumStore interface {
	Ensure(ctx context.Context, userID string, albumID uuid.UUID) (*UserAlbum, error)
	Get(ctx context.Context, userID string, albumID uuid.UUID) (*UserAlbum, error)
	Upsert(ctx context.Context, ua *UserAlbum) error
	NeedsListening(ctx context.Context, userID string) ([]UserAlbumEntry, error)
}

// ListStore persists lists.
type ListStore interface {
	Create(ctx context.Context, list *List) error
	Get(ctx context.Context, id uuid.UUID) (*List, error)
	FindYear(ctx context.Context, userID string, year int) (*List, error)
	FindCustom(ctx context.Context, userID, name string) (*List, error)
	ForUser(ctx context.Context, userID string) ([]List, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetSharing(ctx context.Context, id uuid.UUID, public bool, slug *string) error
	GetBySlug(ctx context.Context, slug string) (*List, error)
}

// MembershipStore persists list memberships and their positions.
//
// Readers order by (position, added_at, album_id) and must not assume
// positions are contiguous: a reorder in flight leaves temporary values.
type MembershipStore interface {
	Insert(ctx context.Context, m *Membership) error
	Get(ctx context.Context, listID, albumID uuid.UUID) (*Membership, error)
	Delete(ctx context.Context, listID, albumID uuid.UUID) error
	MaxPosition(ctx context.Context, listID uuid.UUID) (int, error)
	AlbumIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error)
	SetPosition(ctx context.Context, listID, albumID uuid.UUID, position int) error
	Items(ctx context.Context, listID uuid.UUID) ([]ListItem, error)
	Count(ctx context.Context, listID uuid.UUID) (int, error)
	ForAlbum(ctx context.Context, userID string, albumID uuid.UUID) ([]Placement, error)
}

// RatingStore persists per-list Elo ratings.
type RatingStore interface {
	Ensure(ctx context.Context, listID, albumID uuid.UUID, baseline float64) (*EloRating, error)
	Update(ctx context.Context, rating *EloRating) error
	ForList(ctx context.Context, listID uuid.UUID) ([]EloRating, error)
}

// ComparisonStore persists the comparison audit log.
type ComparisonStore interface {
	Create(ctx context.Context, c *Comparison) error
	ForList(ctx context.Context, listID uuid.UUID, limit int) ([]Comparison, error)
}

// Store bundles every repository a service may need.
type Store struct {
	Users       UserStore
	Albums      AlbumStore
	UserAlbums  UserAlbumStore
	Lists       ListStore
	Memberships MembershipStore
	Ratings     RatingStore
	Comparisons ComparisonStore
}

// Store returns the PostgreSQL-backed repositories.
func (db *DB) Store() *Store {
	return &Store{
		Users:       db.Users(),
		Albums:      db.Albums(),
		UserAlbums:  db.UserAlbums(),
		Lists:       db.Lists(),
		Memberships: db.Memberships(),
		Ratings:     db.Ratings(),
		Comparisons: db.Comparisons(),
	}
}

var (
	_ UserStore       = (*UserRepository)(nil)
	_ AlbumStore      = (*AlbumRepository)(nil)
	_ UserAlbumStore  = (*UserAlbumRepository)(nil)
	_ ListStore       = (*ListRepository)(nil)
	_ MembershipStore = (*MembershipRepository)(nil)
	_ RatingStore     = (*RatingRepository)(nil)
	_ ComparisonStore = (*ComparisonRepository)(nil)
)
