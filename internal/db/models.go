package db

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies where an album's metadata came from.
type Provider string

const (
	ProviderITunes      Provider = "itunes"
	ProviderSpotify     Provider = "spotify"
	ProviderMusicBrainz Provider = "musicbrainz"
	ProviderManual      Provider = "manual"
)

// ListeningStatus is a user's progress through an album.
type ListeningStatus string

const (
	StatusNotListened ListeningStatus = "not_listened"
	StatusListening   ListeningStatus = "listening"
	StatusListened    ListeningStatus = "listened"
)

// Valid reports whether s is one of the known statuses.
func (s ListeningStatus) Valid() bool {
	switch s {
	case StatusNotListened, StatusListening, StatusListened:
		return true
	}
	return false
}

// ListKind distinguishes year lists from user-named lists.
type ListKind string

const (
	KindYear   ListKind = "year"
	KindCustom ListKind = "custom"
)

// ListMode decides whether a list carries positions.
type ListMode string

const (
	ModeRanked     ListMode = "ranked"
	ModeCollection ListMode = "collection"
)

// Reserved list names.
const (
	NeedsListeningName        = "Needs listening"
	NeedsListeningDescription = "Albums to listen to"
	AllTimeName               = "All Time"
)

// User is the profile of an authenticated caller.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Album is a catalog entry shared by all users.
type Album struct {
	ID                uuid.UUID
	Provider          Provider
	ProviderAlbumID   *string // nullable, unique per provider
	CreatedByUserID   *string // nullable, set for manual albums
	Title             string
	Artist            string
	ReleaseYear       *int    // nullable
	ExternalURL       *string // nullable
	ArtworkThumbPath  *string // nullable
	ArtworkMediumPath *string // nullable
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasArtwork reports whether both artwork sizes are stored.
func (a *Album) HasArtwork() bool {
	return a.ArtworkThumbPath != nil && *a.ArtworkThumbPath != "" &&
		a.ArtworkMediumPath != nil && *a.ArtworkMediumPath != ""
}

// UserAlbum is one user's annotation of an album.
type UserAlbum struct {
	UserID    string
	AlbumID   uuid.UUID
	Status    ListeningStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAlbumEntry joins a user annotation with its album.
type UserAlbumEntry struct {
	UserAlbum
	Album Album
}

// List is a named container of albums owned by one user.
type List struct {
	ID          uuid.UUID
	UserID      string
	Name        string
	Kind        ListKind
	Year        *int // set only for year lists
	Mode        ListMode
	Description *string
	IsPublic    bool
	PublicSlug  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsNeedsListening reports whether l is the reserved list whose contents are
// derived from listening status.
func (l *List) IsNeedsListening() bool {
	return l.Kind == KindCustom && l.Name == NeedsListeningName
}

// Ranked reports whether l keeps positions.
func (l *List) Ranked() bool {
	return l.Mode == ModeRanked
}

// Membership links an album to a list.
type Membership struct {
	ListID   uuid.UUID
	AlbumID  uuid.UUID
	Position *int // nil for collection lists
	AddedAt  time.Time
}

// ListItem is a membership joined with its album for display.
type ListItem struct {
	Membership
	Album Album
}

// Placement is one list an album belongs to, with its position there.
type Placement struct {
	List     List
	Position *int
	AddedAt  time.Time
}

// EloRating is the skill estimate of an album within one list.
type EloRating struct {
	ListID    uuid.UUID
	AlbumID   uuid.UUID
	Rating    float64
	Matches   int
	UpdatedAt time.Time
}

// Comparison is one recorded "left vs right" judgment.
type Comparison struct {
	ID            uuid.UUID
	ListID        uuid.UUID
	LeftAlbumID   uuid.UUID
	RightAlbumID  uuid.UUID
	WinnerAlbumID uuid.UUID
	CreatedAt     time.Time
}
