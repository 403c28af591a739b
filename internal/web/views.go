package web

import (
	"time"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/albums"
	"github.com/justestif/albumrank/internal/artwork"
	"github.com/justestif/albumrank/internal/compare"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/elo"
	"github.com/justestif/albumrank/internal/share"
)

// JSON shapes of the API.

type listView struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Kind        db.ListKind `json:"kind"`
	Year        *int        `json:"year"`
	Mode        db.ListMode `json:"mode"`
	Description *string     `json:"description"`
	IsPublic    bool        `json:"isPublic"`
	PublicSlug  *string     `json:"publicSlug"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func newListView(l db.List) listView {
	return listView{
		ID:          l.ID,
		Name:        l.Name,
		Kind:        l.Kind,
		Year:        l.Year,
		Mode:        l.Mode,
		Description: l.Description,
		IsPublic:    l.IsPublic,
		PublicSlug:  l.PublicSlug,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func newListViews(ls []db.List) []listView {
	out := make([]listView, len(ls))
	for i, l := range ls {
		out[i] = newListView(l)
	}
	return out
}

type albumView struct {
	ID              uuid.UUID   `json:"id"`
	Provider        db.Provider `json:"provider"`
	ProviderAlbumID *string     `json:"providerAlbumId"`
	Title           string      `json:"title"`
	Artist          string      `json:"artist"`
	ReleaseYear     *int        `json:"releaseYear"`
	ExternalURL     *string     `json:"externalUrl"`
	ThumbURL        *string     `json:"thumbUrl"`
	MediumURL       *string     `json:"mediumUrl"`
}

func newAlbumView(a db.Album, art artwork.Store) albumView {
	return albumView{
		ID:              a.ID,
		Provider:        a.Provider,
		ProviderAlbumID: a.ProviderAlbumID,
		Title:           a.Title,
		Artist:          a.Artist,
		ReleaseYear:     a.ReleaseYear,
		ExternalURL:     a.ExternalURL,
		ThumbURL:        artworkURL(art, a.ArtworkThumbPath),
		MediumURL:       artworkURL(art, a.ArtworkMediumPath),
	}
}

func artworkURL(art artwork.Store, path *string) *string {
	if art == nil || path == nil || *path == "" {
		return nil
	}
	u := art.URL(*path)
	return &u
}

type itemView struct {
	AlbumID  uuid.UUID `json:"albumId"`
	Position *int      `json:"position"`
	AddedAt  time.Time `json:"addedAt"`
	Album    albumView `json:"album"`
}

func newItemViews(items []db.ListItem, art artwork.Store) []itemView {
	out := make([]itemView, len(items))
	for i, it := range items {
		out[i] = itemView{
			AlbumID:  it.AlbumID,
			Position: it.Position,
			AddedAt:  it.AddedAt,
			Album:    newAlbumView(it.Album, art),
		}
	}
	return out
}

type outcomeView struct {
	AlbumID uuid.UUID `json:"albumId"`
	Rating  float64   `json:"rating"`
	Matches int       `json:"matches"`
}

type comparisonResultView struct {
	Left  outcomeView `json:"left"`
	Right outcomeView `json:"right"`
	Moved bool        `json:"moved"`
}

func newComparisonResultView(r *compare.Result) comparisonResultView {
	return comparisonResultView{
		Left:  outcomeView{AlbumID: r.Left.AlbumID, Rating: r.Left.Rating, Matches: r.Left.Matches},
		Right: outcomeView{AlbumID: r.Right.AlbumID, Rating: r.Right.Rating, Matches: r.Right.Matches},
		Moved: r.Moved,
	}
}

type comparisonView struct {
	ID            uuid.UUID `json:"id"`
	LeftAlbumID   uuid.UUID `json:"leftAlbumId"`
	RightAlbumID  uuid.UUID `json:"rightAlbumId"`
	WinnerAlbumID uuid.UUID `json:"winnerAlbumId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newComparisonViews(cs []db.Comparison) []comparisonView {
	out := make([]comparisonView, len(cs))
	for i, c := range cs {
		out[i] = comparisonView{
			ID:            c.ID,
			LeftAlbumID:   c.LeftAlbumID,
			RightAlbumID:  c.RightAlbumID,
			WinnerAlbumID: c.WinnerAlbumID,
			CreatedAt:     c.CreatedAt,
		}
	}
	return out
}

type pairView struct {
	Subject  uuid.UUID `json:"subject"`
	Opponent uuid.UUID `json:"opponent"`
}

type standingView struct {
	itemView
	Rating  float64 `json:"rating"`
	Matches int     `json:"matches"`
}

func newStandingViews(ss []compare.Standing, art artwork.Store) []standingView {
	out := make([]standingView, len(ss))
	for i, s := range ss {
		out[i] = standingView{
			itemView: newItemViews([]db.ListItem{s.Item}, art)[0],
			Rating:   s.Rating,
			Matches:  s.Matches,
		}
	}
	return out
}

type tierAlbumView struct {
	AlbumID uuid.UUID `json:"albumId"`
	Rating  float64   `json:"rating"`
	Matches int       `json:"matches"`
}

type tierView struct {
	Min    float64         `json:"min"`
	Max    float64         `json:"max"`
	Albums []tierAlbumView `json:"albums"`
}

func newTierViews(ts []elo.Tier) []tierView {
	out := make([]tierView, len(ts))
	for i, t := range ts {
		albums := make([]tierAlbumView, len(t.Albums))
		for j, a := range t.Albums {
			albums[j] = tierAlbumView{AlbumID: a.AlbumID, Rating: a.Rating.Value, Matches: a.Rating.Matches}
		}
		out[i] = tierView{Min: t.Min, Max: t.Max, Albums: albums}
	}
	return out
}

type shareView struct {
	PublicSlug *string `json:"publicSlug"`
	IsPublic   bool    `json:"isPublic"`
}

// publicListView leaves out the owner's user id.
type publicListView struct {
	List struct {
		Name        string      `json:"name"`
		Kind        db.ListKind `json:"kind"`
		Year        *int        `json:"year"`
		Mode        db.ListMode `json:"mode"`
		Description *string     `json:"description"`
	} `json:"list"`
	Items []itemView `json:"items"`
	Owner string     `json:"owner"`
}

func newPublicListView(p *share.PublicList, art artwork.Store) publicListView {
	var v publicListView
	v.List.Name = p.List.Name
	v.List.Kind = p.List.Kind
	v.List.Year = p.List.Year
	v.List.Mode = p.List.Mode
	v.List.Description = p.List.Description
	v.Items = newItemViews(p.Items, art)
	v.Owner = p.Owner
	return v
}

type userAlbumView struct {
	Status    db.ListeningStatus `json:"status"`
	Notes     string             `json:"notes"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func newUserAlbumView(ua *db.UserAlbum) *userAlbumView {
	if ua == nil {
		return nil
	}
	return &userAlbumView{
		Status:    ua.Status,
		Notes:     ua.Notes,
		CreatedAt: ua.CreatedAt,
		UpdatedAt: ua.UpdatedAt,
	}
}

type placementView struct {
	List     listView  `json:"list"`
	Position *int      `json:"position"`
	AddedAt  time.Time `json:"addedAt"`
}

func newPlacementViews(ps []db.Placement) []placementView {
	out := make([]placementView, len(ps))
	for i, p := range ps {
		out[i] = placementView{List: newListView(p.List), Position: p.Position, AddedAt: p.AddedAt}
	}
	return out
}

type albumDetailView struct {
	Album       albumView       `json:"album"`
	UserAlbum   *userAlbumView  `json:"userAlbum"`
	Memberships []placementView `json:"memberships"`
}

func newAlbumDetailView(d *albums.Detail, art artwork.Store) albumDetailView {
	return albumDetailView{
		Album:       newAlbumView(d.Album, art),
		UserAlbum:   newUserAlbumView(d.UserAlbum),
		Memberships: newPlacementViews(d.Placements),
	}
}
