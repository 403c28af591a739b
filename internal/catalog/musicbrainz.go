package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/albumrank/internal/db"
)

const (
	musicBrainzBaseURL = "https://musicbrainz.org"
	coverArtBaseURL    = "https://coverartarchive.org"

	// coverChecks bounds the concurrent Cover Art Archive probes per search.
	coverChecks = 4
)

// MusicBrainz searches MusicBrainz release groups. Artwork comes from the
// Cover Art Archive.
type MusicBrainz struct {
	client      *client
	baseURL     string
	coverURL    string
	limit       int
	checkCovers bool
}

// NewMusicBrainz creates a MusicBrainz searcher. MusicBrainz rejects requests
// without a descriptive User-Agent, so one should always be configured.
func NewMusicBrainz(userAgent string, limit int) *MusicBrainz {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MusicBrainz{
		client:      newClient(userAgent),
		baseURL:     musicBrainzBaseURL,
		coverURL:    coverArtBaseURL,
		limit:       limit,
		checkCovers: true,
	}
}

// Provider implements Searcher.
func (mb *MusicBrainz) Provider() db.Provider { return db.ProviderMusicBrainz }

// Search implements Searcher. Cover art is probed for every result; albums
// without a front cover are returned without artwork URLs.
func (mb *MusicBrainz) Search(ctx context.Context, term string) ([]Album, error) {
	term, ok := normalizeTerm(term)
	if !ok {
		return []Album{}, nil
	}

	params := url.Values{
		"query": {term + " AND primarytype:album"},
		"limit": {strconv.Itoa(mb.limit)},
		"fmt":   {"json"},
	}

	var resp releaseGroupSearch
	if err := mb.client.getJSON(ctx, mb.baseURL+"/ws/2/release-group?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("searching musicbrainz: %w", err)
	}

	albums := make([]Album, len(resp.ReleaseGroups))
	for i, g := range resp.ReleaseGroups {
		albums[i] = mb.album(g)
	}

	if mb.checkCovers {
		mb.dropMissingCovers(ctx, albums)
	}
	return albums, nil
}

// Lookup implements Searcher.
func (mb *MusicBrainz) Lookup(ctx context.Context, externalID string) (*Album, error) {
	params := url.Values{
		"inc": {"artist-credits"},
		"fmt": {"json"},
	}
	reqURL := mb.baseURL + "/ws/2/release-group/" + url.PathEscape(externalID) + "?" + params.Encode()

	var g releaseGroup
	if err := mb.client.getJSON(ctx, reqURL, &g); err != nil {
		return nil, fmt.Errorf("looking up musicbrainz release group %q: %w", externalID, err)
	}
	if g.ID == "" {
		return nil, fmt.Errorf("looking up musicbrainz release group %q: %w", externalID, ErrNotFound)
	}

	album := mb.album(g)
	return &album, nil
}

// CoverURL returns the Cover Art Archive front image of a release group at
// the given size (250, 500 or 1200).
func (mb *MusicBrainz) CoverURL(releaseGroupID string, size int) string {
	return fmt.Sprintf("%s/release-group/%s/front-%d", mb.coverURL, url.PathEscape(releaseGroupID), size)
}

func (mb *MusicBrainz) album(g releaseGroup) Album {
	return Album{
		Provider:    db.ProviderMusicBrainz,
		ExternalID:  g.ID,
		Title:       g.Title,
		Artist:      g.artistName(),
		ReleaseYear: parseYear(g.FirstReleaseDate),
		ExternalURL: "https://musicbrainz.org/release-group/" + g.ID,
		ThumbURL:    mb.CoverURL(g.ID, 250),
		ArtworkURL:  mb.CoverURL(g.ID, 500),
	}
}

// dropMissingCovers clears the artwork URLs of albums whose cover probe fails.
// Probe failures are never errors.
func (mb *MusicBrainz) dropMissingCovers(ctx context.Context, albums []Album) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(coverChecks)

	for i := range albums {
		i := i
		g.Go(func() error {
			if !mb.client.exists(gctx, albums[i].ThumbURL) {
				albums[i].ThumbURL = ""
				albums[i].ArtworkURL = ""
			}
			return nil
		})
	}
	_ = g.Wait()
}

type releaseGroupSearch struct {
	ReleaseGroups []releaseGroup `json:"release-groups"`
}

type releaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []artistCredit `json:"artist-credit"`
}

type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// artistName joins the credited artist names with commas.
func (g releaseGroup) artistName() string {
	names := make([]string, 0, len(g.ArtistCredit))
	for _, c := range g.ArtistCredit {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
