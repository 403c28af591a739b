package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/albumrank/internal/db"
)

// ErrMissingCredentials is returned when the Spotify client id or secret is empty.
var ErrMissingCredentials = errors.New("missing spotify client id or secret")

// Spotify searches the Spotify Web API with an app token.
type Spotify struct {
	api   *spotify.Client
	limit int
}

// NewSpotify creates a Spotify searcher authenticated with the client
// credentials flow. The token is fetched lazily and refreshed by oauth2.
func NewSpotify(ctx context.Context, clientID, clientSecret string, limit int) (*Spotify, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	return &Spotify{
		api:   spotify.New(cfg.Client(ctx), spotify.WithRetry(true)),
		limit: limit,
	}, nil
}

// Provider implements Searcher.
func (s *Spotify) Provider() db.Provider { return db.ProviderSpotify }

// Search implements Searcher.
func (s *Spotify) Search(ctx context.Context, term string) ([]Album, error) {
	term, ok := normalizeTerm(term)
	if !ok {
		return []Album{}, nil
	}

	result, err := s.api.Search(ctx, term, spotify.SearchTypeAlbum, spotify.Limit(s.limit))
	if err != nil {
		return nil, fmt.Errorf("searching spotify: %w", err)
	}
	if result.Albums == nil {
		return []Album{}, nil
	}

	albums := make([]Album, 0, len(result.Albums.Albums))
	for _, a := range result.Albums.Albums {
		albums = append(albums, convertAlbum(a))
	}
	return albums, nil
}

// Lookup implements Searcher.
func (s *Spotify) Lookup(ctx context.Context, externalID string) (*Album, error) {
	full, err := s.api.GetAlbum(ctx, spotify.ID(externalID))
	if err != nil {
		var apiErr spotify.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			err = ErrNotFound
		}
		return nil, fmt.Errorf("looking up spotify album %q: %w", externalID, err)
	}

	album := convertAlbum(full.SimpleAlbum)
	return &album, nil
}

// convertAlbum converts a Spotify album to a catalog Album. Spotify lists
// images widest first.
func convertAlbum(a spotify.SimpleAlbum) Album {
	artists := make([]string, len(a.Artists))
	for i, artist := range a.Artists {
		artists[i] = artist.Name
	}

	album := Album{
		Provider:    db.ProviderSpotify,
		ExternalID:  a.ID.String(),
		Title:       a.Name,
		Artist:      strings.Join(artists, ", "),
		ReleaseYear: parseYear(a.ReleaseDate),
		ExternalURL: a.ExternalURLs["spotify"],
	}
	if n := len(a.Images); n > 0 {
		album.ArtworkURL = a.Images[0].URL
		album.ThumbURL = a.Images[n-1].URL
	}
	return album
}
