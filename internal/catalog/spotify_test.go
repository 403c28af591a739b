package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/albumrank/internal/db"
)

func newTestSpotify(t *testing.T, handler http.HandlerFunc) *Spotify {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Spotify{
		api:   spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/")),
		limit: DefaultLimit,
	}
}

const spotifyAlbumJSON = `{
	"id": "4LH4d3cOWNNsVw41Gqt2kv",
	"name": "The Dark Side of the Moon",
	"release_date": "1973-03-01",
	"artists": [{"name": "Pink Floyd"}],
	"external_urls": {"spotify": "https://open.spotify.com/album/4LH4d3cOWNNsVw41Gqt2kv"},
	"images": [{"url": "https://i.scdn.co/640"}, {"url": "https://i.scdn.co/300"}, {"url": "https://i.scdn.co/64"}]
}`

func TestSpotifySearch(t *testing.T) {
	s := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "album" {
			t.Errorf("type = %q, want album", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"albums": {"items": [` + spotifyAlbumJSON + `], "total": 1}}`))
	})

	albums, err := s.Search(context.Background(), "dark side")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(albums) != 1 {
		t.Fatalf("Search() returned %d albums, want 1", len(albums))
	}

	got := albums[0]
	if got.Provider != db.ProviderSpotify || got.ExternalID != "4LH4d3cOWNNsVw41Gqt2kv" {
		t.Errorf("album identity = %s/%s", got.Provider, got.ExternalID)
	}
	if got.Artist != "Pink Floyd" {
		t.Errorf("Artist = %q, want Pink Floyd", got.Artist)
	}
	if got.ReleaseYear == nil || *got.ReleaseYear != 1973 {
		t.Errorf("ReleaseYear = %v, want 1973", got.ReleaseYear)
	}
	if got.ArtworkURL != "https://i.scdn.co/640" || got.ThumbURL != "https://i.scdn.co/64" {
		t.Errorf("artwork = %q/%q", got.ThumbURL, got.ArtworkURL)
	}
	if got.ExternalURL != "https://open.spotify.com/album/4LH4d3cOWNNsVw41Gqt2kv" {
		t.Errorf("ExternalURL = %q", got.ExternalURL)
	}
}

func TestSpotifyLookup(t *testing.T) {
	s := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/albums/4LH4d3cOWNNsVw41Gqt2kv" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"status": 404, "message": "Not found"}}`))
			return
		}
		w.Write([]byte(spotifyAlbumJSON))
	})

	album, err := s.Lookup(context.Background(), "4LH4d3cOWNNsVw41Gqt2kv")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if album.Title != "The Dark Side of the Moon" {
		t.Errorf("Title = %q", album.Title)
	}

	if _, err := s.Lookup(context.Background(), "missing"); err == nil {
		t.Error("Lookup(missing) error = nil, want error")
	}
}

func TestNewSpotifyMissingCredentials(t *testing.T) {
	if _, err := NewSpotify(context.Background(), "", "secret", 0); err != ErrMissingCredentials {
		t.Errorf("NewSpotify() error = %v, want %v", err, ErrMissingCredentials)
	}
}
