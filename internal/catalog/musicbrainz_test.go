package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMusicBrainzSearch(t *testing.T) {
	covers := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("cover probe method = %s, want HEAD", r.Method)
		}
		if strings.Contains(r.URL.Path, "/release-group/with-cover/") {
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer covers.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "albumrank-test/1.0 (test@example.com)" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "ok computer AND primarytype:album" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`{"release-groups":[
			{"id":"with-cover","title":"OK Computer","first-release-date":"1997-05-21",
			 "artist-credit":[{"name":"Radiohead"}]},
			{"id":"no-cover","title":"Split","first-release-date":"",
			 "artist-credit":[{"name":"A"},{"artist":{"name":"B"}}]}
		]}`))
	}))
	defer api.Close()

	mb := NewMusicBrainz("albumrank-test/1.0 (test@example.com)", 5)
	mb.baseURL = api.URL
	mb.coverURL = covers.URL

	albums, err := mb.Search(context.Background(), "ok computer")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(albums) != 2 {
		t.Fatalf("Search() returned %d albums, want 2", len(albums))
	}

	first := albums[0]
	if first.Title != "OK Computer" || first.Artist != "Radiohead" {
		t.Errorf("albums[0] = %+v", first)
	}
	if first.ReleaseYear == nil || *first.ReleaseYear != 1997 {
		t.Errorf("albums[0].ReleaseYear = %v, want 1997", first.ReleaseYear)
	}
	if want := covers.URL + "/release-group/with-cover/front-500"; first.ArtworkURL != want {
		t.Errorf("albums[0].ArtworkURL = %q, want %q", first.ArtworkURL, want)
	}
	if first.ExternalURL != "https://musicbrainz.org/release-group/with-cover" {
		t.Errorf("albums[0].ExternalURL = %q", first.ExternalURL)
	}

	second := albums[1]
	if second.Artist != "A, B" {
		t.Errorf("albums[1].Artist = %q, want %q", second.Artist, "A, B")
	}
	if second.ReleaseYear != nil {
		t.Errorf("albums[1].ReleaseYear = %v, want nil", *second.ReleaseYear)
	}
	if second.ArtworkURL != "" || second.ThumbURL != "" {
		t.Errorf("albums[1] artwork = %q/%q, want none", second.ThumbURL, second.ArtworkURL)
	}
}

func TestMusicBrainzLookup(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/2/release-group/abc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(releaseGroup{ID: "abc", Title: "Kid A", FirstReleaseDate: "2000"})
	}))
	defer api.Close()

	mb := NewMusicBrainz("", 0)
	mb.baseURL = api.URL

	album, err := mb.Lookup(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if album.Title != "Kid A" || album.ArtworkURL != mb.CoverURL("abc", 500) {
		t.Errorf("Lookup() = %+v", album)
	}

	if _, err := mb.Lookup(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing) error = %v, want %v", err, ErrNotFound)
	}
}
