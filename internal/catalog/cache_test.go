package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justestif/albumrank/internal/db"
)

// fakeSearcher counts upstream calls.
type fakeSearcher struct {
	provider db.Provider
	searches atomic.Int32
	lookups  atomic.Int32
	err      error
}

func (f *fakeSearcher) Provider() db.Provider { return f.provider }

func (f *fakeSearcher) Search(ctx context.Context, term string) ([]Album, error) {
	f.searches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []Album{{Provider: f.provider, ExternalID: "1", Title: term}}, nil
}

func (f *fakeSearcher) Lookup(ctx context.Context, externalID string) (*Album, error) {
	f.lookups.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Album{Provider: f.provider, ExternalID: externalID}, nil
}

func TestCachedSearch(t *testing.T) {
	upstream := &fakeSearcher{provider: db.ProviderITunes}
	c := NewCached(upstream, time.Minute)
	ctx := context.Background()

	first, err := c.Search(ctx, "Blue")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	first[0].Title = "mutated"

	second, err := c.Search(ctx, "  blue ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if upstream.searches.Load() != 1 {
		t.Errorf("upstream searches = %d, want 1", upstream.searches.Load())
	}
	if second[0].Title != "Blue" {
		t.Errorf("cached Title = %q, want Blue", second[0].Title)
	}

	if _, err := c.Search(ctx, ""); err != nil {
		t.Fatalf("Search(empty) error = %v", err)
	}
	if upstream.searches.Load() != 1 {
		t.Errorf("empty term reached upstream")
	}
}

func TestCachedLookup(t *testing.T) {
	upstream := &fakeSearcher{provider: db.ProviderSpotify}
	c := NewCached(upstream, time.Minute)

	for i := 0; i < 3; i++ {
		album, err := c.Lookup(context.Background(), "abc")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if album.ExternalID != "abc" {
			t.Errorf("ExternalID = %q, want abc", album.ExternalID)
		}
	}
	if upstream.lookups.Load() != 1 {
		t.Errorf("upstream lookups = %d, want 1", upstream.lookups.Load())
	}
	if c.Provider() != db.ProviderSpotify {
		t.Errorf("Provider() = %s, want spotify", c.Provider())
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	upstream := &fakeSearcher{provider: db.ProviderITunes, err: boom}
	c := NewCached(upstream, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.Search(context.Background(), "x"); !errors.Is(err, boom) {
			t.Errorf("Search() error = %v, want %v", err, boom)
		}
	}
	if upstream.searches.Load() != 2 {
		t.Errorf("upstream searches = %d, want 2", upstream.searches.Load())
	}
}

func TestRegistry(t *testing.T) {
	it := &fakeSearcher{provider: db.ProviderITunes}
	mb := &fakeSearcher{provider: db.ProviderMusicBrainz}
	r := NewRegistry(mb, it, nil)

	got, err := r.Get(db.ProviderITunes)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != Searcher(it) {
		t.Errorf("Get(itunes) returned the wrong searcher")
	}

	if _, err := r.Get(db.ProviderSpotify); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get(spotify) error = %v, want %v", err, ErrUnknownProvider)
	}

	providers := r.Providers()
	if len(providers) != 2 || providers[0] != db.ProviderITunes || providers[1] != db.ProviderMusicBrainz {
		t.Errorf("Providers() = %v", providers)
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int // 0 means nil
	}{
		{"1997", 1997},
		{"1997-05-21", 1997},
		{"2015-03-15T07:00:00Z", 2015},
		{"", 0},
		{"97", 0},
		{"abcd", 0},
	}

	for _, tt := range tests {
		got := parseYear(tt.in)
		switch {
		case tt.want == 0 && got != nil:
			t.Errorf("parseYear(%q) = %d, want nil", tt.in, *got)
		case tt.want != 0 && (got == nil || *got != tt.want):
			t.Errorf("parseYear(%q) = %v, want %d", tt.in, got, tt.want)
		}
	}
}
