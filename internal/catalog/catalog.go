// Package catalog searches external music catalogs for albums.
//
// Each provider is a Searcher. The Registry picks one by provider name and
// Cached puts a TTL cache in front of any of them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/justestif/albumrank/internal/db"
)

// DefaultLimit is the number of results a search returns.
const DefaultLimit = 10

// Sentinel errors.
var (
	// ErrNotFound is returned by Lookup when the provider has no such album.
	ErrNotFound = errors.New("album not found in catalog")

	// ErrUnknownProvider is returned when no searcher is registered for a provider.
	ErrUnknownProvider = errors.New("unknown catalog provider")

	// ErrRateLimited is returned when the provider keeps rejecting requests after retries.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Album is a search candidate as reported by a provider.
type Album struct {
	Provider    db.Provider `json:"provider"`
	ExternalID  string      `json:"externalId"`
	Title       string      `json:"title"`
	Artist      string      `json:"artist"`
	ReleaseYear *int        `json:"releaseYear,omitempty"`
	ExternalURL string      `json:"externalUrl,omitempty"`
	ThumbURL    string      `json:"thumbUrl,omitempty"`
	ArtworkURL  string      `json:"artworkUrl,omitempty"`
}

// Searcher is one external catalog.
type Searcher interface {
	Provider() db.Provider
	// Search returns candidates for a free-text term. An empty term returns
	// an empty result without contacting the provider.
	Search(ctx context.Context, term string) ([]Album, error)
	// Lookup fetches one album by the provider's id.
	Lookup(ctx context.Context, externalID string) (*Album, error)
}

// Registry maps providers to searchers.
type Registry struct {
	searchers map[db.Provider]Searcher
}

// NewRegistry registers the given searchers. A later searcher for the same
// provider replaces an earlier one.
func NewRegistry(searchers ...Searcher) *Registry {
	r := &Registry{searchers: make(map[db.Provider]Searcher, len(searchers))}
	for _, s := range searchers {
		if s != nil {
			r.searchers[s.Provider()] = s
		}
	}
	return r
}

// Get returns the searcher for provider.
func (r *Registry) Get(provider db.Provider) (Searcher, error) {
	s, ok := r.searchers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return s, nil
}

// Providers lists the registered providers in name order.
func (r *Registry) Providers() []db.Provider {
	providers := make([]db.Provider, 0, len(r.searchers))
	for p := range r.searchers {
		providers = append(providers, p)
	}
	slices.Sort(providers)
	return providers
}

// parseYear reads the leading year of dates like "1997", "1997-05-21" or
// "1997-05-21T07:00:00Z".
func parseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}

// normalizeTerm trims a search term; the boolean is false when nothing is left.
func normalizeTerm(term string) (string, bool) {
	term = strings.TrimSpace(term)
	return term, term != ""
}
