package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/justestif/albumrank/internal/db"
)

// DefaultCacheTTL is how long search and lookup results are reused.
const DefaultCacheTTL = 10 * time.Minute

// Cached wraps a Searcher with an in-memory TTL cache. Errors are not cached.
type Cached struct {
	next  Searcher
	cache *cache.Cache
}

// NewCached wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCached(next Searcher, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Provider implements Searcher.
func (c *Cached) Provider() db.Provider { return c.next.Provider() }

// Search implements Searcher. Terms differing only in case or surrounding
// space share an entry.
func (c *Cached) Search(ctx context.Context, term string) ([]Album, error) {
	term, ok := normalizeTerm(term)
	if !ok {
		return []Album{}, nil
	}

	key := "search:" + strings.ToLower(term)
	if cached, found := c.cache.Get(key); found {
		return cloneAlbums(cached.([]Album)), nil
	}

	albums, err := c.next.Search(ctx, term)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, cloneAlbums(albums))
	return albums, nil
}

// Lookup implements Searcher.
func (c *Cached) Lookup(ctx context.Context, externalID string) (*Album, error) {
	key := "lookup:" + externalID
	if cached, found := c.cache.Get(key); found {
		album := cached.(Album)
		return &album, nil
	}

	album, err := c.next.Lookup(ctx, externalID)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, *album)
	return album, nil
}

func cloneAlbums(albums []Album) []Album {
	out := make([]Album, len(albums))
	copy(out, albums)
	return out
}
