package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/justestif/albumrank/internal/db"
)

const itunesBaseURL = "https://itunes.apple.com"

// ITunes searches the iTunes Search API.
type ITunes struct {
	client  *client
	baseURL string
	limit   int
}

// NewITunes creates an iTunes searcher. A non-positive limit uses DefaultLimit.
func NewITunes(limit int) *ITunes {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ITunes{
		client:  newClient(DefaultUserAgent),
		baseURL: itunesBaseURL,
		limit:   limit,
	}
}

// Provider implements Searcher.
func (it *ITunes) Provider() db.Provider { return db.ProviderITunes }

// Search implements Searcher.
func (it *ITunes) Search(ctx context.Context, term string) ([]Album, error) {
	term, ok := normalizeTerm(term)
	if !ok {
		return []Album{}, nil
	}

	params := url.Values{
		"term":   {term},
		"entity": {"album"},
		"media":  {"music"},
		"limit":  {strconv.Itoa(it.limit)},
	}

	var resp itunesResponse
	if err := it.client.getJSON(ctx, it.baseURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("searching itunes: %w", err)
	}

	albums := make([]Album, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.CollectionID == 0 {
			continue
		}
		albums = append(albums, r.album())
	}
	return albums, nil
}

// Lookup implements Searcher.
func (it *ITunes) Lookup(ctx context.Context, externalID string) (*Album, error) {
	if _, err := strconv.ParseInt(externalID, 10, 64); err != nil {
		return nil, fmt.Errorf("looking up itunes album %q: %w", externalID, ErrNotFound)
	}

	params := url.Values{
		"id":     {externalID},
		"entity": {"album"},
	}

	var resp itunesResponse
	if err := it.client.getJSON(ctx, it.baseURL+"/lookup?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("looking up itunes album %q: %w", externalID, err)
	}

	for _, r := range resp.Results {
		if r.WrapperType != "" && r.WrapperType != "collection" {
			continue
		}
		if strconv.FormatInt(r.CollectionID, 10) == externalID {
			album := r.album()
			return &album, nil
		}
	}
	return nil, fmt.Errorf("looking up itunes album %q: %w", externalID, ErrNotFound)
}

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

type itunesResult struct {
	WrapperType       string `json:"wrapperType"`
	CollectionID      int64  `json:"collectionId"`
	CollectionName    string `json:"collectionName"`
	ArtistName        string `json:"artistName"`
	ReleaseDate       string `json:"releaseDate"`
	ArtworkURL60      string `json:"artworkUrl60"`
	ArtworkURL100     string `json:"artworkUrl100"`
	CollectionViewURL string `json:"collectionViewUrl"`
}

func (r itunesResult) album() Album {
	return Album{
		Provider:    db.ProviderITunes,
		ExternalID:  strconv.FormatInt(r.CollectionID, 10),
		Title:       r.CollectionName,
		Artist:      r.ArtistName,
		ReleaseYear: parseYear(r.ReleaseDate),
		ExternalURL: r.CollectionViewURL,
		ThumbURL:    r.ArtworkURL60,
		ArtworkURL:  r.ArtworkURL100,
	}
}
