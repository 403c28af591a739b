package artwork

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// MaxImageSize caps fetched and decoded images.
const MaxImageSize = 10 << 20

// Fetcher downloads artwork over HTTP.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

// NewFetcher creates a Fetcher with a 15 second timeout.
func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: userAgent,
	}
}

// Fetch downloads one image.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching artwork: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading artwork: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("fetching artwork: larger than %d bytes", MaxImageSize)
	}

	return newImage(data, resp.Header.Get("Content-Type"))
}

// FetchLargest tries the 1000x1000 rendition of an iTunes URL first and
// falls back to the URL as given.
func (f *Fetcher) FetchLargest(ctx context.Context, url string) (*Image, error) {
	if large := DeriveLarge(url); large != url {
		if img, err := f.Fetch(ctx, large); err == nil {
			return img, nil
		}
	}
	return f.Fetch(ctx, url)
}

// Decode parses base64 image data, with or without a data URL prefix.
// An empty string returns nil without error.
func Decode(encoded string) (*Image, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}

	declared := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrNotImage)
		}
		declared = strings.TrimSuffix(header, ";base64")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrNotImage, MaxImageSize)
	}
	return newImage(data, declared)
}

// newImage sniffs the content type when none is declared and rejects
// anything that is not an image.
func newImage(data []byte, contentType string) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrNotImage)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mediaType)
	}

	return &Image{Data: data, ContentType: mediaType}, nil
}
