// Package artwork fetches album cover images and stores them in a blob store.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Sentinel errors.
var (
	// ErrInvalidPath is returned for object paths that escape the store root.
	ErrInvalidPath = errors.New("invalid artwork path")

	// ErrNotImage is returned when fetched or uploaded bytes are not an image.
	ErrNotImage = errors.New("content is not an image")
)

// Store persists artwork objects under slash-separated paths.
type Store interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	// URL returns the address a client can load objectPath from.
	URL(objectPath string) string
}

// Image is a fetched or uploaded cover.
type Image struct {
	Data        []byte
	ContentType string
}

// Paths are the stored locations of an album's two artwork sizes.
type Paths struct {
	Thumb  string
	Medium string
}

// PathsFor returns the thumb and medium paths under prefix/id, with the file
// extension derived from contentType.
func PathsFor(prefix, id, contentType string) Paths {
	ext := Extension(contentType)
	dir := prefix + "/" + id
	return Paths{
		Thumb:  dir + "/thumb." + ext,
		Medium: dir + "/medium." + ext,
	}
}

// Extension maps an image content type to a file extension. Unknown types
// fall back to jpg.
func Extension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "image/png"):
		return "png"
	case strings.Contains(ct, "image/webp"):
		return "webp"
	default:
		return "jpg"
	}
}

var itunesSize = regexp.MustCompile(`/[0-9]+x[0-9]+bb\.`)

// DeriveLarge rewrites an iTunes artwork URL to request the 1000x1000
// rendition. Other URLs are returned unchanged.
func DeriveLarge(url string) string {
	return itunesSize.ReplaceAllString(url, "/1000x1000bb.")
}

// SaveBoth uploads the thumb and medium images and returns their paths.
// The medium image defaults to the thumb when nil.
func SaveBoth(ctx context.Context, store Store, prefix, id string, thumb, medium *Image) (Paths, error) {
	if thumb == nil {
		return Paths{}, ErrNotImage
	}
	if medium == nil {
		medium = thumb
	}

	paths := PathsFor(prefix, id, thumb.ContentType)
	paths.Medium = PathsFor(prefix, id, medium.ContentType).Medium

	if err := store.Put(ctx, paths.Thumb, thumb.Data, thumb.ContentType); err != nil {
		return Paths{}, fmt.Errorf("uploading %s: %w", paths.Thumb, err)
	}
	if err := store.Put(ctx, paths.Medium, medium.Data, medium.ContentType); err != nil {
		return Paths{}, fmt.Errorf("uploading %s: %w", paths.Medium, err)
	}
	return paths, nil
}

// cleanPath validates an object path and returns it in canonical form.
func cleanPath(objectPath string) (string, error) {
	p := path.Clean(strings.TrimPrefix(objectPath, "/"))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return p, nil
}
