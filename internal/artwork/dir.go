package artwork

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DirStore keeps artwork in a local directory. The web server serves it
// under its base URL.
type DirStore struct {
	root    string
	baseURL string
}

// NewDirStore creates the root directory if needed.
func NewDirStore(root, baseURL string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artwork directory: %w", err)
	}
	return &DirStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Put implements Store. Existing objects are overwritten.
func (s *DirStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	full := filepath.Join(s.root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating artwork directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("writing artwork: %w", err)
	}
	return nil
}

// URL implements Store.
func (s *DirStore) URL(objectPath string) string {
	return s.baseURL + "/" + strings.TrimPrefix(objectPath, "/")
}

// Handler serves the stored files. Mount it with the base URL stripped.
func (s *DirStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}
