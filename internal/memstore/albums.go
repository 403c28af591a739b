package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

// Albums is the in-memory album repository.
type Albums Store

var _ db.AlbumStore = (*Albums)(nil)

// Create inserts a new album.
func (r *Albums) Create(_ context.Context, album *db.Album) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if album.ID == uuid.Nil {
		album.ID = uuid.New()
	}
	if _, ok := s.albums[album.ID]; ok {
		return db.ErrConflict
	}
	if album.ProviderAlbumID != nil {
		for _, a := range s.albums {
			if a.Provider == album.Provider && a.ProviderAlbumID != nil && *a.ProviderAlbumID == *album.ProviderAlbumID {
				return db.ErrConflict
			}
		}
	}
	now := s.now()
	album.CreatedAt = now
	album.UpdatedAt = now
	s.albums[album.ID] = copyAlbum(*album)
	return nil
}

// Get retrieves an album by ID.
func (r *Albums) Get(_ context.Context, id uuid.UUID) (*db.Album, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.albums[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	a = copyAlbum(a)
	return &a, nil
}

// GetByProviderID retrieves an album by its catalog identity.
func (r *Albums) GetByProviderID(_ context.Context, provider db.Provider, providerAlbumID string) (*db.Album, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.albums {
		if a.Provider == provider && a.ProviderAlbumID != nil && *a.ProviderAlbumID == providerAlbumID {
			a = copyAlbum(a)
			return &a, nil
		}
	}
	return nil, db.ErrNotFound
}

// UpdateMetadata refreshes the descriptive fields of an album.
func (r *Albums) UpdateMetadata(_ context.Context, album *db.Album) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.albums[album.ID]
	if !ok {
		return db.ErrNotFound
	}
	a.Title = album.Title
	a.Artist = album.Artist
	a.ReleaseYear = clonePtr(album.ReleaseYear)
	a.ExternalURL = clonePtr(album.ExternalURL)
	a.UpdatedAt = s.now()
	s.albums[a.ID] = a
	album.UpdatedAt = a.UpdatedAt
	return nil
}

// UpdateArtwork records the stored artwork paths of an album.
func (r *Albums) UpdateArtwork(_ context.Context, id uuid.UUID, thumbPath, mediumPath string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.albums[id]
	if !ok {
		return db.ErrNotFound
	}
	a.ArtworkThumbPath = ptr(thumbPath)
	a.ArtworkMediumPath = ptr(mediumPath)
	a.UpdatedAt = s.now()
	s.albums[id] = a
	return nil
}

// MissingArtwork returns catalog-sourced albums without stored artwork, oldest first.
func (r *Albums) MissingArtwork(_ context.Context, limit int) ([]db.Album, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.Album
	for _, a := range s.albums {
		if a.Provider == db.ProviderManual || a.ProviderAlbumID == nil {
			continue
		}
		if a.ArtworkThumbPath == nil || a.ArtworkMediumPath == nil {
			out = append(out, copyAlbum(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyAlbum(a db.Album) db.Album {
	a.ProviderAlbumID = clonePtr(a.ProviderAlbumID)
	a.CreatedByUserID = clonePtr(a.CreatedByUserID)
	a.ReleaseYear = clonePtr(a.ReleaseYear)
	a.ExternalURL = clonePtr(a.ExternalURL)
	a.ArtworkThumbPath = clonePtr(a.ArtworkThumbPath)
	a.ArtworkMediumPath = clonePtr(a.ArtworkMediumPath)
	return a
}
