package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

// UserAlbums is the in-memory user album repository.
type UserAlbums Store

var _ db.UserAlbumStore = (*UserAlbums)(nil)

// Ensure creates the annotation with status not_listened if it does not exist.
func (r *UserAlbums) Ensure(_ context.Context, userID string, albumID uuid.UUID) (*db.UserAlbum, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userAlbumKey{userID, albumID}
	if ua, ok := s.userAlbums[key]; ok {
		return &ua, nil
	}
	if _, ok := s.albums[albumID]; !ok {
		return nil, db.ErrNotFound
	}
	now := s.now()
	ua := db.UserAlbum{
		UserID:    userID,
		AlbumID:   albumID,
		Status:    db.StatusNotListened,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.userAlbums[key] = ua
	return &ua, nil
}

// Get retrieves one user's annotation of an album.
func (r *UserAlbums) Get(_ context.Context, userID string, albumID uuid.UUID) (*db.UserAlbum, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	ua, ok := s.userAlbums[userAlbumKey{userID, albumID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &ua, nil
}

// Upsert creates or updates an annotation.
func (r *UserAlbums) Upsert(_ context.Context, ua *db.UserAlbum) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.albums[ua.AlbumID]; !ok {
		return db.ErrNotFound
	}
	key := userAlbumKey{ua.UserID, ua.AlbumID}
	now := s.now()
	stored, ok := s.userAlbums[key]
	if !ok {
		stored = db.UserAlbum{UserID: ua.UserID, AlbumID: ua.AlbumID, CreatedAt: now}
	}
	stored.Status = ua.Status
	stored.Notes = ua.Notes
	stored.UpdatedAt = now
	s.userAlbums[key] = stored
	*ua = stored
	return nil
}

// NeedsListening returns unfinished albums, in-progress first, then newest first.
func (r *UserAlbums) NeedsListening(_ context.Context, userID string) ([]db.UserAlbumEntry, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.UserAlbumEntry
	for k, ua := range s.userAlbums {
		if k.userID != userID || ua.Status == db.StatusListened {
			continue
		}
		out = append(out, db.UserAlbumEntry{UserAlbum: ua, Album: copyAlbum(s.albums[k.albumID])})
	}
	rank := func(st db.ListeningStatus) int {
		if st == db.StatusListening {
			return 0
		}
		return 1
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if rank(a.Status) != rank(b.Status) {
			return rank(a.Status) < rank(b.Status)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.AlbumID.String() < b.AlbumID.String()
	})
	return out, nil
}
