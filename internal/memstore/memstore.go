// Package memstore keeps every repository in process memory.
//
// It mirrors the PostgreSQL repositories closely, including unique
// constraints and cascading deletes, and backs both the memory store mode
// and the service tests.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

type userAlbumKey struct {
	userID  string
	albumID uuid.UUID
}

type memberKey struct {
	listID  uuid.UUID
	albumID uuid.UUID
}

// Store holds all tables behind one lock.
type Store struct {
	mu   sync.RWMutex
	last time.Time

	users       map[string]db.User
	albums      map[uuid.UUID]db.Album
	userAlbums  map[userAlbumKey]db.UserAlbum
	lists       map[uuid.UUID]db.List
	members     map[memberKey]db.Membership
	ratings     map[memberKey]db.EloRating
	comparisons []db.Comparison
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:      make(map[string]db.User),
		albums:     make(map[uuid.UUID]db.Album),
		userAlbums: make(map[userAlbumKey]db.UserAlbum),
		lists:      make(map[uuid.UUID]db.List),
		members:    make(map[memberKey]db.Membership),
		ratings:    make(map[memberKey]db.EloRating),
	}
}

// Repositories returns the store's repositories.
func (s *Store) Repositories() *db.Store {
	return &db.Store{
		Users:       (*Users)(s),
		Albums:      (*Albums)(s),
		UserAlbums:  (*UserAlbums)(s),
		Lists:       (*Lists)(s),
		Memberships: (*Memberships)(s),
		Ratings:     (*Ratings)(s),
		Comparisons: (*Comparisons)(s),
	}
}

// now returns a strictly increasing timestamp so orderings by time are
// deterministic. Callers hold the write lock.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// itemLess is the reader ordering of memberships: position with nulls
// last, then added time, then album ID.
func itemLess(a, b db.Membership) bool {
	switch {
	case a.Position != nil && b.Position != nil && *a.Position != *b.Position:
		return *a.Position < *b.Position
	case a.Position != nil && b.Position == nil:
		return true
	case a.Position == nil && b.Position != nil:
		return false
	}
	if !a.AddedAt.Equal(b.AddedAt) {
		return a.AddedAt.Before(b.AddedAt)
	}
	return a.AlbumID.String() < b.AlbumID.String()
}

// membersOf returns the memberships of a list in reader order.
// Callers hold the lock.
func (s *Store) membersOf(listID uuid.UUID) []db.Membership {
	var out []db.Membership
	for k, m := range s.members {
		if k.listID == listID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return itemLess(out[i], out[j]) })
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
