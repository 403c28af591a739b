package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

// Memberships is the in-memory membership repository.
// Positions are unique per list, as in the database.
type Memberships Store

var _ db.MembershipStore = (*Memberships)(nil)

// Insert adds an album to a list.
func (r *Memberships) Insert(_ context.Context, m *db.Membership) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists[m.ListID]; !ok {
		return db.ErrNotFound
	}
	if _, ok := s.albums[m.AlbumID]; !ok {
		return db.ErrNotFound
	}
	key := memberKey{m.ListID, m.AlbumID}
	if _, ok := s.members[key]; ok {
		return db.ErrConflict
	}
	if m.Position != nil && s.positionTaken(m.ListID, m.AlbumID, *m.Position) {
		return db.ErrConflict
	}
	m.AddedAt = s.now()
	stored := *m
	stored.Position = clonePtr(m.Position)
	s.members[key] = stored
	return nil
}

// Get retrieves a single membership.
func (r *Memberships) Get(_ context.Context, listID, albumID uuid.UUID) (*db.Membership, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{listID, albumID}]
	if !ok {
		return nil, db.ErrNotFound
	}
	m.Position = clonePtr(m.Position)
	return &m, nil
}

// Delete removes an album from a list.
func (r *Memberships) Delete(_ context.Context, listID, albumID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{listID, albumID}
	if _, ok := s.members[key]; !ok {
		return db.ErrNotFound
	}
	delete(s.members, key)
	return nil
}

// MaxPosition returns the largest position of a list, 0 when none.
func (r *Memberships) MaxPosition(_ context.Context, listID uuid.UUID) (int, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for k, m := range s.members {
		if k.listID == listID && m.Position != nil && *m.Position > max {
			max = *m.Position
		}
	}
	return max, nil
}

// Count returns the number of members of a list.
func (r *Memberships) Count(_ context.Context, listID uuid.UUID) (int, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.members {
		if k.listID == listID {
			n++
		}
	}
	return n, nil
}

// SetPosition writes one album's position.
func (r *Memberships) SetPosition(_ context.Context, listID, albumID uuid.UUID, position int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{listID, albumID}
	m, ok := s.members[key]
	if !ok {
		return db.ErrNotFound
	}
	if s.positionTaken(listID, albumID, position) {
		return db.ErrConflict
	}
	m.Position = ptr(position)
	s.members[key] = m
	return nil
}

// AlbumIDs returns the album IDs of a list in reader order.
func (r *Memberships) AlbumIDs(_ context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.membersOf(listID)
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.AlbumID
	}
	return ids, nil
}

// Items returns the members of a list joined with their albums.
func (r *Memberships) Items(_ context.Context, listID uuid.UUID) ([]db.ListItem, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.membersOf(listID)
	items := make([]db.ListItem, len(members))
	for i, m := range members {
		m.Position = clonePtr(m.Position)
		items[i] = db.ListItem{Membership: m, Album: copyAlbum(s.albums[m.AlbumID])}
	}
	return items, nil
}

// ForAlbum returns every list of the user that contains the album.
func (r *Memberships) ForAlbum(_ context.Context, userID string, albumID uuid.UUID) ([]db.Placement, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.Placement
	for k, m := range s.members {
		if k.albumID != albumID {
			continue
		}
		l, ok := s.lists[k.listID]
		if !ok || l.UserID != userID {
			continue
		}
		out = append(out, db.Placement{List: copyList(l), Position: clonePtr(m.Position), AddedAt: m.AddedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].List.CreatedAt.Equal(out[j].List.CreatedAt) {
			return out[i].List.CreatedAt.Before(out[j].List.CreatedAt)
		}
		return out[i].List.ID.String() < out[j].List.ID.String()
	})
	return out, nil
}

// positionTaken reports whether another member of the list holds position.
// Callers hold the lock.
func (s *Store) positionTaken(listID, albumID uuid.UUID, position int) bool {
	for k, m := range s.members {
		if k.listID == listID && k.albumID != albumID && m.Position != nil && *m.Position == position {
			return true
		}
	}
	return false
}
