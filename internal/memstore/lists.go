package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

// Lists is the in-memory list repository.
type Lists Store

var _ db.ListStore = (*Lists)(nil)

// Create inserts a new list, enforcing one year list per year and one
// custom list per name for each user.
func (r *Lists) Create(_ context.Context, list *db.List) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if list.ID == uuid.Nil {
		list.ID = uuid.New()
	}
	if _, ok := s.lists[list.ID]; ok {
		return db.ErrConflict
	}
	for _, l := range s.lists {
		if clashes(l, *list) {
			return db.ErrConflict
		}
	}
	now := s.now()
	list.CreatedAt = now
	list.UpdatedAt = now
	s.lists[list.ID] = copyList(*list)
	return nil
}

// Get retrieves a list by ID.
func (r *Lists) Get(_ context.Context, id uuid.UUID) (*db.List, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	l = copyList(l)
	return &l, nil
}

// FindYear retrieves the user's year list for year.
func (r *Lists) FindYear(_ context.Context, userID string, year int) (*db.List, error) {
	return r.find(func(l db.List) bool {
		return l.UserID == userID && l.Kind == db.KindYear && l.Year != nil && *l.Year == year
	})
}

// FindCustom retrieves the user's custom list named name.
func (r *Lists) FindCustom(_ context.Context, userID, name string) (*db.List, error) {
	return r.find(func(l db.List) bool {
		return l.UserID == userID && l.Kind == db.KindCustom && l.Name == name
	})
}

// GetBySlug retrieves a list by its public slug.
func (r *Lists) GetBySlug(_ context.Context, slug string) (*db.List, error) {
	return r.find(func(l db.List) bool {
		return l.PublicSlug != nil && *l.PublicSlug == slug
	})
}

// ForUser returns all lists of a user in creation order.
func (r *Lists) ForUser(_ context.Context, userID string) ([]db.List, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.List
	for _, l := range s.lists {
		if l.UserID == userID {
			out = append(out, copyList(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Rename changes a list's name.
func (r *Lists) Rename(_ context.Context, id uuid.UUID, name string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[id]
	if !ok {
		return db.ErrNotFound
	}
	l.Name = name
	for otherID, other := range s.lists {
		if otherID != id && clashes(other, l) {
			return db.ErrConflict
		}
	}
	l.UpdatedAt = s.now()
	s.lists[id] = l
	return nil
}

// SetSharing updates the public flag and slug together.
func (r *Lists) SetSharing(_ context.Context, id uuid.UUID, public bool, slug *string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[id]
	if !ok {
		return db.ErrNotFound
	}
	if slug != nil {
		for otherID, other := range s.lists {
			if otherID != id && other.PublicSlug != nil && *other.PublicSlug == *slug {
				return db.ErrConflict
			}
		}
	}
	l.IsPublic = public
	l.PublicSlug = clonePtr(slug)
	l.UpdatedAt = s.now()
	s.lists[id] = l
	return nil
}

// Delete removes a list together with its memberships, ratings and comparisons.
func (r *Lists) Delete(_ context.Context, id uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.lists, id)
	for k := range s.members {
		if k.listID == id {
			delete(s.members, k)
		}
	}
	for k := range s.ratings {
		if k.listID == id {
			delete(s.ratings, k)
		}
	}
	kept := s.comparisons[:0]
	for _, c := range s.comparisons {
		if c.ListID != id {
			kept = append(kept, c)
		}
	}
	s.comparisons = kept
	return nil
}

func (r *Lists) find(match func(db.List) bool) (*db.List, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lists {
		if match(l) {
			l = copyList(l)
			return &l, nil
		}
	}
	return nil, db.ErrNotFound
}

// clashes reports whether two lists violate the per-user uniqueness rules.
func clashes(a, b db.List) bool {
	if a.UserID != b.UserID || a.Kind != b.Kind {
		return false
	}
	if a.Kind == db.KindYear {
		return a.Year != nil && b.Year != nil && *a.Year == *b.Year
	}
	return a.Name == b.Name
}

func copyList(l db.List) db.List {
	l.Year = clonePtr(l.Year)
	l.Description = clonePtr(l.Description)
	l.PublicSlug = clonePtr(l.PublicSlug)
	return l
}
