package memstore

import (
	"context"

	"github.com/justestif/albumrank/internal/db"
)

// Users is the in-memory user repository.
type Users Store

var _ db.UserStore = (*Users)(nil)

// Get retrieves a user by ID.
func (r *Users) Get(_ context.Context, id string) (*db.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

// Upsert creates or updates a user. An empty display name keeps the stored one.
func (r *Users) Upsert(_ context.Context, user *db.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.users[user.ID]
	if !ok {
		existing = db.User{ID: user.ID, CreatedAt: now}
	}
	if user.DisplayName != "" {
		existing.DisplayName = user.DisplayName
	}
	existing.UpdatedAt = now
	s.users[user.ID] = existing
	*user = existing
	return nil
}
