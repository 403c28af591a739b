package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

// Comparisons is the in-memory comparison log.
type Comparisons Store

var _ db.ComparisonStore = (*Comparisons)(nil)

// Create appends a comparison.
func (r *Comparisons) Create(_ context.Context, c *db.Comparison) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists[c.ListID]; !ok {
		return db.ErrNotFound
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = s.now()
	s.comparisons = append(s.comparisons, *c)
	return nil
}

// ForList returns the most recent comparisons of a list, newest first.
func (r *Comparisons) ForList(_ context.Context, listID uuid.UUID, limit int) ([]db.Comparison, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.Comparison
	for i := len(s.comparisons) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if c := s.comparisons[i]; c.ListID == listID {
			out = append(out, c)
		}
	}
	return out, nil
}
