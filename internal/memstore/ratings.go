package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/db"
)

// Ratings is the in-memory Elo rating repository.
type Ratings Store

var _ db.RatingStore = (*Ratings)(nil)

// Ensure creates the rating at baseline if it does not exist.
func (r *Ratings) Ensure(_ context.Context, listID, albumID uuid.UUID, baseline float64) (*db.EloRating, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{listID, albumID}
	if rating, ok := s.ratings[key]; ok {
		return &rating, nil
	}
	if _, ok := s.lists[listID]; !ok {
		return nil, db.ErrNotFound
	}
	rating := db.EloRating{ListID: listID, AlbumID: albumID, Rating: baseline, UpdatedAt: s.now()}
	s.ratings[key] = rating
	return &rating, nil
}

// Update writes a rating and its match count.
func (r *Ratings) Update(_ context.Context, rating *db.EloRating) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{rating.ListID, rating.AlbumID}
	if _, ok := s.ratings[key]; !ok {
		return db.ErrNotFound
	}
	rating.UpdatedAt = s.now()
	s.ratings[key] = *rating
	return nil
}

// ForList returns every stored rating of a list, best first.
func (r *Ratings) ForList(_ context.Context, listID uuid.UUID) ([]db.EloRating, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []db.EloRating
	for k, rating := range s.ratings {
		if k.listID == listID {
			out = append(out, rating)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].AlbumID.String() < out[j].AlbumID.String()
	})
	return out, nil
}
