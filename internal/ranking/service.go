package ranking

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/metrics"
)

// Sort selects the ordering of Members.
type Sort string

const (
	// SortRank orders ranked lists by position and collections by added time.
	SortRank Sort = "rank"
	// SortAdded orders by added time, newest first.
	SortAdded Sort = "added"
)

// ParseSort parses a sort name, defaulting to SortRank.
func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "", SortRank:
		return SortRank, nil
	case SortAdded:
		return SortAdded, nil
	}
	return "", apperr.Validation.New("unknown sort %q", s)
}

// Service manages list membership and positions.
type Service struct {
	store     *db.Store
	allocator *Allocator
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a new membership service.
func New(store *db.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("ranking")
	s.allocator = NewAllocator(store.Memberships, s.logger, s.metrics)
	return s
}

// Allocator returns the position allocator used by the service.
func (s *Service) Allocator() *Allocator {
	return s.allocator
}

// Add puts an album into a list. Adding an album that is already a member
// returns the existing membership. Ranked lists append at the end.
func (s *Service) Add(ctx context.Context, userID string, listID, albumID uuid.UUID) (*db.Membership, error) {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return nil, err
	}
	return s.AddToList(ctx, list, albumID)
}

// AddToList is Add for a list whose ownership was already checked.
func (s *Service) AddToList(ctx context.Context, list *db.List, albumID uuid.UUID) (*db.Membership, error) {
	if list.IsNeedsListening() {
		return nil, apperr.Validation.New("%q follows listening status; update the album status instead", list.Name)
	}
	if _, err := s.store.Albums.Get(ctx, albumID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound.New("album %s", albumID)
		}
		return nil, apperr.Store(fmt.Errorf("loading album: %w", err))
	}

	existing, err := s.store.Memberships.Get(ctx, list.ID, albumID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Store(fmt.Errorf("loading membership: %w", err))
	}

	m := &db.Membership{ListID: list.ID, AlbumID: albumID}
	if list.Ranked() {
		pos, err := s.allocator.Next(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		m.Position = &pos
	}

	err = s.store.Memberships.Insert(ctx, m)
	if errors.Is(err, db.ErrConflict) {
		// Either the album was added concurrently or the position was taken.
		if existing, getErr := s.store.Memberships.Get(ctx, list.ID, albumID); getErr == nil {
			return existing, nil
		}
		return nil, apperr.Persistence.New("position %d in list %s already taken", derefOr(m.Position, 0), list.ID)
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("inserting membership: %w", err))
	}

	s.logger.Debug("album added",
		zap.Stringer("list_id", list.ID),
		zap.Stringer("album_id", albumID),
		zap.Intp("position", m.Position),
	)
	return m, nil
}

// Remove takes an album out of a list. Ranked lists are renumbered to 1..N.
func (s *Service) Remove(ctx context.Context, userID string, listID, albumID uuid.UUID) error {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return err
	}
	if list.IsNeedsListening() {
		return apperr.Validation.New("%q follows listening status; update the album status instead", list.Name)
	}

	err = s.store.Memberships.Delete(ctx, listID, albumID)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound.New("album %s is not in list %s", albumID, listID)
	}
	if err != nil {
		return apperr.Store(fmt.Errorf("deleting membership: %w", err))
	}

	if !list.Ranked() {
		return nil
	}
	if err := s.allocator.Compact(ctx, listID); err != nil {
		return fmt.Errorf("compacting after remove: %w", err)
	}
	return nil
}

// Members returns the items of a list in display order. The reserved
// "Needs listening" list is computed from listening status.
func (s *Service) Members(ctx context.Context, userID string, listID uuid.UUID, sort Sort) ([]db.ListItem, error) {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return nil, err
	}
	return s.Items(ctx, list, sort)
}

// Items is Members for a list whose access was already checked.
func (s *Service) Items(ctx context.Context, list *db.List, sort Sort) ([]db.ListItem, error) {
	if list.IsNeedsListening() {
		return s.derived(ctx, list)
	}

	items, err := s.store.Memberships.Items(ctx, list.ID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading items: %w", err))
	}
	switch {
	case sort == SortAdded:
		slices.SortStableFunc(items, func(a, b db.ListItem) int {
			return b.AddedAt.Compare(a.AddedAt)
		})
	case !list.Ranked():
		slices.SortStableFunc(items, func(a, b db.ListItem) int {
			return a.AddedAt.Compare(b.AddedAt)
		})
	}
	return items, nil
}

// derived computes the reserved collection from the owner's unfinished albums.
func (s *Service) derived(ctx context.Context, list *db.List) ([]db.ListItem, error) {
	entries, err := s.store.UserAlbums.NeedsListening(ctx, list.UserID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading needs listening: %w", err))
	}
	items := make([]db.ListItem, len(entries))
	for i, e := range entries {
		items[i] = db.ListItem{
			Membership: db.Membership{ListID: list.ID, AlbumID: e.AlbumID, AddedAt: e.CreatedAt},
			Album:      e.Album,
		}
	}
	return items, nil
}

// Reorder sets the order of a ranked list. orderedIDs must contain exactly
// the current members.
func (s *Service) Reorder(ctx context.Context, userID string, listID uuid.UUID, orderedIDs []uuid.UUID) error {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return err
	}
	if !list.Ranked() {
		return apperr.Validation.New("list %q is a collection and has no order", list.Name)
	}
	return s.allocator.Reorder(ctx, listID, orderedIDs)
}

// MembershipsForAlbum returns every list of the user containing the album,
// including the reserved collection when the album is unfinished.
func (s *Service) MembershipsForAlbum(ctx context.Context, userID string, albumID uuid.UUID) ([]db.Placement, error) {
	placements, err := s.store.Memberships.ForAlbum(ctx, userID, albumID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading placements: %w", err))
	}

	ua, err := s.store.UserAlbums.Get(ctx, userID, albumID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && ua.Status == db.StatusListened) {
		return placements, nil
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading user album: %w", err))
	}
	needs, err := s.store.Lists.FindCustom(ctx, userID, db.NeedsListeningName)
	if errors.Is(err, db.ErrNotFound) {
		return placements, nil
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading needs listening list: %w", err))
	}
	return append(placements, db.Placement{List: *needs, AddedAt: ua.CreatedAt}), nil
}

func derefOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
