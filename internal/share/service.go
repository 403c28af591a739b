// Package share publishes read-only snapshots of lists under a public slug.
package share

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/ranking"
)

// PublicList is the projection of a shared list visible without identity.
type PublicList struct {
	List  db.List
	Items []db.ListItem
	Owner string // display name, may be empty
}

// Service handles publishing and resolving shared lists.
type Service struct {
	store   *db.Store
	ranking *ranking.Service
	newSlug func() string
	logger  *zap.Logger
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

// WithSlugFunc sets the slug generator.
func WithSlugFunc(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newSlug = f
		}
	}
}

// New creates a share service reading items through rs.
func New(store *db.Store, rs *ranking.Service, opts ...Option) *Service {
	s := &Service{
		store:   store,
		ranking: rs,
		newSlug: uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("share")
	return s
}

// Publish marks a list public and returns its slug. An existing slug is reused.
func (s *Service) Publish(ctx context.Context, userID string, listID uuid.UUID) (string, error) {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return "", err
	}
	if list.IsNeedsListening() {
		return "", apperr.Validation.New("%q cannot be shared", list.Name)
	}

	slug := s.newSlug()
	if list.PublicSlug != nil && *list.PublicSlug != "" {
		slug = *list.PublicSlug
	}
	if err := s.store.Lists.SetSharing(ctx, listID, true, &slug); err != nil {
		return "", apperr.Store(fmt.Errorf("publishing list: %w", err))
	}
	s.logger.Info("list published",
		zap.Stringer("list_id", listID),
		zap.String("slug", slug),
	)
	return slug, nil
}

// Unpublish makes a list private again and forgets its slug.
func (s *Service) Unpublish(ctx context.Context, userID string, listID uuid.UUID) error {
	if _, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID); err != nil {
		return err
	}
	if err := s.store.Lists.SetSharing(ctx, listID, false, nil); err != nil {
		return apperr.Store(fmt.Errorf("unpublishing list: %w", err))
	}
	s.logger.Info("list unpublished", zap.Stringer("list_id", listID))
	return nil
}

// Resolve returns the public projection of the list behind slug. A wrong
// slug, a private list and any lookup miss all yield the same not found error.
func (s *Service) Resolve(ctx context.Context, slug string) (*PublicList, error) {
	notFound := apperr.NotFound.New("shared list")
	if slug == "" {
		return nil, notFound
	}

	list, err := s.store.Lists.GetBySlug(ctx, slug)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("resolving slug: %w", err))
	}
	if !list.IsPublic {
		return nil, notFound
	}

	items, err := s.ranking.Items(ctx, list, ranking.SortRank)
	if err != nil {
		return nil, err
	}

	owner := ""
	user, err := s.store.Users.Get(ctx, list.UserID)
	switch {
	case err == nil:
		owner = user.DisplayName
	case !errors.Is(err, db.ErrNotFound):
		return nil, apperr.Store(fmt.Errorf("loading owner: %w", err))
	}
	return &PublicList{List: *list, Items: items, Owner: owner}, nil
}
