// Package lists manages the lifecycle of a user's lists: year lists, custom
// lists and the reserved "Needs listening" collection.
package lists

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/metrics"
)

// Year bounds accepted for year lists.
const (
	MinYear = 1000
	MaxYear = 9999
)

// MaxNameLength bounds list names.
const MaxNameLength = 120

// Service handles list creation, renaming and deletion.
type Service struct {
	lists   db.ListStore
	logger  *zap.Logger
	metrics *metrics.Metrics
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

// New creates a new list service.
func New(lists db.ListStore, opts ...Option) *Service {
	s := &Service{
		lists:  lists,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("lists")
	return s
}

// RequireOwner loads a list and checks that userID owns it.
func RequireOwner(ctx context.Context, lists db.ListStore, listID uuid.UUID, userID string) (*db.List, error) {
	list, err := lists.Get(ctx, listID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound.New("list %s", listID)
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading list: %w", err))
	}
	if list.UserID != userID {
		return nil, apperr.Authorization.New("list %s belongs to another user", listID)
	}
	return list, nil
}

// Get returns a list owned by userID.
func (s *Service) Get(ctx context.Context, userID string, listID uuid.UUID) (*db.List, error) {
	return RequireOwner(ctx, s.lists, listID, userID)
}

// ForUser returns all lists of a user in creation order.
func (s *Service) ForUser(ctx context.Context, userID string) ([]db.List, error) {
	lists, err := s.lists.ForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return lists, nil
}

// Ensure makes sure a year list exists for every year and a custom list for
// every name, plus the reserved "Needs listening" collection, then returns
// the user's full list set. Calling it again with the same input creates
// nothing.
func (s *Service) Ensure(ctx context.Context, userID string, years []int, customNames []string) ([]db.List, error) {
	for _, y := range years {
		if y < MinYear || y > MaxYear {
			return nil, apperr.Validation.New("year %d out of range", y)
		}
	}
	names := []string{db.NeedsListeningName}
	for _, n := range customNames {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, apperr.Validation.New("custom list name is empty")
		}
		if len(n) > MaxNameLength {
			return nil, apperr.Validation.New("custom list name longer than %d characters", MaxNameLength)
		}
		names = append(names, n)
	}

	created := 0
	seenYears := make(map[int]bool)
	for _, y := range years {
		if seenYears[y] {
			continue
		}
		seenYears[y] = true
		ok, err := s.ensureYear(ctx, userID, y)
		if err != nil {
			return nil, err
		}
		if ok {
			created++
		}
	}

	seenNames := make(map[string]bool)
	for _, n := range names {
		if seenNames[n] {
			continue
		}
		seenNames[n] = true
		ok, err := s.ensureCustom(ctx, userID, n)
		if err != nil {
			return nil, err
		}
		if ok {
			created++
		}
	}

	s.metrics.ListsCreated(created)
	if created > 0 {
		s.logger.Info("lists ensured",
			zap.String("user_id", userID),
			zap.Int("created", created),
		)
	}
	return s.ForUser(ctx, userID)
}

// EnsureAllTime returns the user's "All Time" ranked list, creating it if needed.
func (s *Service) EnsureAllTime(ctx context.Context, userID string) (*db.List, error) {
	if _, err := s.ensureCustom(ctx, userID, db.AllTimeName); err != nil {
		return nil, err
	}
	list, err := s.lists.FindCustom(ctx, userID, db.AllTimeName)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading all time list: %w", err))
	}
	return list, nil
}

// ensureYear creates the year list if missing and reports whether it did.
func (s *Service) ensureYear(ctx context.Context, userID string, year int) (bool, error) {
	_, err := s.lists.FindYear(ctx, userID, year)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, apperr.Store(fmt.Errorf("finding year list %d: %w", year, err))
	}
	list := &db.List{
		UserID: userID,
		Name:   strconv.Itoa(year),
		Kind:   db.KindYear,
		Year:   &year,
		Mode:   db.ModeRanked,
	}
	return s.insert(ctx, list)
}

// ensureCustom creates the custom list if missing and reports whether it did.
func (s *Service) ensureCustom(ctx context.Context, userID, name string) (bool, error) {
	_, err := s.lists.FindCustom(ctx, userID, name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, apperr.Store(fmt.Errorf("finding list %q: %w", name, err))
	}
	list := &db.List{
		UserID: userID,
		Name:   name,
		Kind:   db.KindCustom,
		Mode:   db.ModeRanked,
	}
	if name == db.NeedsListeningName {
		desc := db.NeedsListeningDescription
		list.Mode = db.ModeCollection
		list.Description = &desc
	}
	return s.insert(ctx, list)
}

// insert creates list, treating a concurrent insert of the same key as success.
func (s *Service) insert(ctx context.Context, list *db.List) (bool, error) {
	err := s.lists.Create(ctx, list)
	if errors.Is(err, db.ErrConflict) {
		s.logger.Debug("list created concurrently",
			zap.String("user_id", list.UserID),
			zap.String("name", list.Name),
		)
		return false, nil
	}
	if err != nil {
		return false, apperr.Store(fmt.Errorf("creating list %q: %w", list.Name, err))
	}
	return true, nil
}

// CreateParams describes an explicitly created list.
type CreateParams struct {
	Name        string
	Mode        db.ListMode
	Description *string
	Kind        db.ListKind // defaults to custom
	Year        *int        // required for year lists
}

// Create creates a user-defined list. Year lists are named by their year.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (*db.List, error) {
	if p.Kind == "" {
		p.Kind = db.KindCustom
	}
	if p.Mode == "" {
		p.Mode = db.ModeRanked
	}
	if p.Mode != db.ModeRanked && p.Mode != db.ModeCollection {
		return nil, apperr.Validation.New("unknown list mode %q", p.Mode)
	}

	list := &db.List{
		UserID:      userID,
		Kind:        p.Kind,
		Mode:        p.Mode,
		Description: p.Description,
	}
	switch p.Kind {
	case db.KindYear:
		if p.Year == nil {
			return nil, apperr.Validation.New("year lists require a year")
		}
		if *p.Year < MinYear || *p.Year > MaxYear {
			return nil, apperr.Validation.New("year %d out of range", *p.Year)
		}
		list.Year = p.Year
		list.Name = strconv.Itoa(*p.Year)
	case db.KindCustom:
		if p.Year != nil {
			return nil, apperr.Validation.New("custom lists cannot carry a year")
		}
		name, err := validName(p.Name)
		if err != nil {
			return nil, err
		}
		if name == db.NeedsListeningName && p.Mode != db.ModeCollection {
			return nil, apperr.Validation.New("%q is reserved for the listening collection", name)
		}
		list.Name = name
	default:
		return nil, apperr.Validation.New("unknown list kind %q", p.Kind)
	}

	err := s.lists.Create(ctx, list)
	if errors.Is(err, db.ErrConflict) {
		return nil, apperr.Validation.New("list %q already exists", list.Name)
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("creating list: %w", err))
	}
	s.logger.Info("list created",
		zap.String("user_id", userID),
		zap.Stringer("list_id", list.ID),
		zap.String("kind", string(list.Kind)),
	)
	return list, nil
}

// Rename changes the name of a custom list.
func (s *Service) Rename(ctx context.Context, userID string, listID uuid.UUID, name string) (*db.List, error) {
	list, err := RequireOwner(ctx, s.lists, listID, userID)
	if err != nil {
		return nil, err
	}
	if list.IsNeedsListening() {
		return nil, apperr.Validation.New("%q cannot be renamed", list.Name)
	}
	if list.Kind == db.KindYear {
		return nil, apperr.Validation.New("year lists are named by their year")
	}
	name, err = validName(name)
	if err != nil {
		return nil, err
	}
	if name == db.NeedsListeningName {
		return nil, apperr.Validation.New("%q is reserved", name)
	}
	if name == list.Name {
		return list, nil
	}

	err = s.lists.Rename(ctx, listID, name)
	if errors.Is(err, db.ErrConflict) {
		return nil, apperr.Validation.New("list %q already exists", name)
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound.New("list %s", listID)
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("renaming list: %w", err))
	}
	list.Name = name
	return list, nil
}

// Delete removes a list with its memberships, ratings and comparisons.
// Albums and other lists are untouched.
func (s *Service) Delete(ctx context.Context, userID string, listID uuid.UUID) error {
	list, err := RequireOwner(ctx, s.lists, listID, userID)
	if err != nil {
		return err
	}
	if list.IsNeedsListening() {
		return apperr.Validation.New("%q cannot be deleted", list.Name)
	}
	err = s.lists.Delete(ctx, listID)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound.New("list %s", listID)
	}
	if err != nil {
		return apperr.Store(fmt.Errorf("deleting list: %w", err))
	}
	s.logger.Info("list deleted",
		zap.String("user_id", userID),
		zap.Stringer("list_id", listID),
	)
	return nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation.New("list name is required")
	}
	if len(name) > MaxNameLength {
		return "", apperr.Validation.New("list name longer than %d characters", MaxNameLength)
	}
	return name, nil
}
