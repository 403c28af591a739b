// Package compare records pairwise album judgments, updates Elo ratings and
// nudges list order so a winner never sits below the album it beat.
package compare

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/elo"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/metrics"
	"github.com/justestif/albumrank/internal/ranking"
)

// Defaults for opponent selection and history.
const (
	DefaultNearest      = 3
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// Steps of a submission, used to label failures.
const (
	StepValidate      = "validate"
	StepEnsureRatings = "ensure ratings"
	StepJudge         = "judge"
	StepPersist       = "persist"
	StepReorder       = "reorder"
)

// Request is one judgment: winner beat the other album of the pair.
type Request struct {
	ListID        uuid.UUID
	LeftAlbumID   uuid.UUID
	RightAlbumID  uuid.UUID
	WinnerAlbumID uuid.UUID
}

// Outcome is an album's rating after a comparison.
type Outcome struct {
	AlbumID uuid.UUID
	Rating  float64
	Matches int
}

// Result is the outcome of a submission.
type Result struct {
	Left  Outcome
	Right Outcome
	Moved bool // the winner was moved ahead of the loser
}

// Service orchestrates comparisons.
type Service struct {
	store     *db.Store
	allocator *ranking.Allocator
	engine    elo.Engine
	nearest   int
	intn      func(n int) int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithEngine sets the rating engine.
func WithEngine(e elo.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithNearest sets how many nearby albums opponent selection picks from.
func WithNearest(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.nearest = k
		}
	}
}

// WithRandom sets the source of random choices. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(s *Service) {
		if intn != nil {
			s.intn = intn
		}
	}
}

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

// New creates a comparison service writing positions through allocator.
func New(store *db.Store, allocator *ranking.Allocator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		allocator: allocator,
		engine:    elo.DefaultEngine(),
		nearest:   DefaultNearest,
		intn:      rand.Intn,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("compare")
	return s
}

func failed(step string, err error) error {
	return fmt.Errorf("compare: %s: %w", step, err)
}

// Submit validates and records a judgment, updates both ratings and moves
// the winner directly ahead of the loser when it was ranked below it.
// Rejected requests write nothing.
func (s *Service) Submit(ctx context.Context, userID string, req Request) (*Result, error) {
	list, err := s.validate(ctx, userID, req)
	if err != nil {
		s.metrics.Comparison("rejected")
		return nil, failed(StepValidate, err)
	}

	res, err := s.submit(ctx, list, req)
	if err != nil {
		s.metrics.Comparison("failed")
		s.logger.Warn("comparison failed",
			zap.Stringer("list_id", req.ListID),
			zap.Error(err),
		)
		return nil, err
	}
	if res.Moved {
		s.metrics.Comparison("moved")
	} else {
		s.metrics.Comparison("kept")
	}
	return res, nil
}

func (s *Service) validate(ctx context.Context, userID string, req Request) (*db.List, error) {
	if req.ListID == uuid.Nil || req.LeftAlbumID == uuid.Nil || req.RightAlbumID == uuid.Nil || req.WinnerAlbumID == uuid.Nil {
		return nil, apperr.Validation.New("list, left, right and winner ids are required")
	}
	if req.LeftAlbumID == req.RightAlbumID {
		return nil, apperr.Validation.New("an album cannot be compared with itself")
	}
	if req.WinnerAlbumID != req.LeftAlbumID && req.WinnerAlbumID != req.RightAlbumID {
		return nil, apperr.Validation.New("winner must be one of the compared albums")
	}

	list, err := lists.RequireOwner(ctx, s.store.Lists, req.ListID, userID)
	if err != nil {
		return nil, err
	}
	if !list.Ranked() {
		return nil, apperr.Validation.New("list %q is a collection; comparisons need a ranked list", list.Name)
	}
	n, err := s.store.Memberships.Count(ctx, list.ID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("counting members: %w", err))
	}
	if n < 2 {
		return nil, apperr.Validation.New("list %q needs at least two albums to compare", list.Name)
	}
	for _, id := range []uuid.UUID{req.LeftAlbumID, req.RightAlbumID} {
		_, err := s.store.Memberships.Get(ctx, list.ID, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.Validation.New("album %s is not in list %q", id, list.Name)
		}
		if err != nil {
			return nil, apperr.Store(fmt.Errorf("loading membership: %w", err))
		}
	}
	return list, nil
}

func (s *Service) submit(ctx context.Context, list *db.List, req Request) (*Result, error) {
	left, err := s.store.Ratings.Ensure(ctx, list.ID, req.LeftAlbumID, s.engine.Baseline)
	if err != nil {
		return nil, failed(StepEnsureRatings, apperr.Store(err))
	}
	right, err := s.store.Ratings.Ensure(ctx, list.ID, req.RightAlbumID, s.engine.Baseline)
	if err != nil {
		return nil, failed(StepEnsureRatings, apperr.Store(err))
	}

	winner, loser := left, right
	if req.WinnerAlbumID == req.RightAlbumID {
		winner, loser = right, left
	}
	w, l, err := s.engine.Judge(
		elo.Rating{Value: winner.Rating, Matches: winner.Matches},
		elo.Rating{Value: loser.Rating, Matches: loser.Matches},
	)
	if err != nil {
		return nil, failed(StepJudge, apperr.Persistence.Wrap(err))
	}
	winner.Rating, winner.Matches = w.Value, w.Matches
	loser.Rating, loser.Matches = l.Value, l.Matches

	audit := &db.Comparison{
		ListID:        list.ID,
		LeftAlbumID:   req.LeftAlbumID,
		RightAlbumID:  req.RightAlbumID,
		WinnerAlbumID: req.WinnerAlbumID,
	}
	if err := s.store.Comparisons.Create(ctx, audit); err != nil {
		return nil, failed(StepPersist, apperr.Store(fmt.Errorf("recording comparison: %w", err)))
	}
	if err := s.store.Ratings.Update(ctx, left); err != nil {
		return nil, failed(StepPersist, apperr.Store(fmt.Errorf("updating rating of %s: %w", left.AlbumID, err)))
	}
	if err := s.store.Ratings.Update(ctx, right); err != nil {
		return nil, failed(StepPersist, apperr.Store(fmt.Errorf("updating rating of %s: %w", right.AlbumID, err)))
	}

	res := &Result{
		Left:  Outcome{AlbumID: left.AlbumID, Rating: left.Rating, Matches: left.Matches},
		Right: Outcome{AlbumID: right.AlbumID, Rating: right.Rating, Matches: right.Matches},
	}

	order, err := s.allocator.Current(ctx, list.ID)
	if err != nil {
		return nil, failed(StepReorder, err)
	}
	if order.MoveBefore(winner.AlbumID, loser.AlbumID) {
		if err := s.allocator.Write(ctx, list.ID, order); err != nil {
			return nil, failed(StepReorder, err)
		}
		res.Moved = true
	}

	s.logger.Debug("comparison recorded",
		zap.Stringer("list_id", list.ID),
		zap.Stringer("winner", winner.AlbumID),
		zap.Stringer("loser", loser.AlbumID),
		zap.Bool("moved", res.Moved),
	)
	return res, nil
}

// Pair is a suggested comparison.
type Pair struct {
	Subject  uuid.UUID
	Opponent uuid.UUID
}

// SuggestPair picks the next comparison for a list. When subject is nil the
// member with the fewest matches is used. The opponent is drawn uniformly
// from the albums nearest to the subject by position.
func (s *Service) SuggestPair(ctx context.Context, userID string, listID uuid.UUID, subject *uuid.UUID) (*Pair, error) {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return nil, err
	}
	if !list.Ranked() {
		return nil, apperr.Validation.New("list %q is a collection; comparisons need a ranked list", list.Name)
	}
	order, err := s.allocator.Current(ctx, listID)
	if err != nil {
		return nil, err
	}
	if order.Len() < 2 {
		return nil, apperr.Validation.New("list %q needs at least two albums to compare", list.Name)
	}

	var subj uuid.UUID
	if subject != nil {
		if !order.Contains(*subject) {
			return nil, apperr.Validation.New("album %s is not in list %q", *subject, list.Name)
		}
		subj = *subject
	} else {
		subj, err = s.leastCompared(ctx, listID, order)
		if err != nil {
			return nil, err
		}
	}

	return &Pair{Subject: subj, Opponent: s.nearby(order, subj)}, nil
}

// leastCompared returns the member with the fewest matches, ties broken at random.
func (s *Service) leastCompared(ctx context.Context, listID uuid.UUID, order *ranking.Order) (uuid.UUID, error) {
	ratings, err := s.store.Ratings.ForList(ctx, listID)
	if err != nil {
		return uuid.Nil, apperr.Store(fmt.Errorf("loading ratings: %w", err))
	}
	matches := make(map[uuid.UUID]int, len(ratings))
	for _, r := range ratings {
		matches[r.AlbumID] = r.Matches
	}

	var fewest []uuid.UUID
	least := -1
	for _, id := range order.IDs() {
		m := matches[id]
		switch {
		case least < 0 || m < least:
			least, fewest = m, []uuid.UUID{id}
		case m == least:
			fewest = append(fewest, id)
		}
	}
	return fewest[s.intn(len(fewest))], nil
}

// nearby picks uniformly among the albums closest to subject by position.
func (s *Service) nearby(order *ranking.Order, subject uuid.UUID) uuid.UUID {
	pos := order.Position(subject)
	var others []uuid.UUID
	for _, id := range order.IDs() {
		if id != subject {
			others = append(others, id)
		}
	}
	dist := func(id uuid.UUID) int {
		d := order.Position(id) - pos
		if d < 0 {
			return -d
		}
		return d
	}
	slices.SortStableFunc(others, func(a, b uuid.UUID) int {
		return cmp.Compare(dist(a), dist(b))
	})
	k := min(s.nearest, len(others))
	return others[s.intn(k)]
}

// History returns the most recent comparisons of a list, newest first.
func (s *Service) History(ctx context.Context, userID string, listID uuid.UUID, limit int) ([]db.Comparison, error) {
	if _, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	comparisons, err := s.store.Comparisons.ForList(ctx, listID, limit)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading comparisons: %w", err))
	}
	return comparisons, nil
}

// Standing is a member of a ranked list with its rating.
type Standing struct {
	Item    db.ListItem
	Rating  float64
	Matches int
}

// Standings returns every member of a ranked list with its rating, best
// rating first. Members never compared carry the baseline rating.
func (s *Service) Standings(ctx context.Context, userID string, listID uuid.UUID) ([]Standing, error) {
	list, err := lists.RequireOwner(ctx, s.store.Lists, listID, userID)
	if err != nil {
		return nil, err
	}
	if !list.Ranked() {
		return nil, apperr.Validation.New("list %q is a collection and has no ratings", list.Name)
	}
	items, err := s.store.Memberships.Items(ctx, listID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading items: %w", err))
	}
	ratings, err := s.store.Ratings.ForList(ctx, listID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading ratings: %w", err))
	}
	byAlbum := make(map[uuid.UUID]db.EloRating, len(ratings))
	for _, r := range ratings {
		byAlbum[r.AlbumID] = r
	}

	standings := make([]Standing, len(items))
	for i, it := range items {
		st := Standing{Item: it, Rating: s.engine.Baseline}
		if r, ok := byAlbum[it.AlbumID]; ok {
			st.Rating, st.Matches = r.Rating, r.Matches
		}
		standings[i] = st
	}
	// Stable sort keeps list order among equal ratings.
	slices.SortStableFunc(standings, func(a, b Standing) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	return standings, nil
}

// Tiers groups the members of a ranked list into at most k rating tiers.
func (s *Service) Tiers(ctx context.Context, userID string, listID uuid.UUID, k int) ([]elo.Tier, error) {
	if k <= 0 {
		return nil, apperr.Validation.New("tier count must be positive")
	}
	standings, err := s.Standings(ctx, userID, listID)
	if err != nil {
		return nil, err
	}
	rated := make([]elo.Rated, len(standings))
	for i, st := range standings {
		rated[i] = elo.Rated{AlbumID: st.Item.AlbumID, Rating: elo.Rating{Value: st.Rating, Matches: st.Matches}}
	}
	tiers, err := elo.Tiers(rated, k)
	if err != nil {
		return nil, apperr.Persistence.Wrap(err)
	}
	return tiers, nil
}
