// Package albums brings albums into the catalog and keeps per-user
// annotations and artwork up to date.
package albums

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/artwork"
	"github.com/justestif/albumrank/internal/catalog"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/elo"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/metrics"
	"github.com/justestif/albumrank/internal/ranking"
)

// Limits on manual album fields.
const (
	MaxTitleLength  = 300
	MaxArtistLength = 300
	MaxNotesLength  = 5000
)

// DefaultBackfillConcurrency bounds BackfillArtwork when no limit is given.
const DefaultBackfillConcurrency = 4

// Fetcher downloads artwork by URL.
type Fetcher interface {
	FetchLargest(ctx context.Context, url string) (*artwork.Image, error)
}

// Service ingests albums and manages annotations.
type Service struct {
	store    *db.Store
	ranking  *ranking.Service
	lists    *lists.Service
	art      artwork.Store
	fetcher  Fetcher
	catalogs *catalog.Registry
	baseline float64
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithCatalogs sets the catalogs used to look up artwork on refetch.
func WithCatalogs(r *catalog.Registry) Option {
	return func(s *Service) {
		s.catalogs = r
	}
}

// WithFetcher replaces the HTTP artwork fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithBaseline sets the rating newly ranked albums start from.
func WithBaseline(baseline float64) Option {
	return func(s *Service) {
		s.baseline = baseline
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

// New creates an album service.
func New(store *db.Store, rs *ranking.Service, ls *lists.Service, art artwork.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ranking:  rs,
		lists:    ls,
		art:      art,
		fetcher:  artwork.NewFetcher(catalog.DefaultUserAgent),
		catalogs: catalog.NewRegistry(),
		baseline: elo.DefaultBaseline,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("albums")
	return s
}

// Placement options shared by ingest and manual creation.
type Placement struct {
	// TargetListID is the list the album is added to, if any.
	TargetListID *uuid.UUID
	// Include controls whether the target list is used. Nil means true.
	Include *bool
}

func (p Placement) target() *uuid.UUID {
	if p.Include != nil && !*p.Include {
		return nil
	}
	return p.TargetListID
}

// Result describes what an ingest or manual creation wrote.
type Result struct {
	AlbumID         uuid.UUID `json:"albumId"`
	CreatedAlbum    bool      `json:"createdAlbum"`
	CreatedListItem bool      `json:"createdListItem"`
}

// Ingest records a catalog search result for userID. An existing album with
// the same provider identity is refreshed instead of duplicated, artwork is
// fetched when missing, and the album is added to the target list and to
// "All Time". The "All Time" step never fails the ingest.
//
// Rows written before a failing step stay in place.
func (s *Service) Ingest(ctx context.Context, userID string, candidate catalog.Album, placement Placement) (res *Result, err error) {
	defer func() { s.metrics.Ingest(string(candidate.Provider), err) }()

	if err := validateCandidate(candidate); err != nil {
		return nil, err
	}
	target, err := s.targetList(ctx, userID, placement)
	if err != nil {
		return nil, err
	}

	album, created, err := s.upsertCatalogAlbum(ctx, candidate)
	if err != nil {
		return nil, err
	}
	res = &Result{AlbumID: album.ID, CreatedAlbum: created}

	if !album.HasArtwork() && candidate.ArtworkURL != "" {
		if _, err := s.storeRemoteArtwork(ctx, album, candidate.ArtworkURL); err != nil {
			return nil, err
		}
	}

	if err := s.finish(ctx, userID, album.ID, target, res); err != nil {
		return nil, err
	}

	s.logger.Info("album ingested",
		zap.String("user_id", userID),
		zap.Stringer("album_id", album.ID),
		zap.String("provider", string(candidate.Provider)),
		zap.Bool("created", created),
	)
	return res, nil
}

// ManualAlbum is an album typed in by a user together with its cover.
type ManualAlbum struct {
	Title       string
	Artist      string
	ReleaseYear *int
	Cover       *artwork.Image
	// Medium is the larger rendition. Defaults to Cover.
	Medium *artwork.Image
}

// CreateManual adds an album that no catalog knows about. A cover image is
// required.
func (s *Service) CreateManual(ctx context.Context, userID string, m ManualAlbum, placement Placement) (res *Result, err error) {
	defer func() { s.metrics.Ingest(string(db.ProviderManual), err) }()

	title := strings.TrimSpace(m.Title)
	artist := strings.TrimSpace(m.Artist)
	switch {
	case title == "" || artist == "":
		return nil, apperr.Validation.New("title and artist are required")
	case len(title) > MaxTitleLength || len(artist) > MaxArtistLength:
		return nil, apperr.Validation.New("title or artist too long")
	case m.Cover == nil:
		return nil, apperr.Validation.New("invalid or missing image data")
	case m.ReleaseYear != nil && (*m.ReleaseYear < lists.MinYear || *m.ReleaseYear > lists.MaxYear):
		return nil, apperr.Validation.New("release year %d out of range", *m.ReleaseYear)
	}

	target, err := s.targetList(ctx, userID, placement)
	if err != nil {
		return nil, err
	}

	album := &db.Album{
		Provider:        db.ProviderManual,
		CreatedByUserID: &userID,
		Title:           title,
		Artist:          artist,
		ReleaseYear:     m.ReleaseYear,
	}
	if err := s.store.Albums.Create(ctx, album); err != nil {
		return nil, apperr.Store(fmt.Errorf("creating album: %w", err))
	}
	res = &Result{AlbumID: album.ID, CreatedAlbum: true}

	paths, err := artwork.SaveBoth(ctx, s.art, string(db.ProviderManual), album.ID.String(), m.Cover, m.Medium)
	if err != nil {
		return nil, apperr.Upstream.Wrap(err)
	}
	if err := s.store.Albums.UpdateArtwork(ctx, album.ID, paths.Thumb, paths.Medium); err != nil {
		return nil, apperr.Store(fmt.Errorf("recording artwork: %w", err))
	}

	if err := s.finish(ctx, userID, album.ID, target, res); err != nil {
		return nil, err
	}

	s.logger.Info("manual album created",
		zap.String("user_id", userID),
		zap.Stringer("album_id", album.ID),
	)
	return res, nil
}

// RefetchArtwork replaces the stored artwork of a catalog album with the
// provider's current cover. The user must have the album.
func (s *Service) RefetchArtwork(ctx context.Context, userID string, albumID uuid.UUID) (*db.Album, error) {
	_, err := s.store.UserAlbums.Get(ctx, userID, albumID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Authorization.New("album %s is not in your library", albumID)
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading user album: %w", err))
	}

	album, err := s.getAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if album.Provider == db.ProviderManual || album.ProviderAlbumID == nil {
		return nil, apperr.Validation.New("artwork refetch is only supported for catalog albums")
	}
	return s.refetch(ctx, album)
}

// BackfillReport summarizes a BackfillArtwork run.
type BackfillReport struct {
	Attempted int
	Updated   int
	Failed    int
}

// BackfillArtwork refetches artwork for up to limit catalog albums that have
// none, running at most concurrency lookups at once. Individual failures are
// logged and counted, not returned.
func (s *Service) BackfillArtwork(ctx context.Context, limit, concurrency int) (*BackfillReport, error) {
	if concurrency <= 0 {
		concurrency = DefaultBackfillConcurrency
	}

	missing, err := s.store.Albums.MissingArtwork(ctx, limit)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("listing albums without artwork: %w", err))
	}

	var updated, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range missing {
		album := &missing[i]
		g.Go(func() error {
			if _, err := s.refetch(gctx, album); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				s.logger.Warn("artwork backfill failed",
					zap.Stringer("album_id", album.ID),
					zap.String("provider", string(album.Provider)),
					zap.Error(err),
				)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}

	report := &BackfillReport{Attempted: len(missing)}
	err = g.Wait()
	report.Updated = int(updated.Load())
	report.Failed = int(failed.Load())
	if err != nil {
		return report, err
	}

	s.logger.Info("artwork backfill finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Detail is an album as seen by one user.
type Detail struct {
	Album      db.Album
	UserAlbum  *db.UserAlbum // nil when the user never added the album
	Placements []db.Placement
}

// Detail returns an album with the user's annotation and list placements.
func (s *Service) Detail(ctx context.Context, userID string, albumID uuid.UUID) (*Detail, error) {
	album, err := s.getAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Album: *album}
	ua, err := s.store.UserAlbums.Get(ctx, userID, albumID)
	switch {
	case err == nil:
		d.UserAlbum = ua
	case !errors.Is(err, db.ErrNotFound):
		return nil, apperr.Store(fmt.Errorf("loading user album: %w", err))
	}

	d.Placements, err = s.ranking.MembershipsForAlbum(ctx, userID, albumID)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// AnnotationUpdate changes a user's annotation. Nil fields are left alone.
type AnnotationUpdate struct {
	Status *db.ListeningStatus
	Notes  *string
}

// UpdateUserAlbum applies an annotation change, creating the annotation if
// the user did not have the album yet. Status changes move the album in or
// out of "Needs listening" immediately.
func (s *Service) UpdateUserAlbum(ctx context.Context, userID string, albumID uuid.UUID, u AnnotationUpdate) (*db.UserAlbum, error) {
	if u.Status != nil && !u.Status.Valid() {
		return nil, apperr.Validation.New("unknown listening status %q", *u.Status)
	}
	if u.Notes != nil && len(*u.Notes) > MaxNotesLength {
		return nil, apperr.Validation.New("notes longer than %d bytes", MaxNotesLength)
	}
	if _, err := s.getAlbum(ctx, albumID); err != nil {
		return nil, err
	}

	ua, err := s.store.UserAlbums.Ensure(ctx, userID, albumID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("ensuring user album: %w", err))
	}
	if u.Status != nil {
		ua.Status = *u.Status
	}
	if u.Notes != nil {
		ua.Notes = *u.Notes
	}
	if err := s.store.UserAlbums.Upsert(ctx, ua); err != nil {
		return nil, apperr.Store(fmt.Errorf("updating user album: %w", err))
	}
	return ua, nil
}

func validateCandidate(c catalog.Album) error {
	switch c.Provider {
	case db.ProviderITunes, db.ProviderSpotify, db.ProviderMusicBrainz:
	default:
		return apperr.Validation.New("unsupported provider %q", c.Provider)
	}
	if strings.TrimSpace(c.ExternalID) == "" || strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Artist) == "" {
		return apperr.Validation.New("missing required catalog fields")
	}
	return nil
}

// targetList resolves and authorizes the requested list before anything is written.
func (s *Service) targetList(ctx context.Context, userID string, p Placement) (*db.List, error) {
	id := p.target()
	if id == nil {
		return nil, nil
	}
	list, err := lists.RequireOwner(ctx, s.store.Lists, *id, userID)
	if err != nil {
		return nil, err
	}
	if list.IsNeedsListening() {
		return nil, apperr.Validation.New("%q follows listening status and cannot be a target", list.Name)
	}
	return list, nil
}

// upsertCatalogAlbum finds the album by provider identity, refreshing its
// metadata, or creates it.
func (s *Service) upsertCatalogAlbum(ctx context.Context, c catalog.Album) (*db.Album, bool, error) {
	existing, err := s.store.Albums.GetByProviderID(ctx, c.Provider, c.ExternalID)
	if err == nil {
		return s.refresh(ctx, existing, c)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, apperr.Store(fmt.Errorf("finding album: %w", err))
	}

	externalID := c.ExternalID
	album := &db.Album{
		Provider:        c.Provider,
		ProviderAlbumID: &externalID,
		Title:           c.Title,
		Artist:          c.Artist,
		ReleaseYear:     c.ReleaseYear,
		ExternalURL:     optional(c.ExternalURL),
	}
	err = s.store.Albums.Create(ctx, album)
	if errors.Is(err, db.ErrConflict) {
		// Ingested concurrently by someone else.
		existing, getErr := s.store.Albums.GetByProviderID(ctx, c.Provider, c.ExternalID)
		if getErr != nil {
			return nil, false, apperr.Store(fmt.Errorf("finding album after conflict: %w", getErr))
		}
		return s.refresh(ctx, existing, c)
	}
	if err != nil {
		return nil, false, apperr.Store(fmt.Errorf("creating album: %w", err))
	}
	return album, true, nil
}

func (s *Service) refresh(ctx context.Context, album *db.Album, c catalog.Album) (*db.Album, bool, error) {
	album.Title = c.Title
	album.Artist = c.Artist
	album.ReleaseYear = c.ReleaseYear
	album.ExternalURL = optional(c.ExternalURL)
	if err := s.store.Albums.UpdateMetadata(ctx, album); err != nil {
		return nil, false, apperr.Store(fmt.Errorf("updating album metadata: %w", err))
	}
	return album, false, nil
}

// refetch looks the album up in its catalog and stores the current cover.
func (s *Service) refetch(ctx context.Context, album *db.Album) (*db.Album, error) {
	searcher, err := s.catalogs.Get(album.Provider)
	if err != nil {
		return nil, apperr.Upstream.Wrap(err)
	}
	found, err := searcher.Lookup(ctx, *album.ProviderAlbumID)
	if err != nil {
		return nil, apperr.Upstream.Wrap(fmt.Errorf("looking up artwork: %w", err))
	}
	if found.ArtworkURL == "" {
		return nil, apperr.Validation.New("no artwork available for album %s", album.ID)
	}
	return s.storeRemoteArtwork(ctx, album, found.ArtworkURL)
}

// storeRemoteArtwork downloads a cover, uploads both sizes and records the paths.
func (s *Service) storeRemoteArtwork(ctx context.Context, album *db.Album, url string) (*db.Album, error) {
	img, err := s.fetcher.FetchLargest(ctx, url)
	if err != nil {
		return nil, apperr.Upstream.Wrap(fmt.Errorf("fetching artwork: %w", err))
	}

	paths, err := artwork.SaveBoth(ctx, s.art, string(album.Provider), *album.ProviderAlbumID, img, nil)
	if err != nil {
		return nil, apperr.Upstream.Wrap(err)
	}
	if err := s.store.Albums.UpdateArtwork(ctx, album.ID, paths.Thumb, paths.Medium); err != nil {
		return nil, apperr.Store(fmt.Errorf("recording artwork: %w", err))
	}

	album.ArtworkThumbPath = &paths.Thumb
	album.ArtworkMediumPath = &paths.Medium
	return album, nil
}

// finish records the annotation, the target list membership and the
// best-effort "All Time" membership.
func (s *Service) finish(ctx context.Context, userID string, albumID uuid.UUID, target *db.List, res *Result) error {
	if _, err := s.store.UserAlbums.Ensure(ctx, userID, albumID); err != nil {
		return apperr.Store(fmt.Errorf("ensuring user album: %w", err))
	}

	if target != nil {
		added, err := s.addTo(ctx, target, albumID)
		if err != nil {
			return fmt.Errorf("adding to list %q: %w", target.Name, err)
		}
		res.CreatedListItem = added
	}

	added, err := s.addToAllTime(ctx, userID, albumID)
	if err != nil {
		s.logger.Warn("adding to all time list failed",
			zap.String("user_id", userID),
			zap.Stringer("album_id", albumID),
			zap.Error(err),
		)
		return nil
	}
	res.CreatedListItem = res.CreatedListItem || added
	return nil
}

func (s *Service) addToAllTime(ctx context.Context, userID string, albumID uuid.UUID) (bool, error) {
	allTime, err := s.lists.EnsureAllTime(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.addTo(ctx, allTime, albumID)
}

// addTo adds the album to list unless it is already there, seeding its
// rating on ranked lists. It reports whether a membership was created.
func (s *Service) addTo(ctx context.Context, list *db.List, albumID uuid.UUID) (bool, error) {
	_, err := s.store.Memberships.Get(ctx, list.ID, albumID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, apperr.Store(fmt.Errorf("loading membership: %w", err))
	}

	if _, err := s.ranking.AddToList(ctx, list, albumID); err != nil {
		return false, err
	}
	if list.Ranked() {
		if _, err := s.store.Ratings.Ensure(ctx, list.ID, albumID, s.baseline); err != nil {
			return true, apperr.Store(fmt.Errorf("seeding rating: %w", err))
		}
	}
	return true, nil
}

func (s *Service) getAlbum(ctx context.Context, id uuid.UUID) (*db.Album, error) {
	album, err := s.store.Albums.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound.New("album %s", id)
	}
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading album: %w", err))
	}
	return album, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
