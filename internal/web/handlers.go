package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/albums"
	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/artwork"
	"github.com/justestif/albumrank/internal/catalog"
	"github.com/justestif/albumrank/internal/compare"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/ranking"
	"github.com/justestif/albumrank/internal/share"
)

// Services are the domain services behind the API.
type Services struct {
	Lists    *lists.Service
	Ranking  *ranking.Service
	Compare  *compare.Service
	Share    *share.Service
	Albums   *albums.Service
	Catalogs *catalog.Registry
	Artwork  artwork.Store
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	svc    Services
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{svc: svc, logger: logger}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

// user returns the authenticated caller's id. Middleware guarantees presence.
func user(r *http.Request) string {
	id, _ := IdentityFrom(r.Context())
	if id == nil {
		return ""
	}
	return id.UserID
}

// Lists

// ListLists handles GET /api/lists.
func (h *Handlers) ListLists(w http.ResponseWriter, r *http.Request) {
	ls, err := h.svc.Lists.ForUser(r.Context(), user(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListViews(ls))
}

type ensureRequest struct {
	Years       []int    `json:"years"`
	CustomNames []string `json:"customNames"`
}

// EnsureLists handles POST /api/lists/ensure.
func (h *Handlers) EnsureLists(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	ls, err := h.svc.Lists.Ensure(r.Context(), user(r), req.Years, req.CustomNames)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListViews(ls))
}

type createListRequest struct {
	Name        string      `json:"name"`
	Mode        db.ListMode `json:"mode"`
	Description *string     `json:"description"`
	Kind        db.ListKind `json:"kind"`
	Year        *int        `json:"year"`
}

// CreateList handles POST /api/lists.
func (h *Handlers) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.Lists.Create(r.Context(), user(r), lists.CreateParams{
		Name:        req.Name,
		Mode:        req.Mode,
		Description: req.Description,
		Kind:        req.Kind,
		Year:        req.Year,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newListView(*list))
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameList handles PATCH /api/lists/{listID}.
func (h *Handlers) RenameList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req renameRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.Lists.Rename(r.Context(), user(r), listID, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListView(*list))
}

// DeleteList handles DELETE /api/lists/{listID}.
func (h *Handlers) DeleteList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Lists.Delete(r.Context(), user(r), listID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items

// ListItems handles GET /api/lists/{listID}/items.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sort, err := ranking.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.Ranking.Members(r.Context(), user(r), listID, sort)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemViews(items, h.svc.Artwork))
}

type addItemRequest struct {
	AlbumID uuid.UUID `json:"albumId"`
}

// AddItem handles POST /api/lists/{listID}/items.
func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req addItemRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.AlbumID == uuid.Nil {
		h.fail(w, r, apperr.Validation.New("albumId is required"))
		return
	}
	if _, err := h.svc.Ranking.Add(r.Context(), user(r), listID, req.AlbumID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem handles DELETE /api/lists/{listID}/items/{albumID}.
func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	albumID, err := pathUUID(r, "albumID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Ranking.Remove(r.Context(), user(r), listID, albumID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	OrderedAlbumIDs []uuid.UUID `json:"orderedAlbumIds"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Reorder handles PUT /api/lists/{listID}/order.
func (h *Handlers) Reorder(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req reorderRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.OrderedAlbumIDs == nil {
		h.fail(w, r, apperr.Validation.New("orderedAlbumIds is required"))
		return
	}
	if err := h.svc.Ranking.Reorder(r.Context(), user(r), listID, req.OrderedAlbumIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Comparisons

type comparisonRequest struct {
	LeftAlbumID   uuid.UUID `json:"leftAlbumId"`
	RightAlbumID  uuid.UUID `json:"rightAlbumId"`
	WinnerAlbumID uuid.UUID `json:"winnerAlbumId"`
}

// SubmitComparison handles POST /api/lists/{listID}/comparisons.
func (h *Handlers) SubmitComparison(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req comparisonRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Compare.Submit(r.Context(), user(r), compare.Request{
		ListID:        listID,
		LeftAlbumID:   req.LeftAlbumID,
		RightAlbumID:  req.RightAlbumID,
		WinnerAlbumID: req.WinnerAlbumID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newComparisonResultView(res))
}

// ComparisonHistory handles GET /api/lists/{listID}/comparisons.
func (h *Handlers) ComparisonHistory(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	history, err := h.svc.Compare.History(r.Context(), user(r), listID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newComparisonViews(history))
}

// SuggestPair handles GET /api/lists/{listID}/pair.
func (h *Handlers) SuggestPair(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var subject *uuid.UUID
	if raw := r.URL.Query().Get("subject"); raw != "" {
		id, err := parseUUID(raw, "subject")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		subject = &id
	}
	pair, err := h.svc.Compare.SuggestPair(r.Context(), user(r), listID, subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairView{Subject: pair.Subject, Opponent: pair.Opponent})
}

// Standings handles GET /api/lists/{listID}/standings.
func (h *Handlers) Standings(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	standings, err := h.svc.Compare.Standings(r.Context(), user(r), listID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStandingViews(standings, h.svc.Artwork))
}

// Tiers handles GET /api/lists/{listID}/tiers.
func (h *Handlers) Tiers(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	k, err := queryInt(r, "k", 3)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tiers, err := h.svc.Compare.Tiers(r.Context(), user(r), listID, k)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTierViews(tiers))
}

// Sharing

// Publish handles POST /api/lists/{listID}/share.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slug, err := h.svc.Share.Publish(r.Context(), user(r), listID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareView{PublicSlug: &slug, IsPublic: true})
}

// Unpublish handles DELETE /api/lists/{listID}/share.
func (h *Handlers) Unpublish(w http.ResponseWriter, r *http.Request) {
	listID, err := pathUUID(r, "listID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Share.Unpublish(r.Context(), user(r), listID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareView{})
}

// PublicList handles GET /public/{slug}. No authentication.
func (h *Handlers) PublicList(w http.ResponseWriter, r *http.Request) {
	pub, err := h.svc.Share.Resolve(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublicListView(pub, h.svc.Artwork))
}

// Catalog

// SearchCatalog handles GET /api/catalog/search.
func (h *Handlers) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provider := db.Provider(q.Get("provider"))
	if provider == "" {
		provider = db.ProviderITunes
	}
	if h.svc.Catalogs == nil {
		h.fail(w, r, apperr.Validation.New("no catalogs configured"))
		return
	}
	searcher, err := h.svc.Catalogs.Get(provider)
	if err != nil {
		h.fail(w, r, apperr.Validation.Wrap(err))
		return
	}
	results, err := searcher.Search(r.Context(), q.Get("term"))
	if err != nil {
		h.fail(w, r, apperr.Upstream.Wrap(err))
		return
	}
	if results == nil {
		results = []catalog.Album{}
	}
	writeJSON(w, http.StatusOK, results)
}

// Albums

type placementRequest struct {
	TargetListID *uuid.UUID `json:"targetListId"`
	Include      *bool      `json:"includeInTargetList"`
}

func (p placementRequest) placement() albums.Placement {
	return albums.Placement{TargetListID: p.TargetListID, Include: p.Include}
}

type ingestRequest struct {
	Album catalog.Album `json:"album"`
	placementRequest
}

// IngestAlbum handles POST /api/albums/ingest.
func (h *Handlers) IngestAlbum(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Albums.Ingest(r.Context(), user(r), req.Album, req.placement())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type manualRequest struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ReleaseYear *int   `json:"releaseYear"`
	CoverBase64 string `json:"coverBase64"`
	// MediumBase64 is optional; the cover is reused when absent.
	MediumBase64 string `json:"mediumBase64"`
	placementRequest
}

// CreateManualAlbum handles POST /api/albums/manual.
func (h *Handlers) CreateManualAlbum(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := decodeJSON(w, r, &req, maxUploadSize); err != nil {
		h.fail(w, r, err)
		return
	}
	cover, err := artwork.Decode(req.CoverBase64)
	if err != nil {
		h.fail(w, r, apperr.Validation.Wrap(err))
		return
	}
	medium, err := artwork.Decode(req.MediumBase64)
	if err != nil {
		h.fail(w, r, apperr.Validation.Wrap(err))
		return
	}
	res, err := h.svc.Albums.CreateManual(r.Context(), user(r), albums.ManualAlbum{
		Title:       req.Title,
		Artist:      req.Artist,
		ReleaseYear: req.ReleaseYear,
		Cover:       cover,
		Medium:      medium,
	}, req.placement())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// AlbumDetail handles GET /api/albums/{albumID}.
func (h *Handlers) AlbumDetail(w http.ResponseWriter, r *http.Request) {
	albumID, err := pathUUID(r, "albumID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.svc.Albums.Detail(r.Context(), user(r), albumID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAlbumDetailView(detail, h.svc.Artwork))
}

type annotationRequest struct {
	Status *db.ListeningStatus `json:"status"`
	Notes  *string             `json:"notes"`
}

// UpdateAlbum handles PATCH /api/albums/{albumID}.
func (h *Handlers) UpdateAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := pathUUID(r, "albumID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req annotationRequest
	if err := decodeJSON(w, r, &req, maxBodySize); err != nil {
		h.fail(w, r, err)
		return
	}
	ua, err := h.svc.Albums.UpdateUserAlbum(r.Context(), user(r), albumID, albums.AnnotationUpdate{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserAlbumView(ua))
}

// RefetchArtwork handles POST /api/albums/{albumID}/artwork.
func (h *Handlers) RefetchArtwork(w http.ResponseWriter, r *http.Request) {
	albumID, err := pathUUID(r, "albumID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	album, err := h.svc.Albums.RefetchArtwork(r.Context(), user(r), albumID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAlbumView(*album, h.svc.Artwork))
}

// AlbumMemberships handles GET /api/albums/{albumID}/memberships.
func (h *Handlers) AlbumMemberships(w http.ResponseWriter, r *http.Request) {
	albumID, err := pathUUID(r, "albumID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	placements, err := h.svc.Ranking.MembershipsForAlbum(r.Context(), user(r), albumID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlacementViews(placements))
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation.New("invalid %s", name)
	}
	return n, nil
}
