package compare

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/memstore"
	"github.com/justestif/albumrank/internal/ranking"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

type fixture struct {
	store   *db.Store
	ranking *ranking.Service
	svc     *Service
	list    *db.List
	albums  []uuid.UUID // in list order
}

// newFixture builds a ranked list holding n albums at positions 1..n.
func newFixture(t *testing.T, n int, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New().Repositories()
	return buildFixture(t, ctx, store, n, opts...)
}

func buildFixture(t *testing.T, ctx context.Context, store *db.Store, n int, opts ...Option) *fixture {
	t.Helper()
	rs := ranking.New(store)
	list, err := lists.New(store.Lists).Create(ctx, alice, lists.CreateParams{Name: "Best"})
	if err != nil {
		t.Fatalf("creating list: %v", err)
	}
	f := &fixture{store: store, ranking: rs, list: list, svc: New(store, rs.Allocator(), opts...)}
	for i := 0; i < n; i++ {
		a := &db.Album{Provider: db.ProviderManual, Title: string(rune('A' + i)), Artist: "Artist"}
		if err := store.Albums.Create(ctx, a); err != nil {
			t.Fatalf("creating album: %v", err)
		}
		if _, err := rs.Add(ctx, alice, list.ID, a.ID); err != nil {
			t.Fatalf("adding album: %v", err)
		}
		f.albums = append(f.albums, a.ID)
	}
	return f
}

func (f *fixture) order(t *testing.T) []uuid.UUID {
	t.Helper()
	items, err := f.ranking.Members(context.Background(), alice, f.list.ID, ranking.SortRank)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	var out []uuid.UUID
	for i, it := range items {
		if it.Position == nil || *it.Position != i+1 {
			t.Errorf("item %d position = %v, want %d", i, it.Position, i+1)
		}
		out = append(out, it.AlbumID)
	}
	return out
}

func (f *fixture) assertNoWrites(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if cs, _ := f.store.Comparisons.ForList(ctx, f.list.ID, 0); len(cs) != 0 {
		t.Errorf("rejected submission wrote %d comparisons", len(cs))
	}
	if rs, _ := f.store.Ratings.ForList(ctx, f.list.ID); len(rs) != 0 {
		t.Errorf("rejected submission wrote %d ratings", len(rs))
	}
}

func TestSubmitMovesWinnerAheadOfLoser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	a, b, c, d := f.albums[0], f.albums[1], f.albums[2], f.albums[3]

	res, err := f.svc.Submit(ctx, alice, Request{ListID: f.list.ID, LeftAlbumID: b, RightAlbumID: d, WinnerAlbumID: d})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Moved {
		t.Error("Submit() Moved = false, want true")
	}
	want := Result{
		Left:  Outcome{AlbumID: b, Rating: 1484, Matches: 1},
		Right: Outcome{AlbumID: d, Rating: 1516, Matches: 1},
		Moved: true,
	}
	if diff := cmp.Diff(want, *res); diff != "" {
		t.Errorf("Submit() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uuid.UUID{a, d, b, c}, f.order(t)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	history, err := f.svc.History(ctx, alice, f.list.ID, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].WinnerAlbumID != d {
		t.Errorf("History() = %+v, want one comparison won by d", history)
	}
}

func TestSubmitKeepsOrderWhenWinnerAhead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	a, b, c := f.albums[0], f.albums[1], f.albums[2]

	res, err := f.svc.Submit(ctx, alice, Request{ListID: f.list.ID, LeftAlbumID: c, RightAlbumID: a, WinnerAlbumID: a})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Moved {
		t.Error("Submit() Moved = true, want false")
	}
	if res.Right.Rating <= res.Left.Rating {
		t.Errorf("winner rating %v not above loser rating %v", res.Right.Rating, res.Left.Rating)
	}
	if diff := cmp.Diff([]uuid.UUID{a, b, c}, f.order(t)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitAccumulatesMatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	a, b := f.albums[0], f.albums[1]

	var last *Result
	for i := 0; i < 5; i++ {
		res, err := f.svc.Submit(ctx, alice, Request{ListID: f.list.ID, LeftAlbumID: a, RightAlbumID: b, WinnerAlbumID: a})
		if err != nil {
			t.Fatalf("Submit() #%d error = %v", i, err)
		}
		if last != nil && res.Left.Rating-last.Left.Rating >= 16 {
			t.Errorf("repeated win gained %v, want less than the first-match gain", res.Left.Rating-last.Left.Rating)
		}
		last = res
	}
	if last.Left.Matches != 5 || last.Right.Matches != 5 {
		t.Errorf("matches = (%d, %d), want (5, 5)", last.Left.Matches, last.Right.Matches)
	}
}

func TestSubmitRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		members int
		user    string
		req     func(f *fixture) Request
		class   func(error) bool
	}{
		{
			name:    "winner outside pair",
			members: 3,
			user:    alice,
			req: func(f *fixture) Request {
				return Request{ListID: f.list.ID, LeftAlbumID: f.albums[0], RightAlbumID: f.albums[1], WinnerAlbumID: f.albums[2]}
			},
			class: apperr.Validation.Has,
		},
		{
			name:    "missing field",
			members: 2,
			user:    alice,
			req: func(f *fixture) Request {
				return Request{ListID: f.list.ID, LeftAlbumID: f.albums[0], WinnerAlbumID: f.albums[0]}
			},
			class: apperr.Validation.Has,
		},
		{
			name:    "same album twice",
			members: 2,
			user:    alice,
			req: func(f *fixture) Request {
				return Request{ListID: f.list.ID, LeftAlbumID: f.albums[0], RightAlbumID: f.albums[0], WinnerAlbumID: f.albums[0]}
			},
			class: apperr.Validation.Has,
		},
		{
			name:    "fewer than two members",
			members: 1,
			user:    alice,
			req: func(f *fixture) Request {
				return Request{ListID: f.list.ID, LeftAlbumID: f.albums[0], RightAlbumID: uuid.New(), WinnerAlbumID: f.albums[0]}
			},
			class: apperr.Validation.Has,
		},
		{
			name:    "album not in list",
			members: 2,
			user:    alice,
			req: func(f *fixture) Request {
				return Request{ListID: f.list.ID, LeftAlbumID: f.albums[0], RightAlbumID: uuid.New(), WinnerAlbumID: f.albums[0]}
			},
			class: apperr.Validation.Has,
		},
		{
			name:    "list of another user",
			members: 2,
			user:    bob,
			req: func(f *fixture) Request {
				return Request{ListID: f.list.ID, LeftAlbumID: f.albums[0], RightAlbumID: f.albums[1], WinnerAlbumID: f.albums[0]}
			},
			class: apperr.Authorization.Has,
		},
		{
			name:    "unknown list",
			members: 2,
			user:    alice,
			req: func(f *fixture) Request {
				return Request{ListID: uuid.New(), LeftAlbumID: f.albums[0], RightAlbumID: f.albums[1], WinnerAlbumID: f.albums[0]}
			},
			class: apperr.NotFound.Has,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.members)
			_, err := f.svc.Submit(ctx, tt.user, tt.req(f))
			if !tt.class(err) {
				t.Errorf("Submit() error = %v, wrong class", err)
			}
			if err != nil && !strings.Contains(err.Error(), StepValidate) {
				t.Errorf("Submit() error = %q, want step %q named", err, StepValidate)
			}
			f.assertNoWrites(t)
		})
	}
}

func TestSubmitRejectsCollection(t *testing.T) {
	ctx := context.Background()
	store := memstore.New().Repositories()
	rs := ranking.New(store)
	list, err := lists.New(store.Lists).Create(ctx, alice, lists.CreateParams{Name: "Shelf", Mode: db.ModeCollection})
	if err != nil {
		t.Fatalf("creating list: %v", err)
	}
	var ids []uuid.UUID
	for _, title := range []string{"A", "B"} {
		a := &db.Album{Provider: db.ProviderManual, Title: title, Artist: "Artist"}
		if err := store.Albums.Create(ctx, a); err != nil {
			t.Fatalf("creating album: %v", err)
		}
		if _, err := rs.Add(ctx, alice, list.ID, a.ID); err != nil {
			t.Fatalf("adding album: %v", err)
		}
		ids = append(ids, a.ID)
	}

	svc := New(store, rs.Allocator())
	_, err = svc.Submit(ctx, alice, Request{ListID: list.ID, LeftAlbumID: ids[0], RightAlbumID: ids[1], WinnerAlbumID: ids[1]})
	if !apperr.Validation.Has(err) {
		t.Errorf("Submit(collection) error = %v, want validation error", err)
	}
}

// failingRatings fails the n-th Update call.
type failingRatings struct {
	db.RatingStore
	calls  int
	failAt int
}

var errRatingWrite = errors.New("rating write failed")

func (r *failingRatings) Update(ctx context.Context, rating *db.EloRating) error {
	r.calls++
	if r.calls == r.failAt {
		return errRatingWrite
	}
	return r.RatingStore.Update(ctx, rating)
}

func TestSubmitPersistFailureKeepsAuditRow(t *testing.T) {
	ctx := context.Background()
	store := memstore.New().Repositories()
	store.Ratings = &failingRatings{RatingStore: store.Ratings, failAt: 2}
	f := buildFixture(t, ctx, store, 2)
	a, b := f.albums[0], f.albums[1]

	_, err := f.svc.Submit(ctx, alice, Request{ListID: f.list.ID, LeftAlbumID: a, RightAlbumID: b, WinnerAlbumID: b})
	if !apperr.Persistence.Has(err) {
		t.Fatalf("Submit() error = %v, want persistence error", err)
	}
	if !strings.Contains(err.Error(), StepPersist) || !errors.Is(err, errRatingWrite) {
		t.Errorf("Submit() error = %q, want persist step wrapping the store error", err)
	}

	history, _ := store.Comparisons.ForList(ctx, f.list.ID, 0)
	if len(history) != 1 {
		t.Errorf("audit rows = %d, want 1", len(history))
	}
	// No reorder after a failed persist.
	if diff := cmp.Diff([]uuid.UUID{a, b}, f.order(t)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSuggestPair(t *testing.T) {
	ctx := context.Background()
	// Always pick the first candidate.
	first := func(int) int { return 0 }
	f := newFixture(t, 6, WithRandom(first), WithNearest(2))

	subject := f.albums[3]
	pair, err := f.svc.SuggestPair(ctx, alice, f.list.ID, &subject)
	if err != nil {
		t.Fatalf("SuggestPair() error = %v", err)
	}
	// Nearest two of position 4 are positions 3 and 5; stable order puts 3 first.
	if pair.Subject != subject || pair.Opponent != f.albums[2] {
		t.Errorf("SuggestPair() = %+v, want subject %s vs %s", pair, subject, f.albums[2])
	}

	last := func(n int) int { return n - 1 }
	f.svc.intn = last
	pair, err = f.svc.SuggestPair(ctx, alice, f.list.ID, &subject)
	if err != nil {
		t.Fatalf("SuggestPair() error = %v", err)
	}
	if pair.Opponent != f.albums[4] {
		t.Errorf("SuggestPair() opponent = %s, want %s", pair.Opponent, f.albums[4])
	}

	stranger := uuid.New()
	if _, err := f.svc.SuggestPair(ctx, alice, f.list.ID, &stranger); !apperr.Validation.Has(err) {
		t.Errorf("SuggestPair(stranger) error = %v, want validation error", err)
	}
}

func TestSuggestPairPrefersLeastCompared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, WithRandom(func(int) int { return 0 }))
	a, b, c := f.albums[0], f.albums[1], f.albums[2]

	if _, err := f.svc.Submit(ctx, alice, Request{ListID: f.list.ID, LeftAlbumID: a, RightAlbumID: b, WinnerAlbumID: a}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	pair, err := f.svc.SuggestPair(ctx, alice, f.list.ID, nil)
	if err != nil {
		t.Fatalf("SuggestPair() error = %v", err)
	}
	if pair.Subject != c {
		t.Errorf("SuggestPair() subject = %s, want the uncompared album %s", pair.Subject, c)
	}
	if pair.Opponent == c {
		t.Error("SuggestPair() paired an album with itself")
	}
}

func TestStandingsAndTiers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	a, b, c := f.albums[0], f.albums[1], f.albums[2]

	if _, err := f.svc.Submit(ctx, alice, Request{ListID: f.list.ID, LeftAlbumID: a, RightAlbumID: c, WinnerAlbumID: c}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	standings, err := f.svc.Standings(ctx, alice, f.list.ID)
	if err != nil {
		t.Fatalf("Standings() error = %v", err)
	}
	var got []uuid.UUID
	for _, st := range standings {
		got = append(got, st.Item.AlbumID)
	}
	if diff := cmp.Diff([]uuid.UUID{c, b, a}, got); diff != "" {
		t.Errorf("standings mismatch (-want +got):\n%s", diff)
	}
	if standings[1].Rating != 1500 || standings[1].Matches != 0 {
		t.Errorf("uncompared album standing = %+v, want baseline", standings[1])
	}

	tiers, err := f.svc.Tiers(ctx, alice, f.list.ID, 3)
	if err != nil {
		t.Fatalf("Tiers() error = %v", err)
	}
	if len(tiers) != 3 || tiers[0].Albums[0].AlbumID != c {
		t.Errorf("Tiers() = %+v, want three single-album tiers led by %s", tiers, c)
	}

	if _, err := f.svc.Tiers(ctx, alice, f.list.ID, 0); !apperr.Validation.Has(err) {
		t.Errorf("Tiers(0) error = %v, want validation error", err)
	}
}
