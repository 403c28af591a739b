package share

import (
	"context"
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

func setup(t *testing.T) (*Service, *db.Store, *ranking.Service) {
	t.Helper()
	store := memstore.New().Repositories()
	rs := ranking.New(store)
	return New(store, rs), store, rs
}

func TestPublishResolveUnpublish(t *testing.T) {
	ctx := context.Background()
	svc, store, rs := setup(t)

	if err := store.Users.Upsert(ctx, &db.User{ID: alice, DisplayName: "Alice"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	list, err := lists.New(store.Lists).Create(ctx, alice, lists.CreateParams{Name: "Best of"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var want []uuid.UUID
	for _, title := range []string{"A", "B", "C"} {
		a := &db.Album{Provider: db.ProviderManual, Title: title, Artist: "Artist"}
		if err := store.Albums.Create(ctx, a); err != nil {
			t.Fatalf("creating album: %v", err)
		}
		if _, err := rs.Add(ctx, alice, list.ID, a.ID); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		want = append([]uuid.UUID{a.ID}, want...)
	}
	if err := rs.Reorder(ctx, alice, list.ID, want); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}

	slug, err := svc.Publish(ctx, alice, list.ID)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	again, err := svc.Publish(ctx, alice, list.ID)
	if err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	if again != slug {
		t.Errorf("second Publish() slug = %q, want reused %q", again, slug)
	}

	pub, err := svc.Resolve(ctx, slug)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	var got []uuid.UUID
	for _, it := range pub.Items {
		got = append(got, it.AlbumID)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() items mismatch (-want +got):\n%s", diff)
	}
	if pub.Owner != "Alice" || pub.List.ID != list.ID {
		t.Errorf("Resolve() = owner %q list %s, want Alice and %s", pub.Owner, pub.List.ID, list.ID)
	}

	if err := svc.Unpublish(ctx, alice, list.ID); err != nil {
		t.Fatalf("Unpublish() error = %v", err)
	}
	if _, err := svc.Resolve(ctx, slug); !apperr.NotFound.Has(err) {
		t.Errorf("Resolve() after unpublish error = %v, want not found", err)
	}

	fresh, err := svc.Publish(ctx, alice, list.ID)
	if err != nil {
		t.Fatalf("Publish() after unpublish error = %v", err)
	}
	if fresh == slug {
		t.Error("Publish() after unpublish reused the forgotten slug")
	}
}

func TestResolveNotFoundCases(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t)

	private, err := lists.New(store.Lists).Create(ctx, alice, lists.CreateParams{Name: "Private"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// A slug left on a private list must not resolve.
	slug := "stale-slug"
	if err := store.Lists.SetSharing(ctx, private.ID, false, &slug); err != nil {
		t.Fatalf("SetSharing() error = %v", err)
	}

	for _, s := range []string{"", "no-such-slug", slug} {
		_, err := svc.Resolve(ctx, s)
		if !apperr.NotFound.Has(err) {
			t.Errorf("Resolve(%q) error = %v, want not found", s, err)
		}
	}
}

func TestPublishChecks(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t)
	ls := lists.New(store.Lists)

	all, err := ls.Ensure(ctx, alice, nil, nil)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if _, err := svc.Publish(ctx, alice, all[0].ID); !apperr.Validation.Has(err) {
		t.Errorf("Publish(derived list) error = %v, want validation error", err)
	}

	mine, err := ls.Create(ctx, alice, lists.CreateParams{Name: "Mine"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Publish(ctx, bob, mine.ID); !apperr.Authorization.Has(err) {
		t.Errorf("Publish(other user) error = %v, want authorization error", err)
	}
	if err := svc.Unpublish(ctx, bob, mine.ID); !apperr.Authorization.Has(err) {
		t.Errorf("Unpublish(other user) error = %v, want authorization error", err)
	}
}
