package ranking

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/justestif/albumrank/internal/apperr"
)

// fakePositions is an in-memory position table with the same per-list
// uniqueness rule as the database, plus failure injection.
type fakePositions struct {
	pos    map[uuid.UUID]int
	order  []uuid.UUID // insertion order, used for ties
	writes int
	failAt int // fail the n-th SetPosition call, 0 never
}

func newFakePositions(ids ...uuid.UUID) *fakePositions {
	f := &fakePositions{pos: make(map[uuid.UUID]int)}
	for i, id := range ids {
		f.pos[id] = i + 1
		f.order = append(f.order, id)
	}
	return f
}

var errInjected = errors.New("injected write failure")

func (f *fakePositions) MaxPosition(context.Context, uuid.UUID) (int, error) {
	highest := 0
	for _, p := range f.pos {
		highest = max(highest, p)
	}
	return highest, nil
}

func (f *fakePositions) AlbumIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	out := append([]uuid.UUID(nil), f.order...)
	// insertion sort by position keeps ties in insertion order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && f.pos[out[j]] < f.pos[out[j-1]]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakePositions) SetPosition(_ context.Context, _ uuid.UUID, albumID uuid.UUID, position int) error {
	f.writes++
	if f.failAt > 0 && f.writes == f.failAt {
		return errInjected
	}
	for id, p := range f.pos {
		if id != albumID && p == position {
			return errors.New("duplicate position")
		}
	}
	f.pos[albumID] = position
	return nil
}

func (f *fakePositions) positions(ids []uuid.UUID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = f.pos[id]
	}
	return out
}

func TestAllocatorNext(t *testing.T) {
	ctx := context.Background()
	a := NewAllocator(newFakePositions(), nil, nil)
	if got, _ := a.Next(ctx, uuid.New()); got != 1 {
		t.Errorf("Next() on empty list = %d, want 1", got)
	}

	a = NewAllocator(newFakePositions(ids(4)...), nil, nil)
	if got, _ := a.Next(ctx, uuid.New()); got != 5 {
		t.Errorf("Next() = %d, want 5", got)
	}
}

func TestAllocatorReorder(t *testing.T) {
	ctx := context.Background()
	all := ids(4)
	store := newFakePositions(all...)
	a := NewAllocator(store, nil, nil)

	want := []uuid.UUID{all[3], all[1], all[0], all[2]}
	if err := a.Reorder(ctx, uuid.New(), want); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, store.positions(want)); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if store.writes != 8 {
		t.Errorf("Reorder() made %d writes, want 8", store.writes)
	}

	// Same order again leaves positions unchanged.
	if err := a.Reorder(ctx, uuid.New(), want); err != nil {
		t.Fatalf("second Reorder() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, store.positions(want)); diff != "" {
		t.Errorf("positions after repeat mismatch (-want +got):\n%s", diff)
	}
}

func TestAllocatorReorderValidation(t *testing.T) {
	ctx := context.Background()
	all := ids(3)

	tests := []struct {
		name string
		ids  []uuid.UUID
	}{
		{name: "missing member", ids: all[:2]},
		{name: "unknown album", ids: []uuid.UUID{all[0], all[1], uuid.New()}},
		{name: "duplicate", ids: []uuid.UUID{all[0], all[1], all[1]}},
		{name: "extra album", ids: append(append([]uuid.UUID(nil), all...), uuid.New())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakePositions(all...)
			err := NewAllocator(store, nil, nil).Reorder(ctx, uuid.New(), tt.ids)
			if !apperr.Validation.Has(err) {
				t.Errorf("Reorder() error = %v, want validation error", err)
			}
			if store.writes != 0 {
				t.Errorf("rejected Reorder() made %d writes", store.writes)
			}
		})
	}
}

func TestAllocatorReorderReportsFailedStep(t *testing.T) {
	ctx := context.Background()
	all := ids(3)

	tests := []struct {
		name      string
		failAt    int
		wantPhase Phase
		wantStep  int
	}{
		{name: "first temporary write", failAt: 1, wantPhase: PhaseTemporary, wantStep: 1},
		{name: "last temporary write", failAt: 3, wantPhase: PhaseTemporary, wantStep: 3},
		{name: "second final write", failAt: 5, wantPhase: PhaseFinal, wantStep: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakePositions(all...)
			store.failAt = tt.failAt
			reversed := []uuid.UUID{all[2], all[1], all[0]}

			err := NewAllocator(store, nil, nil).Reorder(ctx, uuid.New(), reversed)
			if !apperr.Persistence.Has(err) {
				t.Fatalf("Reorder() error = %v, want persistence error", err)
			}
			var re *ReorderError
			if !errors.As(err, &re) {
				t.Fatalf("Reorder() error = %v, want *ReorderError", err)
			}
			if re.Phase != tt.wantPhase || re.Step != tt.wantStep {
				t.Errorf("failed at %s step %d, want %s step %d", re.Phase, re.Step, tt.wantPhase, tt.wantStep)
			}
			if re.AlbumID != reversed[tt.wantStep-1] {
				t.Errorf("failed album = %s, want %s", re.AlbumID, reversed[tt.wantStep-1])
			}
			if store.writes != tt.failAt {
				t.Errorf("writes after failure = %d, want %d (no further steps)", store.writes, tt.failAt)
			}
			if !errors.Is(err, errInjected) {
				t.Errorf("Reorder() error does not wrap the store error: %v", err)
			}
		})
	}
}

func TestAllocatorRecoversFromFailedReorder(t *testing.T) {
	ctx := context.Background()
	all := ids(3)
	store := newFakePositions(all...)
	store.failAt = 5 // leaves one album at its final slot, others at temporary slots
	a := NewAllocator(store, nil, nil)

	if err := a.Reorder(ctx, uuid.New(), all); err == nil {
		t.Fatal("Reorder() error = nil, want injected failure")
	}
	store.failAt = 0

	// Leftover temporary positions sit at 1001..1003; the next rewrite
	// must use a range above them.
	if err := a.Compact(ctx, uuid.New()); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	got, _ := store.AlbumIDs(ctx, uuid.Nil)
	if diff := cmp.Diff([]int{1, 2, 3}, store.positions(got)); diff != "" {
		t.Errorf("positions after recovery mismatch (-want +got):\n%s", diff)
	}
}

func TestAllocatorTemporaryRangeAboveStrayPositions(t *testing.T) {
	ctx := context.Background()
	all := ids(3)
	store := newFakePositions(all...)
	// A stray position inside the default temporary range.
	store.pos[all[2]] = MinTempOffset + 2
	a := NewAllocator(store, nil, nil)

	if err := a.Reorder(ctx, uuid.New(), all); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, store.positions(all)); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestAllocatorCompactEmpty(t *testing.T) {
	store := newFakePositions()
	if err := NewAllocator(store, nil, nil).Compact(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if store.writes != 0 {
		t.Errorf("Compact() on empty list made %d writes, want 0", store.writes)
	}
}
