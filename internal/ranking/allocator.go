// Package ranking maintains album positions and list membership.
//
// Positions in a ranked list are unique per list and kept dense (1..N)
// after every mutation. Because the store enforces uniqueness on every
// statement, a reorder writes each album twice: first to a temporary slot
// above every persisted position, then to its final slot.
package ranking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/apperr"
	"github.com/justestif/albumrank/internal/metrics"
)

// MinTempOffset is the smallest offset used for temporary positions.
const MinTempOffset = 1000

// Phase names a pass of the two-phase position rewrite.
type Phase string

const (
	PhaseTemporary Phase = "temporary"
	PhaseFinal     Phase = "final"
)

// ReorderError reports which write of a position rewrite failed. Positions
// written before the failure stay in place, so the list needs another
// reorder or compaction to become dense again.
type ReorderError struct {
	ListID  uuid.UUID
	Phase   Phase
	Step    int // 1-based index into the ordered albums
	AlbumID uuid.UUID
	Err     error
}

func (e *ReorderError) Error() string {
	return fmt.Sprintf("reorder %s: %s pass step %d (album %s): %v", e.ListID, e.Phase, e.Step, e.AlbumID, e.Err)
}

func (e *ReorderError) Unwrap() error {
	return e.Err
}

// Positions is the subset of the membership store the allocator writes through.
type Positions interface {
	MaxPosition(ctx context.Context, listID uuid.UUID) (int, error)
	AlbumIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error)
	SetPosition(ctx context.Context, listID, albumID uuid.UUID, position int) error
}

// Allocator assigns and rewrites positions of ranked lists.
type Allocator struct {
	store   Positions
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAllocator creates an allocator over store.
func NewAllocator(store Positions, logger *zap.Logger, m *metrics.Metrics) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{store: store, logger: logger, metrics: m}
}

// Next returns the position for an album appended to the list, read from
// persisted state at call time.
func (a *Allocator) Next(ctx context.Context, listID uuid.UUID) (int, error) {
	highest, err := a.store.MaxPosition(ctx, listID)
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("reading max position: %w", err))
	}
	return highest + 1, nil
}

// Current returns the list's albums in reader order.
func (a *Allocator) Current(ctx context.Context, listID uuid.UUID) (*Order, error) {
	ids, err := a.store.AlbumIDs(ctx, listID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("reading order: %w", err))
	}
	order, err := NewOrder(ids)
	if err != nil {
		return nil, apperr.Persistence.Wrap(err)
	}
	return order, nil
}

// Reorder rewrites the list so ids[i] ends at position i+1. ids must hold
// exactly the current members of the list.
func (a *Allocator) Reorder(ctx context.Context, listID uuid.UUID, ids []uuid.UUID) error {
	requested, err := NewOrder(ids)
	if err != nil {
		return apperr.Validation.New("ordered album ids: %v", err)
	}
	current, err := a.Current(ctx, listID)
	if err != nil {
		return err
	}
	if !current.SameMembers(requested.IDs()) {
		return apperr.Validation.New("ordered album ids do not match the %d members of the list", current.Len())
	}
	return a.Write(ctx, listID, requested)
}

// Compact re-reads the list and renumbers it to 1..N in its current order.
// An empty list performs no writes.
func (a *Allocator) Compact(ctx context.Context, listID uuid.UUID) error {
	current, err := a.Current(ctx, listID)
	if err != nil {
		return err
	}
	return a.Write(ctx, listID, current)
}

// Write persists order with the two-phase rewrite. The temporary range
// starts above the largest persisted position, so leftovers of an earlier
// failed rewrite cannot collide with it.
func (a *Allocator) Write(ctx context.Context, listID uuid.UUID, order *Order) error {
	if order.Len() == 0 {
		return nil
	}

	err := a.write(ctx, listID, order.IDs())
	a.metrics.Reorder(err)
	if err != nil {
		a.logger.Warn("position rewrite failed",
			zap.Stringer("list_id", listID),
			zap.Error(err),
		)
		return err
	}
	a.logger.Debug("positions rewritten",
		zap.Stringer("list_id", listID),
		zap.Int("count", order.Len()),
	)
	return nil
}

func (a *Allocator) write(ctx context.Context, listID uuid.UUID, ids []uuid.UUID) error {
	highest, err := a.store.MaxPosition(ctx, listID)
	if err != nil {
		return apperr.Store(fmt.Errorf("reading max position: %w", err))
	}
	offset := max(MinTempOffset, highest)

	for i, id := range ids {
		if err := a.store.SetPosition(ctx, listID, id, offset+i+1); err != nil {
			return apperr.Store(&ReorderError{ListID: listID, Phase: PhaseTemporary, Step: i + 1, AlbumID: id, Err: err})
		}
	}
	for i, id := range ids {
		if err := a.store.SetPosition(ctx, listID, id, i+1); err != nil {
			return apperr.Store(&ReorderError{ListID: listID, Phase: PhaseFinal, Step: i + 1, AlbumID: id, Err: err})
		}
	}
	return nil
}
