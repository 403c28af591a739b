package ranking

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

// ErrDuplicateAlbum is returned when an album appears twice in an order.
var ErrDuplicateAlbum = errors.New("album appears more than once")

// Order is the ranked sequence of albums in one list. Position 1 is the
// best album. The zero value is an empty order.
type Order struct {
	ids []uuid.UUID
}

// NewOrder builds an order from ids, rejecting duplicates.
func NewOrder(ids []uuid.UUID) (*Order, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, ErrDuplicateAlbum
		}
		seen[id] = true
	}
	return &Order{ids: slices.Clone(ids)}, nil
}

// Len returns the number of albums.
func (o *Order) Len() int {
	return len(o.ids)
}

// IDs returns a copy of the album IDs, best first.
func (o *Order) IDs() []uuid.UUID {
	return slices.Clone(o.ids)
}

// Position returns the 1-based position of id, or 0 if absent.
func (o *Order) Position(id uuid.UUID) int {
	return slices.Index(o.ids, id) + 1
}

// Contains reports whether id is in the order.
func (o *Order) Contains(id uuid.UUID) bool {
	return o.Position(id) > 0
}

// Append adds id at the end.
func (o *Order) Append(id uuid.UUID) error {
	if o.Contains(id) {
		return ErrDuplicateAlbum
	}
	o.ids = append(o.ids, id)
	return nil
}

// Remove deletes id and reports whether it was present.
func (o *Order) Remove(id uuid.UUID) bool {
	i := slices.Index(o.ids, id)
	if i < 0 {
		return false
	}
	o.ids = slices.Delete(o.ids, i, i+1)
	return true
}

// MoveBefore moves id to the slot immediately before anchor, keeping the
// relative order of every other album. It reports whether anything moved:
// nothing moves when either album is absent or id already precedes anchor.
func (o *Order) MoveBefore(id, anchor uuid.UUID) bool {
	from, to := o.Position(id), o.Position(anchor)
	if from == 0 || to == 0 || from < to {
		return false
	}
	o.ids = slices.Delete(o.ids, from-1, from)
	o.ids = slices.Insert(o.ids, to-1, id)
	return true
}

// SameMembers reports whether ids holds exactly the albums of the order,
// each once, in any sequence.
func (o *Order) SameMembers(ids []uuid.UUID) bool {
	if len(ids) != len(o.ids) {
		return false
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] || !o.Contains(id) {
			return false
		}
		seen[id] = true
	}
	return true
}
