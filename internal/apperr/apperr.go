// Package apperr defines the error classes shared by the album ranking services.
//
// Repositories return plain sentinel errors (db.ErrNotFound, db.ErrConflict).
// Services translate them into one of the classes below so the HTTP layer can
// pick a status code without knowing which component failed.
package apperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeebo/errs"
)

var (
	// Validation marks bad input: malformed requests, a winner outside the
	// compared pair, an ordering that does not match the list contents.
	Validation = errs.Class("validation")

	// Authorization marks requests against resources owned by another user.
	Authorization = errs.Class("authorization")

	// NotFound marks absent lists, albums, memberships and share slugs.
	NotFound = errs.Class("not found")

	// Upstream marks failures of the catalog search or artwork storage collaborators.
	Upstream = errs.Class("upstream")

	// Persistence marks store failures that are not one of the above.
	Persistence = errs.Class("persistence")
)

// Status maps an error to the HTTP status code of its class.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Validation.Has(err):
		return http.StatusBadRequest
	case Authorization.Has(err):
		return http.StatusForbidden
	case NotFound.Has(err):
		return http.StatusNotFound
	case Upstream.Has(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Classified reports whether err already carries one of the package classes.
func Classified(err error) bool {
	return Validation.Has(err) ||
		Authorization.Has(err) ||
		NotFound.Has(err) ||
		Upstream.Has(err) ||
		Persistence.Has(err)
}

// Store wraps a store error as Persistence unless it is already classified.
// Context cancellation is passed through unchanged.
func Store(err error) error {
	if err == nil || Classified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return Persistence.Wrap(err)
}
