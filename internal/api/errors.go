package api

import (
	"errors"
	"net/http"

	"github.com/taskrooms/taskrooms/internal/api/respond"
	"github.com/taskrooms/taskrooms/internal/model"
)

// writeError maps domain sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrUnauthenticated):
		respond.WriteUnauthorized(w, err.Error())
	case errors.Is(err, model.ErrForbidden):
		respond.WriteForbidden(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
