package httpx

import (
	"errors"
	"net/http"

	"github.com/transitops/fleet-ledger/internal/shared"
)

// ErrMalformedBody indicates the request body could not be decoded.
var ErrMalformedBody = errors.New("malformed request body")

// StatusFor maps an error to its HTTP status and problem title.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, "Malformed Request"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrImmutable):
		return http.StatusConflict, "Immutable"
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity, "Validation Failed"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Infrastructure failures never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}
