package apperrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the appropriate HTTP status code.
// Malformed requests and unknown delivery options both answer 404 on the
// relay surface; they stay distinguishable by body text.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrMissingField):
		return http.StatusNotFound
	case errors.Is(err, ErrUnknownOption):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
