// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package netshare

import (
	"errors"
	"net/http"
)

var (
	// HTTP 400
	ErrBadRequest = errors.New("Bad Request")
	// HTTP 404
	ErrNotFound = errors.New("Not Found")
	// HTTP 405
	ErrMethodNotAllowed = errors.New("Method Not Allowed")
	// HTTP 413
	ErrPayloadTooLarge = errors.New("Payload Too Large")
	// HTTP 502
	ErrBadGateway = errors.New("Bad Gateway")
	// HTTP 500
	ErrInternal = errors.New("Internal Server Error")
)

// StatusCode maps the errors above to their HTTP status.
// Anything else is an internal error.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
