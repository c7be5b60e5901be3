package editproxy

import (
	"errors"
	"net/http"

	"github.com/hazyhaar/doodle/dataurl"
)

var (
	// ErrMissingCommand is returned when the command is absent or blank.
	ErrMissingCommand = errors.New("command is required")
	// ErrMissingImage is returned by variants that require an image.
	ErrMissingImage = errors.New("image and command are required")
	// ErrMalformedImage is returned when a data URL payload is not valid base64.
	ErrMalformedImage = errors.New("malformed image encoding")
)

// statusFor maps an Edit error to an HTTP status. Missing fields and a
// payload that is not a data URL are client errors; everything else,
// including undecodable base64, is a server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingCommand),
		errors.Is(err, ErrMissingImage),
		errors.Is(err, dataurl.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
