package httpapi

import (
	"errors"
	"net/http"

	"github.com/bookwaves/feig-rfid-bridge/internal/reader"
	"github.com/bookwaves/feig-rfid-bridge/internal/tagcodec"
)

// statusFor maps a reader/tagcodec sentinel error to its HTTP status.
// Unrecognized errors default to 500 (operation failed).
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, reader.ErrSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, tagcodec.ErrInvalidEPCHex),
		errors.Is(err, tagcodec.ErrInvalidMediaID),
		errors.Is(err, tagcodec.ErrUnsupportedFormat),
		errors.Is(err, reader.ErrInvalidMediaID),
		errors.Is(err, errMissingQueryParam),
		errors.Is(err, errInvalidQueryParam):
		return http.StatusBadRequest

	case errors.Is(err, errNotificationAlreadyActive):
		return http.StatusBadRequest

	case errors.Is(err, errNotificationNotActive):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// Ambient HTTP-layer sentinel errors, for conditions that arise only at
// the request-handling boundary rather than inside the protocol engine.
var (
	errMissingQueryParam         = errors.New("httpapi: missing required query parameter")
	errInvalidQueryParam         = errors.New("httpapi: invalid query parameter")
	errNotificationAlreadyActive = errors.New("httpapi: notification already active")
	errNotificationNotActive     = errors.New("httpapi: notification not active")
)
