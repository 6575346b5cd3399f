// Package failure renders service errors as JSON responses.
package failure

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"coach-service/pkg/response"
	"coach-service/pkg/sl"
)

// Render maps err onto a status code and error body. action completes the
// "failed to ..." message used for unexpected errors.
func Render(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, action string) {
	status, code, msg := http.StatusInternalServerError, response.FAILED_REQUEST, "failed to "+action

	switch {
	case errors.Is(err, response.ErrValidation):
		status, code, msg = http.StatusBadRequest, response.VALIDATION_FAILED, response.InvalidMessage(err)
	case errors.Is(err, response.ErrUnauthorized):
		status, code, msg = http.StatusUnauthorized, response.UNAUTHORIZED, "authentication required"
	case errors.Is(err, response.ErrForbidden):
		status, code, msg = http.StatusForbidden, response.FORBIDDEN, "access denied"
	case errors.Is(err, response.ErrNotFound):
		status, code, msg = http.StatusNotFound, response.NOT_FOUND, "resource not found"
	case errors.Is(err, response.ErrSlotNotAvailable):
		status, code, msg = http.StatusConflict, response.SLOT_NOT_AVAILABLE, "slot is not available"
	case errors.Is(err, response.ErrBookingNotActive):
		status, code, msg = http.StatusConflict, response.CONFLICT, "booking is not active"
	case errors.Is(err, response.ErrLocked):
		status, code, msg = http.StatusLocked, response.LOCKED, "resource is locked"
	}

	if status == http.StatusInternalServerError {
		log.Error("Failed to "+action, sl.Err(err))
	} else {
		log.Info("Request rejected", slog.Int("status", status), sl.Err(err))
	}

	render.Status(r, status)
	render.JSON(w, r, response.Error(string(code), msg))
}

// BadRequest answers 400 for a body or parameter the handler could not read.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(string(response.BAD_REQUEST), msg))
}
