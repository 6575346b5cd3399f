package create

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"coach-service/api"
	"coach-service/internal/http-server/handlers/failure"
	"coach-service/internal/http-server/middleware/auth"
	"coach-service/pkg/response"
	"coach-service/pkg/sl"
)

type BookingCreator interface {
	CreateBooking(ctx context.Context, principal, slotID string) (*api.Booking, error)
}

type Request struct {
	api.BookingRequest
}

type Response struct {
	response.Response
	Booking *api.Booking `json:"booking,omitempty"`
}

func New(log *slog.Logger, creator BookingCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			failure.BadRequest(w, r, "failed to decode request")
			return
		}

		booking, err := creator.CreateBooking(r.Context(), auth.PrincipalFrom(r.Context()), req.SlotID.String())
		if err != nil {
			failure.Render(w, r, log, err, "create booking")
			return
		}

		log.Info("Booking created", slog.Int64("booking_id", booking.BookingID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Booking: booking})
	}
}
