package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"coach-service/api"
	"coach-service/internal/http-server/handlers/failure"
	"coach-service/internal/http-server/middleware/auth"
	"coach-service/pkg/response"
)

type BookingGetter interface {
	GetBooking(ctx context.Context, principal, bookingID string) (*api.Booking, error)
}

type Response struct {
	response.Response
	Booking *api.Booking `json:"booking,omitempty"`
}

func New(log *slog.Logger, getter BookingGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			failure.BadRequest(w, r, "id is required")
			return
		}

		booking, err := getter.GetBooking(r.Context(), auth.PrincipalFrom(r.Context()), id)
		if err != nil {
			failure.Render(w, r, log, err, "get booking")
			return
		}

		render.JSON(w, r, Response{Booking: booking})
	}
}
