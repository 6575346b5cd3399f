package cancel

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

type BookingCanceller interface {
	CancelBooking(ctx context.Context, principal, bookingID string) (*api.CancelResult, error)
}

type Response struct {
	response.Response
	*api.CancelResult
}

func New(log *slog.Logger, canceller BookingCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.cancel.New"

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

		res, err := canceller.CancelBooking(r.Context(), auth.PrincipalFrom(r.Context()), id)
		if err != nil {
			failure.Render(w, r, log, err, "cancel booking")
			return
		}

		log.Info("Booking cancelled",
			slog.Int64("booking_id", res.Booking.BookingID),
			slog.Bool("already_cancelled", res.AlreadyCancelled),
		)

		render.JSON(w, r, Response{CancelResult: res})
	}
}
