package list

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
)

type CoachBookingsLister interface {
	ListCoachBookings(ctx context.Context, principal, date string) ([]api.Booking, error)
}

type Response struct {
	response.Response
	Bookings []api.Booking `json:"bookings"`
}

// New lists confirmed bookings on ?date=YYYY-MM-DD, or all of them without it.
func New(log *slog.Logger, lister CoachBookingsLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.coach.bookings.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		bookings, err := lister.ListCoachBookings(r.Context(), auth.PrincipalFrom(r.Context()), r.URL.Query().Get("date"))
		if err != nil {
			failure.Render(w, r, log, err, "list bookings")
			return
		}

		render.JSON(w, r, Response{Bookings: bookings})
	}
}
