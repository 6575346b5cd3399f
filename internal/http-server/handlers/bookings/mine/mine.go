package mine

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

type UpcomingBookingsLister interface {
	ListMyUpcomingBookings(ctx context.Context, principal string) ([]api.Booking, error)
}

type Response struct {
	response.Response
	Bookings []api.Booking `json:"bookings"`
}

func New(log *slog.Logger, lister UpcomingBookingsLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.mine.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		bookings, err := lister.ListMyUpcomingBookings(r.Context(), auth.PrincipalFrom(r.Context()))
		if err != nil {
			failure.Render(w, r, log, err, "list bookings")
			return
		}

		render.JSON(w, r, Response{Bookings: bookings})
	}
}
