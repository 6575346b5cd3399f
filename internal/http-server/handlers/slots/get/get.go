package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"coach-service/api"
	"coach-service/internal/http-server/handlers/failure"
	"coach-service/pkg/response"
)

type SlotGetter interface {
	ListSlotsForDate(ctx context.Context, date string) ([]api.Slot, error)
}

type Response struct {
	response.Response
	Slots []api.Slot `json:"slots"`
}

func New(log *slog.Logger, getter SlotGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slots, err := getter.ListSlotsForDate(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			failure.Render(w, r, log, err, "get slots")
			return
		}

		render.JSON(w, r, Response{Slots: slots})
	}
}
