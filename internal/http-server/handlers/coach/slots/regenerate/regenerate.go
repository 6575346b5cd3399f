package regenerate

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

type SlotRegenerator interface {
	RegenerateSlots(ctx context.Context, principal string) (*api.RegenerationResult, error)
}

type Response struct {
	response.Response
	Regeneration *api.RegenerationResult `json:"regeneration,omitempty"`
}

func New(log *slog.Logger, regenerator SlotRegenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.coach.slots.regenerate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		res, err := regenerator.RegenerateSlots(r.Context(), auth.PrincipalFrom(r.Context()))
		if err != nil {
			failure.Render(w, r, log, err, "regenerate slots")
			return
		}

		log.Info("Slots regenerated", slog.String("run_id", res.RunID))

		render.JSON(w, r, Response{Regeneration: res})
	}
}
