package get

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

type CoachConfigGetter interface {
	GetCoachConfig(ctx context.Context, principal string) (*api.CoachConfig, error)
}

type Response struct {
	response.Response
	Config *api.CoachConfig `json:"config,omitempty"`
}

func New(log *slog.Logger, getter CoachConfigGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.coach.config.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		cfg, err := getter.GetCoachConfig(r.Context(), auth.PrincipalFrom(r.Context()))
		if err != nil {
			failure.Render(w, r, log, err, "get coach config")
			return
		}

		render.JSON(w, r, Response{Config: cfg})
	}
}
