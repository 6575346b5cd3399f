package update

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

type CoachConfigUpdater interface {
	UpdateCoachConfig(ctx context.Context, principal string, req *api.CoachConfigRequest) (*api.CoachConfigUpdateResponse, error)
}

type Request struct {
	api.CoachConfigRequest
}

type Response struct {
	response.Response
	*api.CoachConfigUpdateResponse
}

func New(log *slog.Logger, updater CoachConfigUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.coach.config.update.New"

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

		res, err := updater.UpdateCoachConfig(r.Context(), auth.PrincipalFrom(r.Context()), &req.CoachConfigRequest)
		if err != nil {
			failure.Render(w, r, log, err, "update coach config")
			return
		}

		log.Info("Coach config updated",
			slog.String("run_id", res.Regeneration.RunID),
			slog.Int64("generated", res.Regeneration.Generated),
		)

		render.JSON(w, r, Response{CoachConfigUpdateResponse: res})
	}
}
