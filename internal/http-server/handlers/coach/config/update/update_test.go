package update

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach-service/api"
	"coach-service/internal/http-server/middleware/auth"
	"coach-service/pkg/response"
)

type fakeUpdater struct {
	got *api.CoachConfigRequest
	err error
}

func (f *fakeUpdater) UpdateCoachConfig(_ context.Context, principal string, req *api.CoachConfigRequest) (*api.CoachConfigUpdateResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}

	return &api.CoachConfigUpdateResponse{
		Config:       api.CoachConfig{CoachID: principal, WeeklyTemplate: req.WeeklyTemplate, SessionDurationMinutes: req.SessionDurationMinutes},
		Regeneration: api.RegenerationResult{RunID: "run-1", Generated: 3},
	}, nil
}

func do(t *testing.T, updater CoachConfigUpdater, body string) *httptest.ResponseRecorder {
	t.Helper()

	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), updater)

	req := httptest.NewRequest(http.MethodPut, "/api/coach/config", strings.NewReader(body))
	req = req.WithContext(auth.WithPrincipal(req.Context(), "coach"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func TestUpdate(t *testing.T) {
	updater := &fakeUpdater{}

	rr := do(t, updater, `{"weeklyTemplate":{"monday":["09:00"]},"sessionDurationMinutes":60}`)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, updater.got)
	assert.Equal(t, 60, updater.got.SessionDurationMinutes)
	assert.Equal(t, []string{"09:00"}, updater.got.WeeklyTemplate["monday"])

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.CoachConfigUpdateResponse)
	assert.Equal(t, "run-1", resp.Regeneration.RunID)
	assert.EqualValues(t, 3, resp.Regeneration.Generated)
	assert.Equal(t, "coach", resp.Config.CoachID)
}

func TestUpdate_Errors(t *testing.T) {
	rr := do(t, &fakeUpdater{}, `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, &fakeUpdater{err: response.ErrForbidden}, `{"weeklyTemplate":{},"sessionDurationMinutes":60}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, &fakeUpdater{err: response.ErrLocked}, `{"weeklyTemplate":{},"sessionDurationMinutes":60}`)
	assert.Equal(t, http.StatusLocked, rr.Code)

	rr = do(t, &fakeUpdater{err: response.Invalid("sessions starting monday 09:00 and monday 09:30 overlap")}, `{"weeklyTemplate":{},"sessionDurationMinutes":60}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "overlap")
}
