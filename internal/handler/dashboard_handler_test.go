package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedahq/veda-call-service/internal/domain"
	"github.com/vedahq/veda-call-service/internal/repository/repositorytest"
)

type dashboardTestEnv struct {
	repos  *repositorytest.MemoryManager
	store  *stubStore
	router *mux.Router
}

func newDashboardTestEnv() *dashboardTestEnv {
	repos := repositorytest.NewMemoryManager()
	store := &stubStore{objects: map[string][]byte{}}

	router := mux.NewRouter()
	NewDashboardHandler(repos, store).SetupDashboardRoutes(router)

	return &dashboardTestEnv{repos: repos, store: store, router: router}
}

func (e *dashboardTestEnv) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetLovedOne(t *testing.T) {
	env := newDashboardTestEnv()

	rec := env.do(http.MethodPost, "/api/loved-ones", "user-1",
		`{"name":"Grandma Rose","phone":"+15551234567","relationship":"grandmother","favorite_things":["gardening"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.LovedOne
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-1", created.UserID)

	rec = env.do(http.MethodGet, "/api/loved-ones/"+created.ID, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Grandma Rose")
}

func TestCreateLovedOneValidation(t *testing.T) {
	env := newDashboardTestEnv()

	rec := env.do(http.MethodPost, "/api/loved-ones", "", `{"name":"Rose","phone":"+15551234567"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing user header")

	rec = env.do(http.MethodPost, "/api/loved-ones", "user-1", `{"name":"Rose"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing phone")

	rec = env.do(http.MethodPost, "/api/loved-ones", "user-1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLovedOneOwnership(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})

	rec := env.do(http.MethodGet, "/api/loved-ones/lo-1", "user-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/api/loved-ones/lo-1", "user-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/loved-ones/missing", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateLovedOne(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})

	rec := env.do(http.MethodPut, "/api/loved-ones/lo-1", "user-1",
		`{"name":"Rose Marie","phone":"+15551234567","personality_notes":"loves jazz"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rose Marie")
}

func TestUploadProfileImage(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})

	req := httptest.NewRequest(http.MethodPost, "/api/loved-ones/lo-1/images/1", strings.NewReader("jpeg-bytes"))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user-1/loved-ones/lo-1/profile_1.jpg")
	assert.Equal(t, []byte("jpeg-bytes"), env.store.objects["user-1/loved-ones/lo-1/profile_1.jpg"])

	rec = env.do(http.MethodPost, "/api/loved-ones/lo-1/images/3", "user-1", "jpeg-bytes")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "slot must be 1 or 2")
}

func TestScheduleAndCancelCall(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})

	scheduledDate := time.Now().Add(time.Hour).Format(time.RFC3339)
	rec := env.do(http.MethodPost, "/api/calls", "user-1",
		`{"loved_one_id":"lo-1","scheduled_date":"`+scheduledDate+`","max_retries":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.ScheduledCall
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.CallStatusScheduled, created.CallStatus)

	rec = env.do(http.MethodPost, "/api/calls/"+created.ID+"/cancel", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.CallStatusCancelled, env.repos.Call(created.ID).CallStatus)

	// A second cancel conflicts: the call already left scheduled.
	rec = env.do(http.MethodPost, "/api/calls/"+created.ID+"/cancel", "user-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListCallsCarriesLovedOneName(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Grandma Rose", Phone: "+15551234567"})
	env.repos.SeedCall(&domain.ScheduledCall{
		ID: "call-1", UserID: "user-1", LovedOneID: "lo-1",
		ScheduledDate: time.Now(), CallStatus: domain.CallStatusScheduled,
	})

	rec := env.do(http.MethodGet, "/api/calls", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loved_one_name":"Grandma Rose"`)
}

func TestScheduleCallValidation(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})

	rec := env.do(http.MethodPost, "/api/calls", "user-1",
		`{"loved_one_id":"lo-1","scheduled_date":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "date must be RFC 3339")

	scheduledDate := time.Now().Format(time.RFC3339)
	rec = env.do(http.MethodPost, "/api/calls", "user-1",
		`{"loved_one_id":"missing","scheduled_date":"`+scheduledDate+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-2", UserID: "user-2", Name: "Joe", Phone: "+15559876543"})
	rec = env.do(http.MethodPost, "/api/calls", "user-1",
		`{"loved_one_id":"lo-2","scheduled_date":"`+scheduledDate+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListCallLogs(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})
	env.repos.SeedCall(&domain.ScheduledCall{ID: "call-1", UserID: "user-1", LovedOneID: "lo-1", CallStatus: domain.CallStatusCompleted})
	require.NoError(t, env.repos.CallLog().Append(context.Background(), "call-1", domain.EventCallInitiated, domain.JSONB{"phone": "+15551234567"}))

	rec := env.do(http.MethodGet, "/api/calls/call-1/logs", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.EventCallInitiated)
}

func TestListQuestionsByCategory(t *testing.T) {
	env := newDashboardTestEnv()
	env.repos.SeedQuestion(&domain.Question{ID: "q-1", QuestionText: "First job?", Category: "career"})
	env.repos.SeedQuestion(&domain.Question{ID: "q-2", QuestionText: "Wedding day?", Category: "family"})

	rec := env.do(http.MethodGet, "/api/questions?category=family", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wedding day?")
	assert.NotContains(t, rec.Body.String(), "First job?")
}

func TestRecordingPlaybackURL(t *testing.T) {
	env := newDashboardTestEnv()
	require.NoError(t, env.repos.Recording().Create(context.Background(), &domain.Recording{
		ID: "rec-1", UserID: "user-1", CallID: "call-1",
		StoragePath: "user-1/call-1/RE1.mp3",
	}))

	rec := env.do(http.MethodGet, "/api/recordings/rec-1/url", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://signed.example.com/user-1/call-1/RE1.mp3")

	rec = env.do(http.MethodGet, "/api/recordings/rec-1/url", "user-2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/recordings/missing/url", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
