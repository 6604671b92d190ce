package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedahq/veda-call-service/internal/config"
	"github.com/vedahq/veda-call-service/internal/domain"
	"github.com/vedahq/veda-call-service/internal/repository/repositorytest"
	"github.com/vedahq/veda-call-service/internal/services/pipeline"
	"github.com/vedahq/veda-call-service/internal/telephony"
)

type stubDialer struct {
	sid string
	err error
}

func (d *stubDialer) PlaceCall(ctx context.Context, params telephony.PlaceCallParams) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.sid, nil
}

type stubDownloader struct {
	audio []byte
	err   error
}

func (d *stubDownloader) DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.audio, nil
}

type stubStore struct {
	objects map[string][]byte
}

func (s *stubStore) Put(ctx context.Context, objectPath string, contentType string, content []byte) (int64, error) {
	s.objects[objectPath] = content
	return int64(len(content)), nil
}

func (s *stubStore) Delete(ctx context.Context, objectPath string) error { return nil }

func (s *stubStore) PlaybackURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	return "https://signed.example.com/" + objectPath, nil
}

type pipelineTestEnv struct {
	repos  *repositorytest.MemoryManager
	dialer *stubDialer
	router *mux.Router
}

func newPipelineTestEnv() *pipelineTestEnv {
	cfg := &config.Config{
		TwilioPhoneNumber:  "+15550001111",
		BaseURL:            "https://calls.example.com",
		RingTimeoutSeconds: 60,
		StuckCallThreshold: 10 * time.Minute,
	}
	repos := repositorytest.NewMemoryManager()
	dialer := &stubDialer{sid: "CA1"}
	service := pipeline.NewService(cfg, repos, dialer, &stubDownloader{audio: []byte("mp3")}, &stubStore{objects: map[string][]byte{}})

	router := mux.NewRouter()
	NewPipelineHandler(service).SetupPipelineRoutes(router)

	return &pipelineTestEnv{repos: repos, dialer: dialer, router: router}
}

func (e *pipelineTestEnv) seedCall(status domain.CallStatus, callSID string) string {
	e.repos.SeedLovedOne(&domain.LovedOne{ID: "lo-1", UserID: "user-1", Name: "Rose", Phone: "+15551234567"})
	e.repos.SeedCall(&domain.ScheduledCall{
		ID: "call-1", UserID: "user-1", LovedOneID: "lo-1",
		ScheduledDate: time.Now(), CallStatus: status, CallSID: callSID, MaxRetries: 3,
	})
	return "call-1"
}

func postForm(router *mux.Router, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleInitiate(t *testing.T) {
	env := newPipelineTestEnv()
	callID := env.seedCall(domain.CallStatusScheduled, "")

	req := httptest.NewRequest(http.MethodPost, "/calls/initiate", strings.NewReader(`{"callId":"call-1"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"callSid":"CA1"`)
	assert.Equal(t, domain.CallStatusRinging, env.repos.Call(callID).CallStatus)
}

func TestHandleInitiateAlreadyClaimedIsSuccess(t *testing.T) {
	env := newPipelineTestEnv()
	env.seedCall(domain.CallStatusInitiating, "")

	req := httptest.NewRequest(http.MethodPost, "/calls/initiate", strings.NewReader(`{"callId":"call-1"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"skipped":true`)
}

func TestHandleInitiateValidation(t *testing.T) {
	env := newPipelineTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/calls/initiate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/calls/initiate", strings.NewReader(`{"callId":"missing"}`))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleInitiateProviderFailure(t *testing.T) {
	env := newPipelineTestEnv()
	env.seedCall(domain.CallStatusScheduled, "")
	env.dialer.err = errors.New("twilio rejected the call")

	req := httptest.NewRequest(http.MethodPost, "/calls/initiate", strings.NewReader(`{"callId":"call-1"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleVoiceWebhook(t *testing.T) {
	env := newPipelineTestEnv()
	env.seedCall(domain.CallStatusRinging, "CA1")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice?callId=call-1", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Connect>")
}

func TestHandleVoiceWebhookFallsBackOnError(t *testing.T) {
	env := newPipelineTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/voice?callId=missing", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	// The provider must always get playable TwiML back.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Say>")
	assert.Contains(t, rec.Body.String(), "<Hangup>")
}

func TestHandleStatusCallback(t *testing.T) {
	env := newPipelineTestEnv()
	callID := env.seedCall(domain.CallStatusRinging, "CA1")

	rec := postForm(env.router, "/webhooks/status", url.Values{
		"CallSid":    {"CA1"},
		"CallStatus": {"no-answer"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.CallStatusNoAnswer, env.repos.Call(callID).CallStatus)
}

func TestHandleStatusCallbackUnknownSID(t *testing.T) {
	env := newPipelineTestEnv()

	rec := postForm(env.router, "/webhooks/status", url.Values{
		"CallSid":    {"CA-unknown"},
		"CallStatus": {"completed"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStatusCallbackRequiresCallSid(t *testing.T) {
	env := newPipelineTestEnv()

	rec := postForm(env.router, "/webhooks/status", url.Values{"CallStatus": {"ringing"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecordingCallback(t *testing.T) {
	env := newPipelineTestEnv()
	callID := env.seedCall(domain.CallStatusInProgress, "CA1")

	rec := postForm(env.router, "/webhooks/recording", url.Values{
		"RecordingSid":      {"RE1"},
		"RecordingUrl":      {"https://api.twilio.com/recordings/RE1"},
		"CallSid":           {"CA1"},
		"RecordingDuration": {"125"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	call := env.repos.Call(callID)
	assert.Equal(t, domain.CallStatusCompleted, call.CallStatus)
	assert.Equal(t, 125, call.ActualDurationSeconds)

	recordings := env.repos.Recordings()
	require.Len(t, recordings, 1)
	assert.Equal(t, 125, recordings[0].DurationSeconds)
}

func TestHandleRecordingCallbackValidation(t *testing.T) {
	env := newPipelineTestEnv()
	env.seedCall(domain.CallStatusInProgress, "CA1")

	rec := postForm(env.router, "/webhooks/recording", url.Values{
		"RecordingSid": {"RE1"},
		"CallSid":      {"CA1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(env.router, "/webhooks/recording", url.Values{
		"RecordingSid":      {"RE1"},
		"RecordingUrl":      {"https://api.twilio.com/recordings/RE1"},
		"CallSid":           {"CA1"},
		"RecordingDuration": {"two minutes"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(env.router, "/webhooks/recording", url.Values{
		"RecordingSid":      {"RE1"},
		"RecordingUrl":      {"https://api.twilio.com/recordings/RE1"},
		"CallSid":           {"CA-unknown"},
		"RecordingDuration": {"10"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
