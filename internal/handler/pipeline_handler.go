package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vedahq/veda-call-service/internal/repository"
	"github.com/vedahq/veda-call-service/internal/services/pipeline"
	"github.com/vedahq/veda-call-service/internal/telephony"
	"github.com/vedahq/veda-call-service/pkg/logger"
	"go.uber.org/zap"
)

// PipelineHandler serves the initiator endpoint and the three Twilio
// webhooks.
type PipelineHandler struct {
	service *pipeline.Service
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(service *pipeline.Service) *PipelineHandler {
	return &PipelineHandler{service: service}
}

// SetupPipelineRoutes registers the initiator and webhook routes
func (h *PipelineHandler) SetupPipelineRoutes(router *mux.Router) {
	router.HandleFunc("/calls/initiate", h.HandleInitiate).Methods("POST")
	router.HandleFunc("/webhooks/voice", h.HandleVoiceWebhook).Methods("GET", "POST")
	router.HandleFunc("/webhooks/status", h.HandleStatusCallback).Methods("POST")
	router.HandleFunc("/webhooks/recording", h.HandleRecordingCallback).Methods("POST")

	logger.Base().Info("pipeline routes registered")
}

// InitiateCallRequest is the poller-to-initiator payload
type InitiateCallRequest struct {
	CallID string `json:"callId"`
}

// HandleInitiate handles POST /calls/initiate
func (h *PipelineHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var request InitiateCallRequest
	if err := json.Unmarshal(bodyBytes, &request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.CallID == "" {
		http.Error(w, "callId is required", http.StatusBadRequest)
		return
	}

	callSID, err := h.service.Initiate(r.Context(), request.CallID)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrAlreadyClaimed):
			// Benign: a concurrent pass won the claim. Report success so
			// the poller does not burn a retry on it.
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "skipped": true})
		case errors.Is(err, repository.ErrNotFound):
			logger.Base().Error("initiate failed, call not found", zap.String("call_id", request.CallID))
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
		default:
			logger.Base().Error("call initiation failed", zap.String("call_id", request.CallID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "callSid": callSID})
}

// HandleVoiceWebhook handles the provider's answer webhook. The apology
// fallback must always be reachable, so every failure path still returns a
// valid TwiML document with HTTP 200.
func (h *PipelineHandler) HandleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("callId")

	twiml, err := h.service.VoiceAnswer(r.Context(), callID)
	if err != nil {
		logger.Base().Error("voice webhook failed, returning fallback",
			zap.String("call_id", callID),
			zap.Error(err))
		twiml = telephony.RenderFallback()
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(twiml))
}

// HandleStatusCallback handles the provider's call-state transitions
func (h *PipelineHandler) HandleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form payload", http.StatusBadRequest)
		return
	}

	callSID := r.PostFormValue("CallSid")
	callStatus := r.PostFormValue("CallStatus")
	if callSID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	if err := h.service.ApplyStatus(r.Context(), callSID, callStatus); err != nil {
		logger.Base().Error("status callback failed",
			zap.String("call_sid", callSID),
			zap.String("call_status", callStatus),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleRecordingCallback handles the provider's recording-finished webhook
func (h *PipelineHandler) HandleRecordingCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form payload", http.StatusBadRequest)
		return
	}

	recordingSID := r.PostFormValue("RecordingSid")
	recordingURL := r.PostFormValue("RecordingUrl")
	callSID := r.PostFormValue("CallSid")
	durationRaw := r.PostFormValue("RecordingDuration")

	if recordingSID == "" || recordingURL == "" || callSID == "" {
		http.Error(w, "RecordingSid, RecordingUrl and CallSid are required", http.StatusBadRequest)
		return
	}

	duration, err := strconv.Atoi(durationRaw)
	if err != nil {
		http.Error(w, "RecordingDuration must be an integer", http.StatusBadRequest)
		return
	}

	_, err = h.service.ProcessRecording(r.Context(), pipeline.RecordingEvent{
		RecordingSID:    recordingSID,
		RecordingURL:    recordingURL,
		CallSID:         callSID,
		DurationSeconds: duration,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		logger.Base().Error("recording callback failed",
			zap.String("call_sid", callSID),
			zap.String("recording_sid", recordingSID),
			zap.Error(err))
		writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Base().Error("failed to encode response", zap.Error(err))
	}
}
