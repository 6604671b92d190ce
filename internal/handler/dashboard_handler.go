package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/vedahq/veda-call-service/internal/domain"
	"github.com/vedahq/veda-call-service/internal/repository"
	"github.com/vedahq/veda-call-service/internal/storage"
	"github.com/vedahq/veda-call-service/pkg/logger"
	"go.uber.org/zap"
)

const playbackURLTTL = time.Hour

// DashboardHandler serves the CRUD API the dashboard UI consumes: loved
// ones, scheduled calls, the question bank, recordings and call logs.
// Authentication happens upstream; the authenticated user id arrives in
// the X-User-ID header.
type DashboardHandler struct {
	repos repository.RepositoryManager
	store storage.Store
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(repos repository.RepositoryManager, store storage.Store) *DashboardHandler {
	return &DashboardHandler{repos: repos, store: store}
}

// SetupDashboardRoutes registers the dashboard API routes
func (h *DashboardHandler) SetupDashboardRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/loved-ones", h.HandleCreateLovedOne).Methods("POST")
	api.HandleFunc("/loved-ones", h.HandleListLovedOnes).Methods("GET")
	api.HandleFunc("/loved-ones/{id}", h.HandleGetLovedOne).Methods("GET")
	api.HandleFunc("/loved-ones/{id}", h.HandleUpdateLovedOne).Methods("PUT")
	api.HandleFunc("/loved-ones/{id}", h.HandleDeleteLovedOne).Methods("DELETE")
	api.HandleFunc("/loved-ones/{id}/images/{slot}", h.HandleUploadProfileImage).Methods("POST")

	api.HandleFunc("/calls", h.HandleScheduleCall).Methods("POST")
	api.HandleFunc("/calls", h.HandleListCalls).Methods("GET")
	api.HandleFunc("/calls/{id}/cancel", h.HandleCancelCall).Methods("POST")
	api.HandleFunc("/calls/{id}/logs", h.HandleListCallLogs).Methods("GET")

	api.HandleFunc("/questions", h.HandleListQuestions).Methods("GET")

	api.HandleFunc("/recordings", h.HandleListRecordings).Methods("GET")
	api.HandleFunc("/recordings/{id}/url", h.HandleRecordingPlaybackURL).Methods("GET")

	logger.Base().Info("dashboard routes registered")
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// LovedOneRequest is the create/update payload for a loved one
type LovedOneRequest struct {
	Name             string   `json:"name"`
	Relationship     string   `json:"relationship"`
	Age              *int     `json:"age"`
	Phone            string   `json:"phone"`
	Notes            string   `json:"notes"`
	FavoriteThings   []string `json:"favorite_things"`
	PersonalityNotes string   `json:"personality_notes"`
}

// HandleCreateLovedOne handles POST /api/loved-ones
func (h *DashboardHandler) HandleCreateLovedOne(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return
	}

	var req LovedOneRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Phone == "" {
		http.Error(w, "name and phone are required", http.StatusBadRequest)
		return
	}

	lovedOne := &domain.LovedOne{
		UserID:           uid,
		Name:             req.Name,
		Relationship:     req.Relationship,
		Age:              req.Age,
		Phone:            req.Phone,
		Notes:            req.Notes,
		FavoriteThings:   req.FavoriteThings,
		PersonalityNotes: req.PersonalityNotes,
	}
	if err := h.repos.LovedOne().Create(r.Context(), lovedOne); err != nil {
		logger.Base().Error("failed to create loved one", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, lovedOne)
}

// HandleListLovedOnes handles GET /api/loved-ones
func (h *DashboardHandler) HandleListLovedOnes(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return
	}

	lovedOnes, err := h.repos.LovedOne().ListByUser(r.Context(), uid)
	if err != nil {
		logger.Base().Error("failed to list loved ones", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, lovedOnes)
}

// HandleGetLovedOne handles GET /api/loved-ones/{id}
func (h *DashboardHandler) HandleGetLovedOne(w http.ResponseWriter, r *http.Request) {
	lovedOne, ok := h.loadOwnedLovedOne(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lovedOne)
}

// HandleUpdateLovedOne handles PUT /api/loved-ones/{id}
func (h *DashboardHandler) HandleUpdateLovedOne(w http.ResponseWriter, r *http.Request) {
	lovedOne, ok := h.loadOwnedLovedOne(w, r)
	if !ok {
		return
	}

	var req LovedOneRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Phone == "" {
		http.Error(w, "name and phone are required", http.StatusBadRequest)
		return
	}

	lovedOne.Name = req.Name
	lovedOne.Relationship = req.Relationship
	lovedOne.Age = req.Age
	lovedOne.Phone = req.Phone
	lovedOne.Notes = req.Notes
	lovedOne.FavoriteThings = req.FavoriteThings
	lovedOne.PersonalityNotes = req.PersonalityNotes

	if err := h.repos.LovedOne().Update(r.Context(), lovedOne); err != nil {
		logger.Base().Error("failed to update loved one", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, lovedOne)
}

// HandleDeleteLovedOne handles DELETE /api/loved-ones/{id}
func (h *DashboardHandler) HandleDeleteLovedOne(w http.ResponseWriter, r *http.Request) {
	lovedOne, ok := h.loadOwnedLovedOne(w, r)
	if !ok {
		return
	}

	if err := h.repos.LovedOne().Delete(r.Context(), lovedOne.ID); err != nil {
		logger.Base().Error("failed to delete loved one", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleUploadProfileImage handles POST /api/loved-ones/{id}/images/{slot}
func (h *DashboardHandler) HandleUploadProfileImage(w http.ResponseWriter, r *http.Request) {
	lovedOne, ok := h.loadOwnedLovedOne(w, r)
	if !ok {
		return
	}

	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil || (slot != 1 && slot != 2) {
		http.Error(w, "image slot must be 1 or 2", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil || len(content) == 0 {
		http.Error(w, "image body is required", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	ext := extensionForContentType(contentType)

	objectPath := storage.ProfileImageObjectPath(lovedOne.UserID, lovedOne.ID, slot, ext)
	if _, err := h.store.Put(r.Context(), objectPath, contentType, content); err != nil {
		logger.Base().Error("failed to upload profile image", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	if err := h.repos.LovedOne().SetProfileImage(r.Context(), lovedOne.ID, slot, objectPath); err != nil {
		logger.Base().Error("failed to persist profile image path", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "storage_path": objectPath})
}

// ScheduleCallRequest is the payload for scheduling a call
type ScheduleCallRequest struct {
	LovedOneID    string   `json:"loved_one_id"`
	ScheduledDate string   `json:"scheduled_date"` // RFC 3339
	QuestionIDs   []string `json:"question_ids"`
	MaxRetries    int      `json:"max_retries"`
	Notes         string   `json:"notes"`
}

// HandleScheduleCall handles POST /api/calls
func (h *DashboardHandler) HandleScheduleCall(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return
	}

	var req ScheduleCallRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	scheduledDate, err := time.Parse(time.RFC3339, req.ScheduledDate)
	if err != nil {
		http.Error(w, "scheduled_date must be RFC 3339", http.StatusBadRequest)
		return
	}

	lovedOne, err := h.repos.LovedOne().GetByID(r.Context(), req.LovedOneID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return
	}
	if lovedOne.UserID != uid {
		http.Error(w, "loved one does not belong to user", http.StatusForbidden)
		return
	}

	call := &domain.ScheduledCall{
		UserID:        uid,
		LovedOneID:    req.LovedOneID,
		ScheduledDate: scheduledDate,
		MaxRetries:    req.MaxRetries,
		Notes:         req.Notes,
	}
	if err := h.repos.ScheduledCall().Create(r.Context(), call, req.QuestionIDs); err != nil {
		logger.Base().Error("failed to schedule call", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, call)
}

// CallListItem is a scheduled call with its loved one's name, the shape
// the dashboard call list renders.
type CallListItem struct {
	domain.ScheduledCall
	LovedOneName string `json:"loved_one_name"`
}

// HandleListCalls handles GET /api/calls
func (h *DashboardHandler) HandleListCalls(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return
	}

	calls, err := h.repos.ScheduledCall().ListByUser(r.Context(), uid)
	if err != nil {
		logger.Base().Error("failed to list calls", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	lovedOnes, err := h.repos.LovedOne().ListByUser(r.Context(), uid)
	if err != nil {
		logger.Base().Error("failed to list loved ones for call list", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	nameByID := make(map[string]string, len(lovedOnes))
	for _, lovedOne := range lovedOnes {
		nameByID[lovedOne.ID] = lovedOne.Name
	}

	items := make([]CallListItem, 0, len(calls))
	for _, call := range calls {
		items = append(items, CallListItem{
			ScheduledCall: *call,
			LovedOneName:  nameByID[call.LovedOneID],
		})
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleCancelCall handles POST /api/calls/{id}/cancel
func (h *DashboardHandler) HandleCancelCall(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadOwnedCall(w, r)
	if !ok {
		return
	}

	if err := h.repos.ScheduledCall().Cancel(r.Context(), call.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			// Not cancellable: the call already left scheduled.
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleListCallLogs handles GET /api/calls/{id}/logs
func (h *DashboardHandler) HandleListCallLogs(w http.ResponseWriter, r *http.Request) {
	call, ok := h.loadOwnedCall(w, r)
	if !ok {
		return
	}

	logs, err := h.repos.CallLog().ListByCall(r.Context(), call.ID)
	if err != nil {
		logger.Base().Error("failed to list call logs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

// HandleListQuestions handles GET /api/questions
func (h *DashboardHandler) HandleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.repos.Question().List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		logger.Base().Error("failed to list questions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, questions)
}

// HandleListRecordings handles GET /api/recordings
func (h *DashboardHandler) HandleListRecordings(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return
	}

	recordings, err := h.repos.Recording().ListByUser(r.Context(), uid)
	if err != nil {
		logger.Base().Error("failed to list recordings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, recordings)
}

// HandleRecordingPlaybackURL handles GET /api/recordings/{id}/url
func (h *DashboardHandler) HandleRecordingPlaybackURL(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return
	}

	recording, err := h.repos.Recording().GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return
	}
	if recording.UserID != uid {
		http.Error(w, "recording does not belong to user", http.StatusForbidden)
		return
	}

	url, err := h.store.PlaybackURL(r.Context(), recording.StoragePath, playbackURLTTL)
	if err != nil {
		logger.Base().Error("failed to build playback url", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"url": url})
}

func (h *DashboardHandler) loadOwnedLovedOne(w http.ResponseWriter, r *http.Request) (*domain.LovedOne, bool) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return nil, false
	}

	lovedOne, err := h.repos.LovedOne().GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	if lovedOne.UserID != uid {
		http.Error(w, "loved one does not belong to user", http.StatusForbidden)
		return nil, false
	}
	return lovedOne, true
}

func (h *DashboardHandler) loadOwnedCall(w http.ResponseWriter, r *http.Request) (*domain.ScheduledCall, bool) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "X-User-ID is required", http.StatusBadRequest)
		return nil, false
	}

	call, err := h.repos.ScheduledCall().GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	if call.UserID != uid {
		http.Error(w, "call does not belong to user", http.StatusForbidden)
		return nil, false
	}
	return call, true
}

// decodeJSONBody decodes a JSON request body, writing a 400 on failure
func decodeJSONBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ""
	}
}
