package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vedahq/veda-call-service/internal/config"
	"github.com/vedahq/veda-call-service/internal/domain"
	"github.com/vedahq/veda-call-service/internal/repository"
	"github.com/vedahq/veda-call-service/internal/storage"
	"github.com/vedahq/veda-call-service/internal/telephony"
	"github.com/vedahq/veda-call-service/pkg/logger"
	"go.uber.org/zap"
)

// Service implements the call pipeline: initiation, the voice webhook,
// provider status updates and recording archival. Each method is one
// stateless invocation; all state lives in the repositories.
type Service struct {
	cfg        *config.Config
	repos      repository.RepositoryManager
	dialer     telephony.Dialer
	downloader telephony.RecordingDownloader
	store      storage.Store
}

// NewService wires the pipeline service.
func NewService(cfg *config.Config, repos repository.RepositoryManager, dialer telephony.Dialer, downloader telephony.RecordingDownloader, store storage.Store) *Service {
	return &Service{
		cfg:        cfg,
		repos:      repos,
		dialer:     dialer,
		downloader: downloader,
		store:      store,
	}
}

// Initiate claims a scheduled call and places the outbound request with the
// provider. Returns the provider call SID. A call that is no longer in
// scheduled returns ErrAlreadyClaimed; a provider rejection returns
// ErrProviderFailure and leaves the row in initiating for the sweep.
func (s *Service) Initiate(ctx context.Context, callID string) (string, error) {
	callCtx, err := s.repos.ScheduledCall().GetContext(ctx, callID)
	if err != nil {
		return "", err
	}

	claimed, err := s.repos.ScheduledCall().ClaimForInitiation(ctx, callID, time.Now())
	if err != nil {
		return "", err
	}
	if !claimed {
		logger.Base().Info("call no longer in scheduled, skipping initiation",
			zap.String("call_id", callID),
			zap.String("status", string(callCtx.Call.CallStatus)))
		return "", ErrAlreadyClaimed
	}

	if err := s.repos.CallLog().Append(ctx, callID, domain.EventCallInitiated, domain.JSONB{
		"phone": callCtx.LovedOne.Phone,
	}); err != nil {
		logger.Base().Warn("failed to append call_initiated log", zap.String("call_id", callID), zap.Error(err))
	}

	callSID, err := s.dialer.PlaceCall(ctx, telephony.PlaceCallParams{
		To:                   callCtx.LovedOne.Phone,
		From:                 s.cfg.TwilioPhoneNumber,
		VoiceURL:             s.webhookURL("/webhooks/voice", callID),
		StatusCallbackURL:    s.cfg.BaseURL + "/webhooks/status",
		RecordingCallbackURL: s.cfg.BaseURL + "/webhooks/recording",
		RingTimeoutSeconds:   s.cfg.RingTimeoutSeconds,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	if err := s.repos.ScheduledCall().SetDispatched(ctx, callID, callSID); err != nil {
		return "", err
	}

	return callSID, nil
}

// VoiceAnswer handles the provider's answer webhook: marks the call
// in progress and returns the TwiML that bridges audio to the AI media
// stream. Callers fall back to telephony.RenderFallback on error.
func (s *Service) VoiceAnswer(ctx context.Context, callID string) (string, error) {
	callCtx, err := s.repos.ScheduledCall().GetContext(ctx, callID)
	if err != nil {
		return "", err
	}

	if err := s.repos.ScheduledCall().MarkAnswered(ctx, callID, time.Now()); err != nil {
		return "", err
	}

	if err := s.repos.CallLog().Append(ctx, callID, domain.EventCallAnswered, nil); err != nil {
		logger.Base().Warn("failed to append call_answered log", zap.String("call_id", callID), zap.Error(err))
	}

	favoriteThings := []string(callCtx.LovedOne.FavoriteThings)
	if favoriteThings == nil {
		favoriteThings = []string{}
	}
	favoriteThingsJSON, err := json.Marshal(favoriteThings)
	if err != nil {
		return "", fmt.Errorf("encode favorite things: %w", err)
	}

	return telephony.RenderConnectStream(s.mediaStreamURL(callID), []telephony.StreamParameter{
		{Name: "lovedOneName", Value: callCtx.LovedOne.Name},
		{Name: "favoriteThings", Value: string(favoriteThingsJSON)},
		{Name: "personalityNotes", Value: callCtx.LovedOne.PersonalityNotes},
		{Name: "questionsCount", Value: strconv.Itoa(len(callCtx.Questions))},
	})
}

// ApplyStatus handles one provider status callback. A SID with no matching
// row is benign: callbacks can arrive before the SID lands in the database.
func (s *Service) ApplyStatus(ctx context.Context, callSID string, providerStatus string) error {
	status := MapProviderStatus(providerStatus)

	call, updated, err := s.repos.ScheduledCall().ApplyProviderStatus(ctx, callSID, status)
	if err != nil {
		return err
	}
	if call == nil {
		logger.Base().Info("status callback for unknown call sid, ignoring",
			zap.String("call_sid", callSID),
			zap.String("provider_status", providerStatus))
		return nil
	}
	if !updated {
		logger.Base().Info("status transition dropped by guard",
			zap.String("call_id", call.ID),
			zap.String("from", string(call.CallStatus)),
			zap.String("to", string(status)))
	}

	if err := s.repos.CallLog().Append(ctx, call.ID, StatusEventType(providerStatus), domain.JSONB{
		"twilio_status": providerStatus,
	}); err != nil {
		logger.Base().Warn("failed to append status log", zap.String("call_id", call.ID), zap.Error(err))
	}

	return nil
}

// RecordingEvent is the provider's recording-finished callback payload.
type RecordingEvent struct {
	RecordingSID    string
	RecordingURL    string
	CallSID         string
	DurationSeconds int
}

// ProcessRecording archives a finished call recording: download from the
// provider, upload to object storage, insert the recording row, finish the
// call and append the audit entry. Unlike the status callback, an unknown
// call SID here is an error.
func (s *Service) ProcessRecording(ctx context.Context, event RecordingEvent) (*domain.Recording, error) {
	call, err := s.repos.ScheduledCall().GetByCallSID(ctx, event.CallSID)
	if err != nil {
		return nil, err
	}

	lovedOne, err := s.repos.LovedOne().GetByID(ctx, call.LovedOneID)
	if err != nil {
		return nil, err
	}

	audio, err := s.downloader.DownloadRecording(ctx, event.RecordingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailure, err)
	}

	objectPath := storage.RecordingObjectPath(call.UserID, call.ID, event.RecordingSID)
	size, err := s.store.Put(ctx, objectPath, "audio/mpeg", audio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailure, err)
	}

	recording := &domain.Recording{
		UserID:           call.UserID,
		LovedOneID:       call.LovedOneID,
		CallID:           call.ID,
		Title:            recordingTitle(lovedOne.Name, call.CallStartedAt),
		RecordingSID:     event.RecordingSID,
		RecordingURL:     event.RecordingURL,
		StoragePath:      objectPath,
		DurationSeconds:  event.DurationSeconds,
		FileSizeBytes:    size,
		Format:           "mp3",
		ProcessingStatus: domain.RecordingProcessingCompleted,
	}
	if err := s.repos.Recording().Create(ctx, recording); err != nil {
		return nil, err
	}

	if err := s.repos.ScheduledCall().Complete(ctx, call.ID, time.Now(), event.DurationSeconds); err != nil {
		return nil, err
	}

	if err := s.repos.CallLog().Append(ctx, call.ID, domain.EventRecordingCompleted, domain.JSONB{
		"recording_sid": event.RecordingSID,
		"duration":      event.DurationSeconds,
		"size":          size,
	}); err != nil {
		logger.Base().Warn("failed to append recording_completed log", zap.String("call_id", call.ID), zap.Error(err))
	}

	return recording, nil
}

// ReconcileStuck fails calls sitting in initiating past the configured
// threshold; a provider rejection after the optimistic claim leaves rows
// there with no callback ever arriving.
func (s *Service) ReconcileStuck(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.StuckCallThreshold)
	swept, err := s.repos.ScheduledCall().FailStuckInitiating(ctx, cutoff, "stuck in initiating past threshold")
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		logger.Base().Warn("swept calls stuck in initiating", zap.Int64("count", swept))
	}
	return swept, nil
}

func (s *Service) webhookURL(path, callID string) string {
	return s.cfg.BaseURL + path + "?callId=" + url.QueryEscape(callID)
}

// mediaStreamURL points the provider's bidirectional stream at the external
// AI conversation service, derived from the public base URL.
func (s *Service) mediaStreamURL(callID string) string {
	host := strings.TrimPrefix(s.cfg.BaseURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	return "wss://" + host + "/media-stream?callId=" + url.QueryEscape(callID)
}

func recordingTitle(lovedOneName string, startedAt *time.Time) string {
	when := time.Now()
	if startedAt != nil {
		when = *startedAt
	}
	return fmt.Sprintf("Call with %s - %s", lovedOneName, when.Format("1/2/2006"))
}
