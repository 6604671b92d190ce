package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vedahq/veda-call-service/internal/config"
	"github.com/vedahq/veda-call-service/internal/repository"
	"github.com/vedahq/veda-call-service/internal/scheduler"
	"github.com/vedahq/veda-call-service/internal/services/pipeline"
	"github.com/vedahq/veda-call-service/internal/storage"
	"github.com/vedahq/veda-call-service/internal/telephony"
	"github.com/vedahq/veda-call-service/pkg/logger"
	redissvc "github.com/vedahq/veda-call-service/pkg/redis"
	"go.uber.org/zap"
)

// HandlerManager wires all services and handlers and registers their routes.
type HandlerManager struct {
	config           *config.Config
	repoManager      repository.RepositoryManager
	store            storage.Store
	pipelineService  *pipeline.Service
	pipelineHandler  *PipelineHandler
	dashboardHandler *DashboardHandler
	poller           *scheduler.Poller
	redisEnabled     bool
}

// NewHandlerManager creates and initializes all services and handlers
func NewHandlerManager(cfg *config.Config) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	store, err := storage.New(context.Background(), storage.StorageType(cfg.StorageType), cfg.StoragePath)
	if err != nil {
		logger.Base().Error("failed to initialize storage", zap.Error(err))
		return nil, err
	}

	// Redis is optional: without it the poller runs unlocked and the
	// initiator's status-guarded claim is the only dispatch protection.
	var redisSvc redissvc.RedisServiceInterface
	if cfg.RedisHost != "" {
		svc, err := redissvc.NewRedisService(&redissvc.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis, poller runs unlocked", zap.Error(err))
		} else {
			redisSvc = svc
		}
	}

	twilioClient := telephony.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.DownloadHTTPTimeout)

	pipelineService := pipeline.NewService(cfg, repoManager, twilioClient, twilioClient, store)

	dispatcher := scheduler.NewHTTPDispatcher(cfg.BaseURL, cfg.DispatchHTTPTimeout)
	poller := scheduler.NewPoller(cfg, repoManager.ScheduledCall(), dispatcher, pipelineService, redisSvc)

	return &HandlerManager{
		config:           cfg,
		repoManager:      repoManager,
		store:            store,
		pipelineService:  pipelineService,
		pipelineHandler:  NewPipelineHandler(pipelineService),
		dashboardHandler: NewDashboardHandler(repoManager, store),
		poller:           poller,
		redisEnabled:     redisSvc != nil,
	}, nil
}

// SetupAllRoutes registers every route on the router
func (m *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(LoggingMiddleware)
	if m.config.EnableCORS {
		router.Use(CORSMiddleware)
	}

	router.HandleFunc("/health", m.HandleHealth).Methods("GET")

	m.pipelineHandler.SetupPipelineRoutes(router)
	m.dashboardHandler.SetupDashboardRoutes(router)
}

// StartPoller launches the schedule poller loop
func (m *HandlerManager) StartPoller() {
	m.poller.Start()
}

// StopPoller halts the schedule poller loop
func (m *HandlerManager) StopPoller() {
	m.poller.Stop()
}

// HandleHealth handles GET /health
func (m *HandlerManager) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := m.repoManager.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"poller_running": m.poller.IsRunning(),
		"storage":        m.config.StorageType,
		"redis":          m.redisEnabled,
	})
}
