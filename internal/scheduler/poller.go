package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/config"
	"github.com/vedahq/veda-call-service/internal/repository"
	"github.com/vedahq/veda-call-service/internal/services/pipeline"
	"github.com/vedahq/veda-call-service/pkg/logger"
	redissvc "github.com/vedahq/veda-call-service/pkg/redis"
	"go.uber.org/zap"
)

const pollerLeaseKey = "veda:call-poller:lease"

// Poller periodically selects due scheduled calls and dispatches each to
// the initiator. One call's dispatch failure never aborts the pass; it is
// recorded on that call's retry budget and the loop moves on.
type Poller struct {
	cfg        *config.Config
	calls      repository.ScheduledCallRepository
	dispatcher Dispatcher
	pipeline   *pipeline.Service
	redis      redissvc.RedisServiceInterface // optional; nil runs unlocked
	instanceID string

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. redis may be nil for single-instance setups.
func NewPoller(cfg *config.Config, calls repository.ScheduledCallRepository, dispatcher Dispatcher, pipelineSvc *pipeline.Service, redis redissvc.RedisServiceInterface) *Poller {
	return &Poller{
		cfg:        cfg,
		calls:      calls,
		dispatcher: dispatcher,
		pipeline:   pipelineSvc,
		redis:      redis,
		instanceID: uuid.New().String(),
		done:       make(chan struct{}),
	}
}

// Start launches the polling loop. Returns false when already running.
func (p *Poller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running.Store(true)

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()

		logger.Base().Info("call poller started",
			zap.Duration("interval", p.cfg.PollInterval),
			zap.Duration("window", p.cfg.DispatchWindow))

		p.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				logger.Base().Info("call poller stopping")
				return
			case <-ticker.C:
				p.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop halts the polling loop and waits for the current pass to finish.
func (p *Poller) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return false
	}

	p.cancel()
	<-p.done
	p.running.Store(false)

	logger.Base().Info("call poller stopped")
	return true
}

// IsRunning reports whether the loop is active.
func (p *Poller) IsRunning() bool {
	return p.running.Load()
}

func (p *Poller) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Base().Error("poller tick panic recovered", zap.Any("panic", r))
		}
	}()

	if !p.acquireLease(ctx) {
		return
	}
	// Release must go through even when shutdown cancels ctx mid-pass.
	defer p.releaseLease(context.WithoutCancel(ctx))

	dispatched, failed := p.RunOnce(ctx)
	if dispatched+failed > 0 {
		logger.Base().Info("poller pass completed",
			zap.Int("dispatched", dispatched),
			zap.Int("failed", failed))
	}

	if p.pipeline != nil {
		if _, err := p.pipeline.ReconcileStuck(ctx); err != nil {
			logger.Base().Error("reconciliation sweep failed", zap.Error(err))
		}
	}
}

// RunOnce executes one poller pass: select due calls, dispatch each,
// record failures. Returns dispatched and failed counts.
func (p *Poller) RunOnce(ctx context.Context) (dispatched, failed int) {
	now := time.Now()
	due, err := p.calls.FindDue(ctx, now, p.cfg.DispatchWindow)
	if err != nil {
		logger.Base().Error("failed to select due calls", zap.Error(err))
		return 0, 0
	}

	if len(due) > 0 {
		logger.Base().Info("found calls to initiate", zap.Int("count", len(due)))
	}

	for _, call := range due {
		if ctx.Err() != nil {
			return dispatched, failed
		}
		if err := p.dispatcher.Dispatch(ctx, call.ID); err != nil {
			failed++
			logger.Base().Error("call dispatch failed",
				zap.String("call_id", call.ID),
				zap.Error(err))
			if incErr := p.calls.IncrementRetry(ctx, call.ID, err.Error()); incErr != nil {
				logger.Base().Error("failed to record dispatch failure",
					zap.String("call_id", call.ID),
					zap.Error(incErr))
			}
			continue
		}
		dispatched++
	}

	return dispatched, failed
}

// acquireLease serializes passes across instances. Without redis the
// poller runs unlocked and the initiator's status-guarded claim is the
// only double-dispatch protection.
func (p *Poller) acquireLease(ctx context.Context) bool {
	if p.redis == nil {
		return true
	}
	ok, err := p.redis.AcquireLock(ctx, pollerLeaseKey, p.instanceID, p.cfg.PollInterval)
	if err != nil {
		logger.Base().Warn("poller lease acquisition failed, running unlocked", zap.Error(err))
		return true
	}
	if !ok {
		logger.Base().Debug("poller lease held elsewhere, skipping pass")
	}
	return ok
}

func (p *Poller) releaseLease(ctx context.Context) {
	if p.redis == nil {
		return
	}
	if err := p.redis.ReleaseLock(ctx, pollerLeaseKey, p.instanceID); err != nil {
		logger.Base().Warn("poller lease release failed", zap.Error(err))
	}
}
