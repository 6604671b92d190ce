package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedahq/veda-call-service/internal/config"
	"github.com/vedahq/veda-call-service/internal/domain"
	"github.com/vedahq/veda-call-service/internal/repository/repositorytest"
	redissvc "github.com/vedahq/veda-call-service/pkg/redis"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]error
	dispatch func(callID string) error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{failFor: make(map[string]error)}
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, callID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, callID)
	if d.dispatch != nil {
		return d.dispatch(callID)
	}
	if err, ok := d.failFor[callID]; ok {
		return err
	}
	return nil
}

func (d *fakeDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func pollerConfig() *config.Config {
	return &config.Config{
		PollInterval:   50 * time.Millisecond,
		DispatchWindow: 5 * time.Minute,
	}
}

func seedCall(repos *repositorytest.MemoryManager, id string, scheduledAt time.Time, status domain.CallStatus, retryCount int) {
	repos.SeedCall(&domain.ScheduledCall{
		ID:            id,
		UserID:        "user-1",
		LovedOneID:    "lo-1",
		ScheduledDate: scheduledAt,
		CallStatus:    status,
		RetryCount:    retryCount,
		MaxRetries:    3,
	})
}

func TestRunOnceDispatchesDueCalls(t *testing.T) {
	repos := repositorytest.NewMemoryManager()
	dispatcher := newFakeDispatcher()
	now := time.Now()

	seedCall(repos, "due-now", now, domain.CallStatusScheduled, 0)
	seedCall(repos, "due-soon", now.Add(3*time.Minute), domain.CallStatusScheduled, 0)
	seedCall(repos, "too-far", now.Add(20*time.Minute), domain.CallStatusScheduled, 0)
	seedCall(repos, "already-ringing", now, domain.CallStatusRinging, 0)
	seedCall(repos, "retries-exhausted", now, domain.CallStatusScheduled, 3)

	p := NewPoller(pollerConfig(), repos.ScheduledCall(), dispatcher, nil, nil)
	dispatched, failed := p.RunOnce(context.Background())

	assert.Equal(t, 2, dispatched)
	assert.Equal(t, 0, failed)
	assert.ElementsMatch(t, []string{"due-now", "due-soon"}, dispatcher.dispatched())
}

func TestRunOnceDispatchFailureIsIsolated(t *testing.T) {
	repos := repositorytest.NewMemoryManager()
	dispatcher := newFakeDispatcher()
	dispatcher.failFor["bad"] = errors.New("initiator returned 500 Internal Server Error")
	now := time.Now()

	seedCall(repos, "bad", now.Add(-time.Minute), domain.CallStatusScheduled, 0)
	seedCall(repos, "good", now, domain.CallStatusScheduled, 0)

	p := NewPoller(pollerConfig(), repos.ScheduledCall(), dispatcher, nil, nil)
	dispatched, failed := p.RunOnce(context.Background())

	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 1, failed)

	// The failure lands on the bad call's retry budget only.
	bad := repos.Call("bad")
	assert.Equal(t, 1, bad.RetryCount)
	assert.Contains(t, bad.FailureReason, "500")
	assert.Equal(t, 0, repos.Call("good").RetryCount)
}

func TestRunOnceRetryCapStopsDispatch(t *testing.T) {
	repos := repositorytest.NewMemoryManager()
	dispatcher := newFakeDispatcher()
	dispatcher.dispatch = func(callID string) error { return errors.New("down") }
	now := time.Now()
	seedCall(repos, "flaky", now, domain.CallStatusScheduled, 0)

	p := NewPoller(pollerConfig(), repos.ScheduledCall(), dispatcher, nil, nil)
	for i := 0; i < 5; i++ {
		p.RunOnce(context.Background())
	}

	// Three failures exhaust the budget; later passes skip the call.
	assert.Len(t, dispatcher.dispatched(), 3)
	assert.Equal(t, 3, repos.Call("flaky").RetryCount)
}

func TestPollerStartStop(t *testing.T) {
	repos := repositorytest.NewMemoryManager()
	dispatcher := newFakeDispatcher()
	seedCall(repos, "due", time.Now(), domain.CallStatusScheduled, 0)

	p := NewPoller(pollerConfig(), repos.ScheduledCall(), dispatcher, nil, nil)

	require.True(t, p.Start())
	assert.False(t, p.Start(), "second start must be rejected")
	assert.True(t, p.IsRunning())

	// The first pass runs immediately on start.
	require.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, p.Stop())
	assert.False(t, p.Stop(), "second stop must be rejected")
	assert.False(t, p.IsRunning())
}

func TestPollerLeaseSkipsPassWhenHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redisSvc := redissvc.NewRedisServiceWithClient(client)

	repos := repositorytest.NewMemoryManager()
	dispatcher := newFakeDispatcher()
	seedCall(repos, "due", time.Now(), domain.CallStatusScheduled, 0)

	// Another instance holds the lease for the whole test.
	require.NoError(t, mr.Set("veda:call-poller:lease", "other-instance"))

	p := NewPoller(pollerConfig(), repos.ScheduledCall(), dispatcher, nil, redisSvc)
	require.True(t, p.Start())
	defer p.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, dispatcher.dispatched(), "pass must be skipped while the lease is held elsewhere")
}

func TestPollerLeaseReleasedAfterPass(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redisSvc := redissvc.NewRedisServiceWithClient(client)

	repos := repositorytest.NewMemoryManager()
	dispatcher := newFakeDispatcher()
	seedCall(repos, "due", time.Now(), domain.CallStatusScheduled, 0)

	p := NewPoller(pollerConfig(), repos.ScheduledCall(), dispatcher, nil, redisSvc)
	require.True(t, p.Start())

	require.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	assert.False(t, mr.Exists("veda:call-poller:lease"), "lease must be released after the pass")
}
