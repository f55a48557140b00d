package proxy_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	echo_errors "github.com/dev-mohitbeniwal/echo/accessproxy/errors"
	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
	"github.com/dev-mohitbeniwal/echo/accessproxy/proxy"
	"github.com/dev-mohitbeniwal/echo/accessproxy/service"
	mock_service "github.com/dev-mohitbeniwal/echo/accessproxy/test/mock"
	"github.com/dev-mohitbeniwal/echo/accessproxy/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.July, 7, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	admin = model.Actor{Name: "Admin", Role: model.RoleAdmin}
	user  = model.Actor{Name: "User", Role: model.RoleUser}
	guest = model.Actor{Name: "Guest", Role: model.RoleGuest}
)

func newProxy(t *testing.T, actor model.Actor, clock *fakeClock, opts ...proxy.Option) (*proxy.Proxy, *service.RequestService) {
	t.Helper()
	handler := service.NewRequestService()
	opts = append([]proxy.Option{proxy.WithClock(clock.Now)}, opts...)
	p, err := proxy.New(actor, handler, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, handler
}

func TestProxy_AdminScenario(t *testing.T) {
	clock := newFakeClock()
	p, handler := newProxy(t, admin, clock)
	ctx := context.Background()

	first := p.Request(ctx, "A")
	assert.Equal(t, model.OutcomeFetched, first.Kind)
	assert.Equal(t, "Result for A", first.Response)
	assert.Equal(t, int64(1), handler.Calls())

	second := p.Request(ctx, "A")
	assert.Equal(t, model.OutcomeHit, second.Kind)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, int64(1), handler.Calls())

	clock.Advance(11 * time.Second)

	third := p.Request(ctx, "A")
	assert.Equal(t, model.OutcomeFetched, third.Kind)
	assert.Equal(t, int64(2), handler.Calls())
}

func TestProxy_GuestScenario(t *testing.T) {
	clock := newFakeClock()
	p, handler := newProxy(t, guest, clock)

	outcome := p.Request(context.Background(), "B")

	assert.True(t, outcome.Denied())
	assert.Equal(t, guest, outcome.Actor)
	assert.Empty(t, outcome.Response)
	assert.True(t, errors.Is(outcome.Err(), echo_errors.ErrAccessDenied))
	assert.Equal(t, int64(0), handler.Calls())
	_, cached := p.Lookup("B")
	assert.False(t, cached)
	assert.Equal(t, 0, p.Len())
}

func TestProxy_EntitledRolesNeverDenied(t *testing.T) {
	for _, actor := range []model.Actor{admin, user} {
		t.Run(actor.Role.String(), func(t *testing.T) {
			clock := newFakeClock()
			p, _ := newProxy(t, actor, clock)
			for _, req := range []string{"A", "B", "A", "C"} {
				outcome := p.Request(context.Background(), req)
				assert.False(t, outcome.Denied())
				assert.NoError(t, outcome.Err())
				clock.Advance(4 * time.Second)
			}
		})
	}
}

func TestProxy_GuestAlwaysDenied(t *testing.T) {
	clock := newFakeClock()
	p, handler := newProxy(t, guest, clock)
	for i := 0; i < 5; i++ {
		assert.True(t, p.Request(context.Background(), "A").Denied())
		clock.Advance(ttlPlus(1))
	}
	assert.Equal(t, int64(0), handler.Calls())
}

// ttlPlus returns the TTL plus n seconds.
func ttlPlus(n int) time.Duration {
	return proxy.TTL + time.Duration(n)*time.Second
}

func TestProxy_EntryExactlyTTLOldIsStale(t *testing.T) {
	clock := newFakeClock()
	p, handler := newProxy(t, user, clock)
	ctx := context.Background()

	p.Request(ctx, "A")
	clock.Advance(proxy.TTL - time.Nanosecond)
	assert.Equal(t, model.OutcomeHit, p.Request(ctx, "A").Kind)

	clock.Advance(time.Nanosecond)
	assert.Equal(t, model.OutcomeFetched, p.Request(ctx, "A").Kind)
	assert.Equal(t, int64(2), handler.Calls())
}

func TestProxy_HitDoesNotRefreshTimestamp(t *testing.T) {
	clock := newFakeClock()
	p, handler := newProxy(t, admin, clock)
	ctx := context.Background()

	p.Request(ctx, "A")
	entry, ok := p.Lookup("A")
	require.True(t, ok)

	clock.Advance(5 * time.Second)
	assert.Equal(t, model.OutcomeHit, p.Request(ctx, "A").Kind)
	again, _ := p.Lookup("A")
	assert.True(t, entry.CachedAt.Equal(again.CachedAt))

	clock.Advance(5 * time.Second)
	assert.Equal(t, model.OutcomeFetched, p.Request(ctx, "A").Kind)
	assert.Equal(t, int64(2), handler.Calls())

	refreshed, _ := p.Lookup("A")
	assert.True(t, refreshed.CachedAt.Equal(clock.Now()))
}

func TestProxy_SweepRemovesOnlyStaleEntries(t *testing.T) {
	clock := newFakeClock()
	p, _ := newProxy(t, admin, clock)
	ctx := context.Background()

	p.Request(ctx, "old")
	clock.Advance(6 * time.Second)
	p.Request(ctx, "young")
	clock.Advance(4 * time.Second)

	assert.Equal(t, 1, p.Sweep())
	_, hasOld := p.Lookup("old")
	_, hasYoung := p.Lookup("young")
	assert.False(t, hasOld)
	assert.True(t, hasYoung)

	assert.Equal(t, 0, p.Sweep())
	clock.Advance(6 * time.Second)
	assert.Equal(t, 1, p.Sweep())
	assert.Equal(t, 0, p.Len())
}

func TestProxy_BackgroundSweep(t *testing.T) {
	clock := newFakeClock()
	p, _ := newProxy(t, admin, clock, proxy.WithSweepInterval(5*time.Millisecond))

	p.Request(context.Background(), "A")
	require.Equal(t, 1, p.Len())

	clock.Advance(proxy.TTL)
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestProxy_CloseStopsSweep(t *testing.T) {
	clock := newFakeClock()
	p, _ := newProxy(t, admin, clock, proxy.WithSweepInterval(5*time.Millisecond))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	outcome := p.Request(context.Background(), "A")
	assert.Equal(t, model.OutcomeFetched, outcome.Kind)

	clock.Advance(ttlPlus(1))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, p.Len())
}

func TestProxy_ConcurrentRequestsAndSweeps(t *testing.T) {
	clock := newFakeClock()
	p, handler := newProxy(t, user, clock, proxy.WithSweepInterval(time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				outcome := p.Request(context.Background(), "A")
				assert.Equal(t, "Result for A", outcome.Response)
				if j%10 == 0 {
					p.Sweep()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), handler.Calls())
}

func TestProxy_HandlerCalledOncePerFreshWindow(t *testing.T) {
	handler := new(mock_service.MockRequestService)
	handler.On("Handle", mock.Anything, "A").Return("Result for A").Once()

	clock := newFakeClock()
	p, err := proxy.New(admin, handler, proxy.WithClock(clock.Now))
	require.NoError(t, err)
	defer p.Close()

	p.Request(context.Background(), "A")
	p.Request(context.Background(), "A")
	p.Request(context.Background(), "A")

	handler.AssertExpectations(t)
}

func TestProxy_PublishesEvents(t *testing.T) {
	eb := util.NewEventBus()
	var mu sync.Mutex
	var kinds []string
	collect := func(_ context.Context, e util.Event) error {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Type)
		return nil
	}
	eb.Subscribe(util.EventFetched, collect)
	eb.Subscribe(util.EventCacheHit, collect)
	eb.Subscribe(util.EventAccessDenied, collect)

	var swept proxy.SweepResult
	eb.Subscribe(util.EventSwept, func(_ context.Context, e util.Event) error {
		mu.Lock()
		defer mu.Unlock()
		swept = e.Payload.(proxy.SweepResult)
		return nil
	})

	clock := newFakeClock()
	adminProxy, _ := newProxy(t, admin, clock, proxy.WithEventBus(eb))
	guestProxy, _ := newProxy(t, guest, clock, proxy.WithEventBus(eb))

	adminProxy.Request(context.Background(), "A")
	eb.Wait()
	adminProxy.Request(context.Background(), "A")
	eb.Wait()
	guestProxy.Request(context.Background(), "B")
	eb.Wait()
	clock.Advance(proxy.TTL)
	adminProxy.Sweep()
	eb.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{util.EventFetched, util.EventCacheHit, util.EventAccessDenied}, kinds)
	assert.Equal(t, 1, swept.Removed)
	assert.Equal(t, admin, swept.Actor)
}

func TestProxy_WaitForSweepEventsWhileSweeping(t *testing.T) {
	eb := util.NewEventBus()
	var mu sync.Mutex
	sweeps := 0
	eb.Subscribe(util.EventSwept, func(context.Context, util.Event) error {
		mu.Lock()
		sweeps++
		mu.Unlock()
		return nil
	})

	clock := newFakeClock()
	p, _ := newProxy(t, admin, clock, proxy.WithEventBus(eb), proxy.WithSweepInterval(50*time.Microsecond))

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		eb.Wait()
	}

	require.NoError(t, p.Close())
	eb.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, sweeps, 0)
}

func TestProxy_SweepLogsRemovedCount(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(zap.NewNop()) })

	sweeper := model.Actor{Name: "Sweeper", Role: model.RoleUser}
	clock := newFakeClock()
	p, _ := newProxy(t, sweeper, clock)
	assert.Equal(t, sweeper, p.Actor())

	ctx := context.Background()
	p.Request(ctx, "A")
	p.Request(ctx, "B")
	clock.Advance(proxy.TTL)
	p.Request(ctx, "C")

	require.Equal(t, 2, p.Sweep())

	entries := logs.FilterMessage("Cleared stale cache entries").FilterField(zap.String("actor", "Sweeper")).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["removed"])
	assert.EqualValues(t, 1, fields["remaining"])
}

func TestNew_RejectsInvalidActor(t *testing.T) {
	_, err := proxy.New(model.Actor{Role: model.RoleAdmin}, service.NewRequestService())
	assert.True(t, errors.Is(err, echo_errors.ErrInvalidActorData))

	_, err = proxy.New(model.Actor{Name: "x", Role: model.Role(5)}, service.NewRequestService())
	assert.True(t, errors.Is(err, echo_errors.ErrInvalidActorData))

	_, err = proxy.New(admin, nil)
	assert.Error(t, err)
}
