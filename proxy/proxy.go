// proxy/proxy.go
package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
	"github.com/dev-mohitbeniwal/echo/accessproxy/service"
	"github.com/dev-mohitbeniwal/echo/accessproxy/util"
)

const (
	// TTL is how long a fetched response is served from the cache.
	TTL = 10 * time.Second
	// SweepInterval is the period of the background stale-entry sweep.
	SweepInterval = TTL
)

var validation = util.NewValidationUtil()

// Proxy gates requests by the actor's role and caches handler responses for TTL.
// All cache access goes through mu.
type Proxy struct {
	actor   model.Actor
	handler service.IRequestService

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	mu    sync.Mutex
	cache map[string]model.CacheEntry

	eventBus *util.EventBus
	metrics  *Metrics

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Proxy built by New.
type Option func(*Proxy)

// WithEventBus publishes one event per outcome and per sweep on eb.
func WithEventBus(eb *util.EventBus) Option {
	return func(p *Proxy) { p.eventBus = eb }
}

// WithMetrics records outcomes, sweeps and cache size on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Proxy) { p.metrics = m }
}

// WithClock replaces time.Now for freshness checks and sweeps.
func WithClock(now func() time.Time) Option {
	return func(p *Proxy) { p.now = now }
}

// New validates actor and starts the background sweep. Call Close to stop it.
func New(actor model.Actor, handler service.IRequestService, opts ...Option) (*Proxy, error) {
	if err := validation.ValidateActor(actor); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("proxy for %s: nil request handler", actor.Name)
	}

	p := &Proxy{
		actor:         actor,
		handler:       handler,
		ttl:           TTL,
		sweepInterval: SweepInterval,
		now:           time.Now,
		cache:         make(map[string]model.CacheEntry),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.sweepLoop()

	logger.Info("Proxy started",
		zap.String("actor", actor.Name),
		zap.Stringer("role", actor.Role),
		zap.Duration("ttl", p.ttl))
	return p, nil
}

// Actor returns the identity the proxy acts for.
func (p *Proxy) Actor() model.Actor {
	return p.actor
}

// Request answers request for the proxy's actor. Guests are denied without touching
// the cache or the handler; everyone else gets a fresh cached response or a new fetch.
func (p *Proxy) Request(ctx context.Context, request string) model.Outcome {
	logger.Debug("Checking access",
		zap.String("actor", p.actor.Name),
		zap.Stringer("role", p.actor.Role))

	if !p.actor.CanRequest() {
		outcome := model.Outcome{Kind: model.OutcomeDenied, Request: request, Actor: p.actor}
		logger.Warn("Access denied",
			zap.String("actor", p.actor.Name),
			zap.Stringer("role", p.actor.Role),
			zap.String("request", request))
		p.record(ctx, util.EventAccessDenied, outcome, -1)
		return outcome
	}

	outcome, size := p.lookupOrFetch(ctx, request)

	switch outcome.Kind {
	case model.OutcomeHit:
		logger.Info("Serving cached result",
			zap.String("request", request),
			zap.String("response", outcome.Response))
		p.record(ctx, util.EventCacheHit, outcome, size)
	case model.OutcomeFetched:
		logger.Info("Cache missing or stale, fetched from handler",
			zap.String("request", request))
		p.record(ctx, util.EventFetched, outcome, size)
	}
	return outcome
}

// lookupOrFetch holds the lock across lookup, fetch and store so two concurrent misses
// for the same request cannot both reach the handler.
func (p *Proxy) lookupOrFetch(ctx context.Context, request string) (model.Outcome, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	outcome := model.Outcome{Request: request, Actor: p.actor}

	if entry, ok := p.cache[request]; ok && !entry.IsStale(p.now(), p.ttl) {
		outcome.Kind = model.OutcomeHit
		outcome.Response = entry.Response
		return outcome, len(p.cache)
	}

	response := p.handler.Handle(ctx, request)
	p.cache[request] = model.CacheEntry{Response: response, CachedAt: p.now()}

	outcome.Kind = model.OutcomeFetched
	outcome.Response = response
	return outcome, len(p.cache)
}

// Sweep removes every entry whose age is at least TTL and returns how many it removed.
func (p *Proxy) Sweep() int {
	p.mu.Lock()
	now := p.now()
	removed := 0
	for request, entry := range p.cache {
		if entry.IsStale(now, p.ttl) {
			delete(p.cache, request)
			removed++
		}
	}
	size := len(p.cache)
	p.mu.Unlock()

	logger.Info("Cleared stale cache entries",
		zap.String("actor", p.actor.Name),
		zap.Int("removed", removed),
		zap.Int("remaining", size))

	p.metrics.ObserveSweep(p.actor.Name, removed, size)
	if p.eventBus != nil {
		p.eventBus.Publish(context.Background(), util.EventSwept, SweepResult{
			Actor:     p.actor,
			Removed:   removed,
			Remaining: size,
		})
	}
	return removed
}

// SweepResult is the payload of util.EventSwept.
type SweepResult struct {
	Actor     model.Actor
	Removed   int
	Remaining int
}

func (p *Proxy) sweepLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Sweep()
		case <-p.stop:
			return
		}
	}
}

// Close stops the background sweep and waits for it to exit. Safe to call more than once.
// Requests are still answered afterwards; stale entries are then only replaced on fetch.
func (p *Proxy) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
		logger.Info("Proxy stopped", zap.String("actor", p.actor.Name))
	})
	return nil
}

// Len returns the number of cached entries, fresh or stale.
func (p *Proxy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Lookup returns the cached entry for request without affecting its freshness.
func (p *Proxy) Lookup(request string) (model.CacheEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.cache[request]
	return entry, ok
}

func (p *Proxy) record(ctx context.Context, eventType string, outcome model.Outcome, size int) {
	p.metrics.ObserveOutcome(outcome)
	if size >= 0 {
		p.metrics.SetEntries(p.actor.Name, size)
	}
	if p.eventBus != nil {
		p.eventBus.Publish(ctx, eventType, outcome)
	}
}
