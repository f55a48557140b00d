// util/event_bus.go

package util

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
)

const (
	EventAccessDenied = "proxy.access_denied"
	EventCacheHit     = "proxy.cache_hit"
	EventFetched      = "proxy.fetched"
	EventSwept        = "proxy.swept"
)

// Event represents an event in the system
type Event struct {
	Type    string
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus fans events out to subscribers on their own goroutines.
type EventBus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
	errorChan   chan error

	// pending counts running handlers; idle is signalled when it drops to zero.
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond
}

// NewEventBus creates a new EventBus
func NewEventBus() *EventBus {
	eb := &EventBus{
		subscribers: make(map[string][]subscription),
		errorChan:   make(chan error, 100),
	}
	eb.idle = sync.NewCond(&eb.pendingMu)
	return eb
}

// Subscribe registers handler for eventType and returns a func that removes it.
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) (unsubscribe func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{id: id, handler: handler})

	return func() { eb.unsubscribe(eventType, id) }
}

func (eb *EventBus) unsubscribe(eventType string, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers without waiting for them.
func (eb *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) {
	eb.mu.RLock()
	subs := eb.subscribers[eventType]
	eb.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	event := Event{
		Type:    eventType,
		Payload: payload,
	}

	eb.pendingMu.Lock()
	eb.pending += len(subs)
	eb.pendingMu.Unlock()

	for _, s := range subs {
		go func(h EventHandler) {
			defer eb.handlerDone()
			if err := h(ctx, event); err != nil {
				select {
				case eb.errorChan <- fmt.Errorf("event handler error: %w", err):
				default:
					logger.Error("Error channel full, logging event handler error",
						zap.Error(err),
						zap.String("eventType", eventType))
				}
			}
		}(s.handler)
	}
}

// Start begins processing handler errors until ctx is done.
func (eb *EventBus) Start(ctx context.Context) {
	go eb.processErrors(ctx)
}

// Wait blocks until no handler is running. Publish may be called concurrently;
// handlers it starts before Wait observes zero are waited for too.
func (eb *EventBus) Wait() {
	eb.pendingMu.Lock()
	defer eb.pendingMu.Unlock()
	for eb.pending > 0 {
		eb.idle.Wait()
	}
}

func (eb *EventBus) handlerDone() {
	eb.pendingMu.Lock()
	defer eb.pendingMu.Unlock()
	eb.pending--
	if eb.pending == 0 {
		eb.idle.Broadcast()
	}
}

func (eb *EventBus) processErrors(ctx context.Context) {
	for {
		select {
		case err := <-eb.errorChan:
			logger.Error("Event handler error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}
