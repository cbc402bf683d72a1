package event

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"

	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

type subscription struct {
	id      string
	pattern string
	matcher glob.Glob // nil for exact and wildcard subscriptions
	handler Handler
}

// Bus is a synchronous pub-sub event bus.
type Bus struct {
	mu       sync.RWMutex
	exact    map[string][]subscription
	patterns []subscription
	nextID   atomic.Uint64
	logger   *logging.Logger
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		exact:  make(map[string][]subscription),
		logger: logging.NopLogger(),
	}
}

// SetLogger sets the logger used to report handler panics.
func (b *Bus) SetLogger(logger *logging.Logger) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Subscribe registers a handler for an event type, "*" or a glob pattern.
// It returns a subscription ID for Unsubscribe, or an error if the pattern
// does not compile.
func (b *Bus) Subscribe(pattern string, handler Handler) (string, error) {
	sub := subscription{pattern: pattern, handler: handler}

	if pattern != "*" && strings.ContainsAny(pattern, "*?[{") {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return "", fmt.Errorf("invalid subscription pattern %q: %w", pattern, err)
		}
		sub.matcher = g
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub.id = fmt.Sprintf("sub-%d", b.nextID.Add(1))
	if sub.matcher != nil || pattern == "*" {
		b.patterns = append(b.patterns, sub)
	} else {
		b.exact[pattern] = append(b.exact[pattern], sub)
	}
	return sub.id, nil
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(handler Handler) string {
	id, _ := b.Subscribe("*", handler)
	return id
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.exact {
		for i, sub := range subs {
			if sub.id == id {
				b.exact[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	for i, sub := range b.patterns {
		if sub.id == id {
			b.patterns = append(b.patterns[:i:i], b.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// Publish dispatches an event to all matching handlers: exact subscribers
// first, then pattern subscribers, each group in registration order.
func (b *Bus) Publish(e Event) {
	eventType := e.EventType()

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.exact[eventType])+len(b.patterns))
	for _, sub := range b.exact[eventType] {
		targets = append(targets, sub.handler)
	}
	for _, sub := range b.patterns {
		if sub.matcher == nil || sub.matcher.Match(eventType) {
			targets = append(targets, sub.handler)
		}
	}
	logger := b.logger
	b.mu.RUnlock()

	for _, h := range targets {
		safeCall(logger, h, e)
	}
}

func safeCall(logger *logging.Logger, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				"event_type", e.EventType(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	h(e)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exact = make(map[string][]subscription)
	b.patterns = nil
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.patterns)
	for _, subs := range b.exact {
		count += len(subs)
	}
	return count
}
