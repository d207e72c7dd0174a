// Package syncbus routes change events between the integrated modules. Events
// are dispatched synchronously with at-least-once semantics; handlers must be
// idempotent or dedupe by event ID.
package syncbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"examcore/internal/observe"
	"examcore/pkg/domain"
)

// defaultHistorySize bounds the in-memory event window.
const defaultHistorySize = 512

// ErrEventNotFound is returned by Retry for unknown event IDs.
var ErrEventNotFound = errors.New("sync event not found")

// ErrRetriesExhausted is returned by Retry once an event has consumed its
// retry budget. The event stays failed and reportable.
var ErrRetriesExhausted = errors.New("sync event retries exhausted")

// Handler processes one sync event on behalf of a target module.
type Handler func(ctx context.Context, event domain.SyncEvent) error

// Bus fans events out from a source module to the handlers of its configured
// target modules. The handler table is keyed "module:action" of the event.
type Bus struct {
	mu       sync.RWMutex
	cfg      domain.SyncConfig
	handlers map[domain.Module]map[string]Handler
	history  *lru.Cache[string, domain.SyncEvent]
	store    domain.EventStore
	policy   RetryPolicy
	logger   observe.Logger
	nowFn    func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger installs a logger.
func WithLogger(logger observe.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithEventStore backs the in-memory history with a durable event log.
func WithEventStore(store domain.EventStore) Option {
	return func(b *Bus) {
		b.store = store
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(b *Bus) {
		b.policy = policy
	}
}

// WithHistorySize bounds the in-memory event window.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			cache, err := lru.New[string, domain.SyncEvent](n)
			if err == nil {
				b.history = cache
			}
		}
	}
}

// New constructs a Bus with the given sync configuration.
func New(cfg domain.SyncConfig, opts ...Option) *Bus {
	history, _ := lru.New[string, domain.SyncEvent](defaultHistorySize)
	b := &Bus{
		cfg:      cfg,
		handlers: make(map[domain.Module]map[string]Handler),
		history:  history,
		policy:   DefaultRetryPolicy(),
		logger:   observe.NopLogger(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
	if cfg.MaxRetries > 0 {
		b.policy.MaxAttempts = cfg.MaxRetries
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler a target module runs for events keyed
// "module:action". Later registrations for the same key replace earlier ones.
func (b *Bus) Subscribe(target domain.Module, key string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[target] == nil {
		b.handlers[target] = make(map[string]Handler)
	}
	b.handlers[target][key] = h
}

// Reconfigure atomically replaces the sync configuration. In-flight events
// finish under the configuration they started with.
func (b *Bus) Reconfigure(cfg domain.SyncConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	if cfg.MaxRetries > 0 {
		b.policy.MaxAttempts = cfg.MaxRetries
	}
}

// Config returns the current sync configuration.
func (b *Bus) Config() domain.SyncConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Publish records a pending event for the module and action and, when
// auto-sync is on and the source module is enabled, dispatches it to the
// handlers of the configured target modules.
func (b *Bus) Publish(ctx context.Context, module domain.Module, action string, data any) (domain.SyncEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return domain.SyncEvent{}, fmt.Errorf("encode event payload: %w", err)
	}
	event := domain.SyncEvent{
		ID:        uuid.NewString(),
		Module:    module,
		Action:    action,
		Data:      payload,
		Timestamp: b.nowFn(),
		Status:    domain.EventPending,
	}
	b.record(ctx, event, true)

	b.mu.RLock()
	cfg := b.cfg
	b.mu.RUnlock()
	if !cfg.AutoSync || !cfg.Enabled(module) {
		b.logger.Debug("event recorded without dispatch", "event", event.ID, "key", event.Key())
		return event, nil
	}
	return b.dispatch(ctx, event, cfg), nil
}

// Retry moves a failed event back to pending and dispatches it again,
// consuming one unit of its retry budget.
func (b *Bus) Retry(ctx context.Context, eventID string) (domain.SyncEvent, error) {
	event, ok := b.lookup(ctx, eventID)
	if !ok {
		return domain.SyncEvent{}, ErrEventNotFound
	}
	if event.Status != domain.EventFailed {
		return event, fmt.Errorf("event %s is %s, only failed events can be retried", eventID, event.Status)
	}
	b.mu.RLock()
	cfg := b.cfg
	policy := b.policy
	b.mu.RUnlock()
	if policy.Exhausted(event.RetryCount) {
		return event, fmt.Errorf("%w: event %s after %d attempts", ErrRetriesExhausted, eventID, event.RetryCount)
	}

	event.RetryCount++
	event.Error = ""
	event.Status = domain.EventPending
	b.record(ctx, event, false)
	return b.dispatch(ctx, event, cfg), nil
}

// Events returns the bounded in-memory event window.
func (b *Bus) Events() []domain.SyncEvent {
	keys := b.history.Keys()
	out := make([]domain.SyncEvent, 0, len(keys))
	for _, key := range keys {
		if event, ok := b.history.Get(key); ok {
			out = append(out, event)
		}
	}
	return out
}

// dispatch runs the event through every matching target handler and settles
// its final status.
func (b *Bus) dispatch(ctx context.Context, event domain.SyncEvent, cfg domain.SyncConfig) domain.SyncEvent {
	event.Status = domain.EventProcessing
	b.record(ctx, event, false)

	key := event.Key()
	dispatched := 0
	var failure error
	for _, target := range cfg.Targets(event.Module) {
		if !cfg.Enabled(target) {
			continue
		}
		b.mu.RLock()
		handler := b.handlers[target][key]
		b.mu.RUnlock()
		if handler == nil {
			b.logger.Debug("no handler for event key", "target", string(target), "key", key)
			continue
		}
		dispatched++
		if err := handler(ctx, event); err != nil {
			b.logger.Warn("sync handler failed", "target", string(target), "key", key, "event", event.ID, "error", err)
			failure = fmt.Errorf("%s: %w", target, err)
			break
		}
	}

	if failure != nil {
		event.Status = domain.EventFailed
		event.Error = failure.Error()
	} else {
		if dispatched == 0 {
			b.logger.Debug("event dropped, no listeners", "key", key, "event", event.ID)
		}
		event.Status = domain.EventCompleted
		event.Error = ""
	}
	b.record(ctx, event, false)
	return event
}

// record mirrors the event into the bounded history and, when present, the
// durable store.
func (b *Bus) record(ctx context.Context, event domain.SyncEvent, created bool) {
	b.history.Add(event.ID, event)
	if b.store == nil {
		return
	}
	var err error
	if created {
		err = b.store.AppendEvent(ctx, event)
	} else {
		err = b.store.UpdateEventStatus(ctx, event.ID, event.Status, event.RetryCount, event.Error)
	}
	if err != nil {
		b.logger.Warn("event log write failed", "event", event.ID, "error", err)
	}
}

// lookup finds an event in the history, falling back to the durable store for
// events evicted from the window.
func (b *Bus) lookup(ctx context.Context, eventID string) (domain.SyncEvent, bool) {
	if event, ok := b.history.Get(eventID); ok {
		return event, true
	}
	if b.store == nil {
		return domain.SyncEvent{}, false
	}
	events, err := b.store.ListRecentEvents(ctx, 0)
	if err != nil {
		b.logger.Warn("event log read failed", "event", eventID, "error", err)
		return domain.SyncEvent{}, false
	}
	for _, event := range events {
		if event.ID == eventID {
			return event, true
		}
	}
	return domain.SyncEvent{}, false
}
