package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// asyncDispatcher delivers events to handlers on a separate goroutine so
// the publishing ticket operation never blocks on fan-out. Handler errors
// and panics are logged and isolated per handler.
type asyncDispatcher struct {
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *zap.Logger
	listeners map[EventType][]EventHandler
}

// NewAsyncDispatcher creates a dispatcher instance.
func NewAsyncDispatcher(logger *zap.Logger) Dispatcher {
	return &asyncDispatcher{
		logger:    logger,
		listeners: make(map[EventType][]EventHandler),
	}
}

// Publish dispatches the event to all subscribed handlers without waiting
// for them. Delivery uses a context detached from the caller's: the HTTP
// request that triggered the event may complete (and its context be
// cancelled) before handlers run.
func (d *asyncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, handler := range handlers {
			d.invoke(context.WithoutCancel(ctx), event, handler)
		}
	}()
	return nil
}

func (d *asyncDispatcher) invoke(ctx context.Context, event Event, handler EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Any("panic", r))
		}
	}()
	if err := handler(ctx, event); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// Subscribe registers a handler for the given event type.
func (d *asyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in
// tests.
func (d *asyncDispatcher) Wait() {
	d.wg.Wait()
}

// Waiter is implemented by dispatchers that can drain in-flight events.
type Waiter interface {
	Wait()
}
