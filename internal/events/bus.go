package events

import (
	"context"
	"log/slog"
	"time"
)

// Handler consumes one event. Handlers run on the bus goroutine; slow
// handlers delay later events but never the publishing request.
type Handler interface {
	Handle(ctx context.Context, event SecurityEvent)
}

// Bus is a buffered in-process event dispatcher. Events published while the
// buffer is full are dropped with a warning rather than blocking the request
// path.
type Bus struct {
	ch       chan SecurityEvent
	handlers []Handler
	logger   *slog.Logger
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		ch:     make(chan SecurityEvent, buffer),
		logger: logger,
	}
}

// Subscribe registers a handler. Must be called before Start.
func (b *Bus) Subscribe(h Handler) {
	b.handlers = append(b.handlers, h)
}

// Publish enqueues an event without blocking.
func (b *Bus) Publish(event SecurityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case b.ch <- event:
	default:
		b.logger.Warn("event bus full, dropping event",
			slog.String("event_type", event.Type),
			slog.String("user_id", event.UserID))
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (b *Bus) Start(ctx context.Context) {
	for {
		select {
		case event := <-b.ch:
			for _, h := range b.handlers {
				h.Handle(ctx, event)
			}
		case <-ctx.Done():
			b.logger.Info("event bus stopped")
			return
		}
	}
}
