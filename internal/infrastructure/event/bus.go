package event

import (
	"context"
	"fmt"

	"github.com/feerecon/backend/internal/domain/shared"
	"github.com/feerecon/backend/internal/infrastructure/logger"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers events synchronously, in publish order, to the
// handlers registered for their type. A failing or panicking handler is
// logged and does not stop delivery to the others.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   log.Named("events"),
	}
}

// Publish implements shared.EventPublisher. It returns the number of
// handler failures as an error only for visibility; delivery always completes.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	failures := 0
	for _, event := range events {
		handlers := b.registry.GetHandlers(event.EventType())
		if len(handlers) == 0 {
			continue
		}

		spanCtx, span := telemetry.StartSpan(ctx, "event."+event.EventType(), "handlers", len(handlers))
		for _, handler := range handlers {
			if err := b.dispatch(spanCtx, handler, event); err != nil {
				failures++
				telemetry.RecordError(span, err)
				logger.Enrich(spanCtx, b.logger).Error("Event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
		span.End()
	}
	if failures > 0 {
		return fmt.Errorf("event: %d handler(s) failed", failures)
	}
	return nil
}

// Subscribe implements shared.EventSubscriber
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe implements shared.EventSubscriber
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event: handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
