// Package eventbus implements the message-bus adapter (C2): a
// backend-agnostic publish/subscribe contract over two concrete transports,
// a classic broker (RabbitMQ topic exchanges with dead-letter routing) and
// a managed topic bus (Azure Service Bus), selected at startup from
// config.Config.EventBusBrokerType. The pipeline (C9) uses it to publish
// fire-and-forget outcome events; it never blocks the HTTP response.
package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known event-type names published by the pipeline (spec.md 4.8/6).
const (
	EventTypeAPIRequestProcessed = "ApiRequestProcessed"
	EventTypeGatewayErrorOccurred = "GatewayErrorOccurred"
)

// Gateway-originated error codes carried on a GatewayErrorOccurred event,
// per spec.md 4.8/7.
const (
	ErrorCodeBadGateway     = "BAD_GATEWAY"
	ErrorCodeGatewayTimeout = "GATEWAY_TIMEOUT"
	ErrorCodeInternalError  = "INTERNAL_ERROR"
)

// ErrNoHandler is returned by a backend's internal dispatch when an event
// type has no registered handler; classic/managed adapters translate it
// into an abandon/nack-without-requeue.
var ErrNoHandler = errors.New("eventbus: no handler registered for event type")

// ErrUnknownEventType is returned when a delivered message's type was never
// registered with a decoder; adapters dead-letter it immediately.
var ErrUnknownEventType = errors.New("eventbus: unknown event type")

// ErrPublishConfirmTimeout is returned when a publish is not confirmed
// within the configured bounded wait.
var ErrPublishConfirmTimeout = errors.New("eventbus: publish not confirmed before deadline")

// ErrNotStarted is returned by Publish/Subscribe/etc. when called before
// Start or after Stop.
var ErrNotStarted = errors.New("eventbus: bus is not started")

// IntegrationEvent is the fire-and-forget message published to a topic
// named after its EventType (spec.md 3 / GLOSSARY). Metadata carries
// propagated trace context (e.g. "traceparent") across the bus.
type IntegrationEvent struct {
	EventID       string                 `json:"eventId"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlationId"`
	Source        string                 `json:"source"`
	EventType     string                 `json:"eventType"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Metadata      map[string]string      `json:"metadata,omitempty"`
}

// NewIntegrationEvent mints an event with a fresh id and a UTC timestamp.
func NewIntegrationEvent(eventType, source, correlationID string, payload map[string]interface{}) *IntegrationEvent {
	return &IntegrationEvent{
		EventID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Source:        source,
		EventType:     eventType,
		Payload:       payload,
	}
}

// Handler processes one delivered event. Returning an error causes the
// owning adapter to apply its redelivery/dead-letter policy; the context is
// canceled when the underlying delivery's cancellation signal fires.
type Handler func(ctx context.Context, event *IntegrationEvent) error

// Bus is the backend-agnostic contract both adapters satisfy (spec.md 4.7).
type Bus interface {
	// Publish sends a single event, blocking until the backend confirms
	// receipt or the bounded wait elapses.
	Publish(ctx context.Context, event *IntegrationEvent) error

	// PublishBatch sends multiple events as efficiently as the backend
	// allows (e.g. a batched Service Bus send), falling back to
	// one-by-one publishing when the backend has no native batching.
	PublishBatch(ctx context.Context, events []*IntegrationEvent) error

	// Subscribe registers handler for eventType. Multiple handlers for the
	// same type are invoked sequentially per delivery.
	Subscribe(eventType string, handler Handler) error

	// Unsubscribe removes every handler registered for eventType.
	Unsubscribe(eventType string) error

	// SendCommand sends a point-to-point command payload to queue, bypassing
	// the topic/event-type routing Publish uses.
	SendCommand(ctx context.Context, queue string, command interface{}) error

	// Schedule publishes event for delivery at deliveryTime rather than
	// immediately.
	Schedule(ctx context.Context, event *IntegrationEvent, deliveryTime time.Time) error

	// Start connects to the backend and begins consuming for any
	// subscriptions registered so far.
	Start(ctx context.Context) error

	// Stop closes consumer channels and the underlying connection.
	Stop(ctx context.Context) error
}

// handlerRegistry is the explicit event-type -> handler-list map shared by
// both adapters (spec.md 9, Design Note "Dynamic-dispatch handler
// registry"): no reflective type search, just a string key.
type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: make(map[string][]Handler)}
}

func (r *handlerRegistry) subscribe(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
}

func (r *handlerRegistry) unsubscribe(eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, eventType)
}

// dispatch deserializes once (by the caller) and invokes every handler for
// event.EventType sequentially. A missing handler list reports ErrNoHandler
// so the adapter can abandon/nack-without-requeue, per spec.md 4.7.
func (r *handlerRegistry) dispatch(ctx context.Context, event *IntegrationEvent) error {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[event.EventType]...)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return ErrNoHandler
	}
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
