package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus/admin"

	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// ManagedBusConfig configures the Azure Service Bus adapter (spec.md 4.7,
// "Backend B — managed topic bus").
type ManagedBusConfig struct {
	ConnectionString string
	Topic            string
	Subscription     string

	// BatchConfirmTimeout bounds a PublishBatch call.
	BatchConfirmTimeout time.Duration
	// ReceiveTimeout bounds a single receive poll during the consume loop.
	ReceiveTimeout time.Duration
	// MaxDeliveryCount mirrors the classic broker's redelivery budget;
	// Service Bus enforces its own subscription-level MaxDeliveryCount at
	// creation time, this field is the value used there.
	MaxDeliveryCount int32
}

func (c ManagedBusConfig) withDefaults() ManagedBusConfig {
	if c.BatchConfirmTimeout <= 0 {
		c.BatchConfirmTimeout = 10 * time.Second
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = 5 * time.Second
	}
	if c.MaxDeliveryCount <= 0 {
		c.MaxDeliveryCount = 5
	}
	return c
}

// sbSender is the subset of *azservicebus.Sender the adapter depends on.
type sbSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	NewMessageBatch(ctx context.Context, options *azservicebus.MessageBatchOptions) (*azservicebus.MessageBatch, error)
	SendMessageBatch(ctx context.Context, batch *azservicebus.MessageBatch, options *azservicebus.SendMessageBatchOptions) error
	ScheduleMessages(ctx context.Context, messages []*azservicebus.Message, options *azservicebus.ScheduleMessagesOptions) ([]int64, error)
	Close(ctx context.Context) error
}

// sbReceiver is the subset of *azservicebus.Receiver the adapter depends on.
type sbReceiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// sbAdmin is the subset of *admin.Client the adapter depends on to
// provision the topic/subscription pair on first use.
type sbAdmin interface {
	GetTopic(ctx context.Context, topicName string, options *admin.GetTopicOptions) (*admin.GetTopicResponse, error)
	CreateTopic(ctx context.Context, topicName string, options *admin.CreateTopicOptions) (*admin.CreateTopicResponse, error)
	GetSubscription(ctx context.Context, topicName, subscriptionName string, options *admin.GetSubscriptionOptions) (*admin.GetSubscriptionResponse, error)
	CreateSubscription(ctx context.Context, topicName, subscriptionName string, options *admin.CreateSubscriptionOptions) (*admin.CreateSubscriptionResponse, error)
}

// dialManagedBus constructs the client/admin pair; overridable in tests.
var dialManagedBus = func(connStr string) (*azservicebus.Client, *admin.Client, error) {
	client, err := azservicebus.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, nil, err
	}
	adminClient, err := admin.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, nil, err
	}
	return client, adminClient, nil
}

// ManagedBus implements Bus over Azure Service Bus topics/subscriptions.
type ManagedBus struct {
	cfg     ManagedBusConfig
	logger  observability.Logger
	metrics *Metrics

	registry *handlerRegistry

	mu        sync.Mutex
	client    *azservicebus.Client
	admin     sbAdmin
	sender    sbSender
	receiver  sbReceiver
	started   bool
	provision map[string]bool
	stopCh    chan struct{}
	consumeWG sync.WaitGroup
}

// NewManagedBus builds an unstarted adapter; call Start to connect.
func NewManagedBus(cfg ManagedBusConfig, logger observability.Logger) *ManagedBus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ManagedBus{
		cfg:       cfg.withDefaults(),
		logger:    logger,
		metrics:   GetMetrics(),
		registry:  newHandlerRegistry(),
		provision: make(map[string]bool),
	}
}

// Start connects to Service Bus, provisions the configured topic and
// subscription if absent, and opens a sender for the topic.
func (m *ManagedBus) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	client, adminClient, err := dialManagedBus(m.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("eventbus: dial service bus: %w", err)
	}

	if err := ensureTopicAndSubscription(ctx, adminClient, m.cfg.Topic, m.cfg.Subscription, m.cfg.MaxDeliveryCount); err != nil {
		return err
	}

	sender, err := client.NewSender(m.cfg.Topic, nil)
	if err != nil {
		return fmt.Errorf("eventbus: open sender: %w", err)
	}

	m.client = client
	m.admin = adminClient
	m.sender = sender
	m.stopCh = make(chan struct{})
	m.started = true
	m.logger.Info("managed bus started", observability.String("topic", m.cfg.Topic))
	return nil
}

func ensureTopicAndSubscription(ctx context.Context, adminClient sbAdmin, topic, subscription string, maxDeliveryCount int32) error {
	if _, err := adminClient.GetTopic(ctx, topic, nil); err != nil {
		if _, err := adminClient.CreateTopic(ctx, topic, nil); err != nil {
			return fmt.Errorf("eventbus: create topic %s: %w", topic, err)
		}
	}
	if _, err := adminClient.GetSubscription(ctx, topic, subscription, nil); err != nil {
		opts := &admin.CreateSubscriptionOptions{
			Properties: &admin.SubscriptionProperties{
				MaxDeliveryCount:                   &maxDeliveryCount,
				DeadLetteringOnMessageExpiration:   boolPtr(true),
			},
		}
		if _, err := adminClient.CreateSubscription(ctx, topic, subscription, opts); err != nil {
			return fmt.Errorf("eventbus: create subscription %s/%s: %w", topic, subscription, err)
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

func (m *ManagedBus) encode(event *IntegrationEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("eventbus: marshal event: %w", err)
	}
	eventID := event.EventID
	correlationID := event.CorrelationID
	contentType := "application/json"
	return &azservicebus.Message{
		MessageID:     &eventID,
		CorrelationID: &correlationID,
		ContentType:   &contentType,
		Body:          body,
		ApplicationProperties: map[string]interface{}{
			"eventId":       event.EventID,
			"correlationId": event.CorrelationID,
			"eventType":     event.EventType,
			"source":        event.Source,
			"timestamp":     event.Timestamp.Format(time.RFC3339),
		},
	}, nil
}

// Publish implements Bus.
func (m *ManagedBus) Publish(ctx context.Context, event *IntegrationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}

	start := time.Now()
	msg, err := m.encode(event)
	if err != nil {
		m.metrics.publishFailures.WithLabelValues("managed-bus", event.EventType).Inc()
		return err
	}
	if err := m.sender.SendMessage(ctx, msg, nil); err != nil {
		m.metrics.publishFailures.WithLabelValues("managed-bus", event.EventType).Inc()
		return fmt.Errorf("eventbus: send message: %w", err)
	}
	m.metrics.publishesTotal.WithLabelValues("managed-bus", event.EventType).Inc()
	m.metrics.publishDuration.WithLabelValues("managed-bus").Observe(time.Since(start).Seconds())
	return nil
}

// PublishBatch implements Bus: builds a batch, flushing and retrying
// overflowed messages in a new batch; a message too large for an empty
// batch is rejected, per spec.md 4.7.
func (m *ManagedBus) PublishBatch(ctx context.Context, events []*IntegrationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}

	deadline := time.Now().Add(m.cfg.BatchConfirmTimeout)
	batch, err := m.sender.NewMessageBatch(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventbus: new message batch: %w", err)
	}

	flush := func() error {
		if batch.NumMessages() == 0 {
			return nil
		}
		if err := m.sender.SendMessageBatch(ctx, batch, nil); err != nil {
			return fmt.Errorf("eventbus: send message batch: %w", err)
		}
		b, err := m.sender.NewMessageBatch(ctx, nil)
		if err != nil {
			return err
		}
		batch = b
		return nil
	}

	for _, event := range events {
		if time.Now().After(deadline) {
			return ErrPublishConfirmTimeout
		}
		msg, err := m.encode(event)
		if err != nil {
			return err
		}
		if err := batch.AddMessage(msg, nil); err != nil {
			if batch.NumMessages() == 0 {
				m.metrics.publishFailures.WithLabelValues("managed-bus", event.EventType).Inc()
				return fmt.Errorf("eventbus: event %s too large for an empty batch: %w", event.EventID, err)
			}
			if ferr := flush(); ferr != nil {
				return ferr
			}
			if err := batch.AddMessage(msg, nil); err != nil {
				m.metrics.publishFailures.WithLabelValues("managed-bus", event.EventType).Inc()
				return fmt.Errorf("eventbus: event %s too large for an empty batch: %w", event.EventID, err)
			}
		}
		m.metrics.publishesTotal.WithLabelValues("managed-bus", event.EventType).Inc()
	}
	return flush()
}

// Schedule implements Bus using Service Bus's native scheduled-enqueue
// feature rather than a TTL/dead-letter simulation.
func (m *ManagedBus) Schedule(ctx context.Context, event *IntegrationEvent, deliveryTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	msg, err := m.encode(event)
	if err != nil {
		return err
	}
	if _, err := m.sender.ScheduleMessages(ctx, []*azservicebus.Message{msg}, nil); err != nil {
		return fmt.Errorf("eventbus: schedule message: %w", err)
	}
	return nil
}

// SendCommand implements Bus by sending a point-to-point message to a
// dedicated queue sender, independent of the topic used for Publish.
func (m *ManagedBus) SendCommand(ctx context.Context, queue string, command interface{}) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return ErrNotStarted
	}
	body, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("eventbus: marshal command: %w", err)
	}
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		return fmt.Errorf("eventbus: open command sender: %w", err)
	}
	defer sender.Close(ctx)
	contentType := "application/json"
	return sender.SendMessage(ctx, &azservicebus.Message{Body: body, ContentType: &contentType}, nil)
}

// Subscribe implements Bus: registers the handler and, once Start has run,
// opens a receiver for the configured subscription and begins polling.
func (m *ManagedBus) Subscribe(eventType string, handler Handler) error {
	m.registry.subscribe(eventType, handler)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	if m.receiver != nil {
		return nil
	}
	receiver, err := m.client.NewReceiverForSubscription(m.cfg.Topic, m.cfg.Subscription, nil)
	if err != nil {
		return fmt.Errorf("eventbus: open receiver: %w", err)
	}
	m.receiver = receiver
	m.consumeWG.Add(1)
	go m.consumeLoop()
	return nil
}

// Unsubscribe implements Bus.
func (m *ManagedBus) Unsubscribe(eventType string) error {
	m.registry.unsubscribe(eventType)
	return nil
}

func (m *ManagedBus) consumeLoop() {
	defer m.consumeWG.Done()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ReceiveTimeout)
		messages, err := m.receiver.ReceiveMessages(ctx, 16, nil)
		cancel()
		if err != nil {
			m.logger.Warn("eventbus: receive failed", observability.Error(err))
			continue
		}
		for _, msg := range messages {
			m.handleMessage(msg)
		}
	}
}

// deliveryAction is the outcome handleMessage settles on for a delivered
// message, decided by the pure classifyDelivery so the dead-letter policy
// can be unit-tested without a live Service Bus ReceivedMessage.
type deliveryAction int

const (
	actionComplete deliveryAction = iota
	actionAbandon
	actionDeadLetter
)

// classifyDelivery applies spec.md 4.7/8's delivery-count dead-letter
// policy: success completes; a missing handler list dead-letters
// immediately; otherwise the message is abandoned (redelivered, Service
// Bus increments DeliveryCount natively) until deliveryCount reaches
// maxDeliveryCount, at which point it dead-letters.
func classifyDelivery(handlerErr error, deliveryCount, maxDeliveryCount uint32) deliveryAction {
	if handlerErr == nil {
		return actionComplete
	}
	if errors.Is(handlerErr, ErrNoHandler) {
		return actionDeadLetter
	}
	if deliveryCount+1 >= maxDeliveryCount {
		return actionDeadLetter
	}
	return actionAbandon
}

// handleMessage dispatches a received message and applies classifyDelivery's
// verdict.
func (m *ManagedBus) handleMessage(msg *azservicebus.ReceivedMessage) {
	ctx := context.Background()
	var event IntegrationEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		m.metrics.deadLettersTotal.WithLabelValues("managed-bus", "unknown").Inc()
		_ = m.receiver.DeadLetterMessage(ctx, msg, nil)
		return
	}

	err := m.registry.dispatch(ctx, &event)
	switch classifyDelivery(err, msg.DeliveryCount, uint32(m.cfg.MaxDeliveryCount)) {
	case actionComplete:
		_ = m.receiver.CompleteMessage(ctx, msg, nil)
	case actionAbandon:
		m.metrics.handlerErrors.WithLabelValues("managed-bus", event.EventType).Inc()
		_ = m.receiver.AbandonMessage(ctx, msg, nil)
	case actionDeadLetter:
		if err != nil && !errors.Is(err, ErrNoHandler) {
			m.metrics.handlerErrors.WithLabelValues("managed-bus", event.EventType).Inc()
		}
		m.metrics.deadLettersTotal.WithLabelValues("managed-bus", event.EventType).Inc()
		_ = m.receiver.DeadLetterMessage(ctx, msg, nil)
	}
}

// Stop implements Bus.
func (m *ManagedBus) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	close(m.stopCh)
	receiver, sender := m.receiver, m.sender
	m.started = false
	m.mu.Unlock()

	m.consumeWG.Wait()
	if receiver != nil {
		_ = receiver.Close(ctx)
	}
	if sender != nil {
		return sender.Close(ctx)
	}
	return nil
}
