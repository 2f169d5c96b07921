package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// ClassicBrokerConfig configures the RabbitMQ-backed adapter (spec.md 4.7,
// "Backend A — classic broker").
type ClassicBrokerConfig struct {
	URL    string
	Prefix string // exchange/queue name prefix, e.g. "avapigw."

	// PublishConfirmTimeout bounds a single Publish call; defaults to 5s.
	PublishConfirmTimeout time.Duration
	// BatchConfirmTimeout bounds a PublishBatch call; defaults to 10s.
	BatchConfirmTimeout time.Duration

	// PrefetchCount bounds in-flight unacknowledged deliveries per consumer.
	PrefetchCount int
	// MaxDeliveryCount is the redelivery budget before a message is routed
	// to the dead-letter queue instead of being requeued.
	MaxDeliveryCount int
	// Subscription names the consumer group whose queue name is derived as
	// Prefix + Subscription + "." + lower(eventType).
	Subscription string
}

func (c ClassicBrokerConfig) withDefaults() ClassicBrokerConfig {
	if c.PublishConfirmTimeout <= 0 {
		c.PublishConfirmTimeout = 5 * time.Second
	}
	if c.BatchConfirmTimeout <= 0 {
		c.BatchConfirmTimeout = 10 * time.Second
	}
	if c.PrefetchCount <= 0 {
		c.PrefetchCount = 32
	}
	if c.MaxDeliveryCount <= 0 {
		c.MaxDeliveryCount = 5
	}
	if c.Subscription == "" {
		c.Subscription = "gateway"
	}
	return c
}

// amqpChannel is the subset of *amqp.Channel the broker depends on. It
// exists so classic-broker topology/delivery logic can be unit-tested
// against a fake without a live RabbitMQ connection.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// amqpConnection is the subset of *amqp.Connection used to open a channel,
// abstracted for the same reason as amqpChannel.
type amqpConnection interface {
	Channel() (*amqp.Channel, error)
	Close() error
}

// dialAMQP is overridable in tests.
var dialAMQP = func(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ClassicBroker implements Bus over RabbitMQ.
type ClassicBroker struct {
	cfg    ClassicBrokerConfig
	logger observability.Logger
	metrics *Metrics

	registry *handlerRegistry

	mu           sync.Mutex
	conn         amqpConnection
	ch           amqpChannel
	confirms     chan amqp.Confirmation
	started      bool
	declaredEx   map[string]bool
	declaredDlx  bool
	subscribed   map[string]subscriptionState
	stopConsume  chan struct{}
	consumeDone  sync.WaitGroup
}

type subscriptionState struct {
	queue string
}

// NewClassicBroker builds an unstarted adapter; call Start to connect.
func NewClassicBroker(cfg ClassicBrokerConfig, logger observability.Logger) *ClassicBroker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ClassicBroker{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		metrics:    GetMetrics(),
		registry:   newHandlerRegistry(),
		declaredEx: make(map[string]bool),
		subscribed: make(map[string]subscriptionState),
	}
}

func exchangeName(prefix, eventType string) string {
	return prefix + strings.ToLower(eventType)
}

func queueName(prefix, subscription, eventType string) string {
	return prefix + subscription + "." + strings.ToLower(eventType)
}

func dlxName(prefix string) string { return prefix + "dlx" }
func dlqName(prefix string) string { return prefix + "dlq" }
func delayQueueName(prefix, eventType string) string {
	return prefix + "delay." + strings.ToLower(eventType)
}

// Start dials the broker, opens a confirm-mode channel, and declares the
// shared dead-letter exchange/queue.
func (b *ClassicBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	conn, err := dialAMQP(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("eventbus: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("eventbus: open channel: %w", err)
	}
	if err := ch.Qos(b.cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("eventbus: set qos: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("eventbus: enable confirm mode: %w", err)
	}

	b.conn = conn
	b.ch = ch
	b.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 16))
	b.stopConsume = make(chan struct{})

	if err := b.declareDeadLetter(); err != nil {
		return err
	}
	b.started = true
	b.logger.Info("classic broker started", observability.String("url", scrubURL(b.cfg.URL)))
	return nil
}

// scrubURL drops embedded credentials before logging a broker URL.
func scrubURL(raw string) string {
	if i := strings.Index(raw, "@"); i != -1 {
		if j := strings.Index(raw, "://"); j != -1 && j < i {
			return raw[:j+3] + "***" + raw[i:]
		}
	}
	return raw
}

func (b *ClassicBroker) declareDeadLetter() error {
	dlx := dlxName(b.cfg.Prefix)
	dlq := dlqName(b.cfg.Prefix)
	if err := b.ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare dlx: %w", err)
	}
	if _, err := b.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare dlq: %w", err)
	}
	if err := b.ch.QueueBind(dlq, "", dlx, false, nil); err != nil {
		return fmt.Errorf("eventbus: bind dlq: %w", err)
	}
	b.declaredDlx = true
	return nil
}

func (b *ClassicBroker) ensureExchange(eventType string) (string, error) {
	name := exchangeName(b.cfg.Prefix, eventType)
	if b.declaredEx[name] {
		return name, nil
	}
	if err := b.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("eventbus: declare exchange %s: %w", name, err)
	}
	b.declaredEx[name] = true
	return name, nil
}

func (b *ClassicBroker) encode(event *IntegrationEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("eventbus: marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     event.EventID,
		CorrelationId: event.CorrelationID,
		Timestamp:     event.Timestamp,
		Body:          body,
		Headers:       amqp.Table{"x-delivery-count": int32(0)},
	}, nil
}

// publishOne declares the exchange, publishes, and waits for a confirm
// within timeout.
func (b *ClassicBroker) publishOne(ctx context.Context, event *IntegrationEvent, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}

	start := time.Now()
	exchange, err := b.ensureExchange(event.EventType)
	if err != nil {
		b.metrics.publishFailures.WithLabelValues("classic-broker", event.EventType).Inc()
		return err
	}
	msg, err := b.encode(event)
	if err != nil {
		b.metrics.publishFailures.WithLabelValues("classic-broker", event.EventType).Inc()
		return err
	}

	if err := b.ch.PublishWithContext(ctx, exchange, strings.ToLower(event.EventType), false, false, msg); err != nil {
		b.metrics.publishFailures.WithLabelValues("classic-broker", event.EventType).Inc()
		return fmt.Errorf("eventbus: publish: %w", err)
	}

	select {
	case confirm, ok := <-b.confirms:
		if !ok || !confirm.Ack {
			b.metrics.publishFailures.WithLabelValues("classic-broker", event.EventType).Inc()
			return ErrPublishConfirmTimeout
		}
	case <-time.After(timeout):
		b.metrics.publishFailures.WithLabelValues("classic-broker", event.EventType).Inc()
		return ErrPublishConfirmTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	b.metrics.publishesTotal.WithLabelValues("classic-broker", event.EventType).Inc()
	b.metrics.publishDuration.WithLabelValues("classic-broker").Observe(time.Since(start).Seconds())
	return nil
}

// Publish implements Bus.
func (b *ClassicBroker) Publish(ctx context.Context, event *IntegrationEvent) error {
	return b.publishOne(ctx, event, b.cfg.PublishConfirmTimeout)
}

// PublishBatch implements Bus: the classic broker has no native batch
// publish API, so each event is confirmed individually under the batch
// deadline, matching spec.md's "bounded wait ... 10 s batch".
func (b *ClassicBroker) PublishBatch(ctx context.Context, events []*IntegrationEvent) error {
	deadline := time.Now().Add(b.cfg.BatchConfirmTimeout)
	for _, event := range events {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrPublishConfirmTimeout
		}
		if err := b.publishOne(ctx, event, remaining); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe implements Bus: declares a durable queue bound to the event
// type's exchange, with dead-letter routing to the shared DLX, then starts
// a consumer goroutine.
func (b *ClassicBroker) Subscribe(eventType string, handler Handler) error {
	b.registry.subscribe(eventType, handler)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}
	if _, already := b.subscribed[eventType]; already {
		return nil
	}

	exchange, err := b.ensureExchange(eventType)
	if err != nil {
		return err
	}
	queue := queueName(b.cfg.Prefix, b.cfg.Subscription, eventType)
	args := amqp.Table{
		"x-dead-letter-exchange": dlxName(b.cfg.Prefix),
	}
	if _, err := b.ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("eventbus: declare queue %s: %w", queue, err)
	}
	if err := b.ch.QueueBind(queue, strings.ToLower(eventType), exchange, false, nil); err != nil {
		return fmt.Errorf("eventbus: bind queue %s: %w", queue, err)
	}

	deliveries, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("eventbus: consume %s: %w", queue, err)
	}

	b.subscribed[eventType] = subscriptionState{queue: queue}
	b.consumeDone.Add(1)
	go b.consumeLoop(eventType, deliveries)
	return nil
}

// Unsubscribe implements Bus.
func (b *ClassicBroker) Unsubscribe(eventType string) error {
	b.registry.unsubscribe(eventType)
	return nil
}

func (b *ClassicBroker) consumeLoop(eventType string, deliveries <-chan amqp.Delivery) {
	defer b.consumeDone.Done()
	for {
		select {
		case <-b.stopConsume:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.handleDelivery(eventType, d)
		}
	}
}

// handleDelivery applies spec.md 4.7/8's delivery-count dead-letter
// policy: on handler success, ack; on a missing handler list, abandon
// (nack without requeue); otherwise requeue while the delivery count is
// below MaxDeliveryCount by republishing with an incremented counter, and
// nack-without-requeue (which routes to the DLQ) once the budget is spent.
func (b *ClassicBroker) handleDelivery(eventType string, d amqp.Delivery) {
	var event IntegrationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		b.logger.Warn("eventbus: malformed delivery, dead-lettering", observability.Error(err))
		b.metrics.deadLettersTotal.WithLabelValues("classic-broker", eventType).Inc()
		_ = d.Nack(false, false)
		return
	}

	ctx := context.Background()
	err := b.registry.dispatch(ctx, &event)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if errors.Is(err, ErrNoHandler) {
		b.metrics.deadLettersTotal.WithLabelValues("classic-broker", eventType).Inc()
		_ = d.Nack(false, false)
		return
	}

	b.metrics.handlerErrors.WithLabelValues("classic-broker", eventType).Inc()

	count := deliveryCount(d.Headers)
	if count+1 < b.cfg.MaxDeliveryCount {
		b.requeue(eventType, d, count+1)
		_ = d.Ack(false)
		return
	}

	b.metrics.deadLettersTotal.WithLabelValues("classic-broker", eventType).Inc()
	_ = d.Nack(false, false)
}

func deliveryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers["x-delivery-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// requeue republishes d to the same exchange/routing key it was delivered
// on, with an incremented delivery-count header, giving the handler
// another attempt without relying on RabbitMQ's own redelivery flag (which
// does not track per-message attempt counts on classic queues).
func (b *ClassicBroker) requeue(eventType string, d amqp.Delivery, nextCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-delivery-count"] = int32(nextCount)
	msg := amqp.Publishing{
		ContentType:   d.ContentType,
		MessageId:     d.MessageId,
		CorrelationId: d.CorrelationId,
		Timestamp:     d.Timestamp,
		Body:          d.Body,
		Headers:       headers,
	}
	if err := b.ch.PublishWithContext(context.Background(), d.Exchange, d.RoutingKey, false, false, msg); err != nil {
		b.logger.Warn("eventbus: requeue republish failed", observability.Error(err))
	}
}

// SendCommand implements Bus: publishes directly to queue via the default
// exchange, bypassing event-type topic routing.
func (b *ClassicBroker) SendCommand(ctx context.Context, queue string, command interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}
	body, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("eventbus: marshal command: %w", err)
	}
	if _, err := b.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare command queue: %w", err)
	}
	return b.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Schedule implements Bus via a per-event-type delay queue whose messages
// expire into the shared-back dead-letter routing pointed at the real
// topic exchange/routing key (spec.md 4.7, "delay queue with TTL-based
// dead-lettering back to the target exchange/routing key").
func (b *ClassicBroker) Schedule(ctx context.Context, event *IntegrationEvent, deliveryTime time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}

	exchange, err := b.ensureExchange(event.EventType)
	if err != nil {
		return err
	}
	delay := queueDelay(deliveryTime)
	queue := delayQueueName(b.cfg.Prefix, event.EventType)
	args := amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": strings.ToLower(event.EventType),
	}
	if _, err := b.ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("eventbus: declare delay queue: %w", err)
	}

	msg, err := b.encode(event)
	if err != nil {
		return err
	}
	msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)

	return b.ch.PublishWithContext(ctx, "", queue, false, false, msg)
}

func queueDelay(deliveryTime time.Time) time.Duration {
	d := time.Until(deliveryTime)
	if d < 0 {
		return 0
	}
	return d
}

// Stop implements Bus.
func (b *ClassicBroker) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	close(b.stopConsume)
	ch, conn := b.ch, b.conn
	b.started = false
	b.mu.Unlock()

	b.consumeDone.Wait()
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
