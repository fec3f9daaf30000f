package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"mymoney/internal/core"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxRetries     = 3
	publishTimeout = 5 * time.Second

	// maxHandleAttempts bounds how often a failing generate request is retried.
	maxHandleAttempts = 5
	headerAttempts    = "x-attempts"
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.RWMutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	return nil
}

func (c *Client) setup(channel *amqp091.Channel) error {
	// Declare exchange
	err := channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// The worker queue only receives generation requests.
	err = channel.QueueBind(
		c.queueName,            // queue name
		RoutingGenerateRequest, // routing key
		c.exchangeName,         // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// reconnect replaces a dead connection.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	c.mu.Unlock()

	slog.WarnContext(ctx, "Reconnecting to AMQP broker", "exchange", c.exchangeName)
	return c.connect()
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.mu.RLock()
	last := c.lastFailure
	c.mu.RUnlock()

	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	failures := atomic.AddInt64(&c.failureCount, 1)

	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if failures >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// publish sends body with retries on connection errors, guarded by the
// circuit breaker.
func (c *Client) publish(ctx context.Context, routingKey, messageID string, body []byte, headers amqp091.Table) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, refusing to publish")
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.RLock()
		channel := c.channel
		c.mu.RUnlock()

		if channel == nil {
			lastErr = amqp091.ErrClosed
		} else {
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			lastErr = channel.PublishWithContext(
				pubCtx,
				c.exchangeName, // exchange
				routingKey,     // routing key
				false,          // mandatory
				false,          // immediate
				amqp091.Publishing{
					ContentType:  "application/json",
					DeliveryMode: amqp091.Persistent, // make message persistent
					MessageId:    messageID,
					Headers:      headers,
					Timestamp:    time.Now(),
					Body:         body,
				},
			)
			cancel()
		}

		if lastErr == nil {
			c.recordSuccess()
			return nil
		}

		c.recordFailure()
		if !isConnectionError(lastErr) {
			break
		}
		if err := c.reconnect(ctx); err != nil {
			slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "error", err)
		}
	}

	return fmt.Errorf("publish message: %w", lastErr)
}

// PublishTransactionCreated implements services.TransactionPublisher
func (c *Client) PublishTransactionCreated(ctx context.Context, tx core.Transaction) error {
	msg := NewTransactionMessage(tx)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, RoutingTransactionConsolidated, msg.MessageID, body, nil); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published transaction message",
		"transaction_id", tx.ID,
		"origin_tag", tx.OriginTag,
		"exchange", c.exchangeName)

	return nil
}

// PublishGenerateRequest queues a bulk generation for the worker.
func (c *Client) PublishGenerateRequest(ctx context.Context, owner int64, year, month int) error {
	msg := NewGenerateRequestMessage(owner, year, month)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, RoutingGenerateRequest, msg.MessageID, body, nil); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published generate request",
		"owner_id", owner,
		"year", year,
		"month", month,
		"queue", c.queueName)

	return nil
}

// ConsumeGenerateRequests consumes generation requests until ctx is done.
// Malformed messages are dropped; handler failures are retried a bounded
// number of times.
func (c *Client) ConsumeGenerateRequests(ctx context.Context, handler func(context.Context, *GenerateRequestMessage) error) error {
	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()
	if channel == nil {
		return fmt.Errorf("start consuming: %w", amqp091.ErrClosed)
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming generate requests", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery runs handler on one delivery and settles it. A failed
// request is republished with an incremented attempts header after a
// backoff, and dropped once maxHandleAttempts is reached.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler func(context.Context, *GenerateRequestMessage) error) {
	msg, err := GenerateRequestMessageFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	slog.InfoContext(ctx, "Processing generate request",
		"message_id", msg.MessageID,
		"owner_id", msg.OwnerID,
		"year", msg.Year,
		"month", msg.Month)

	handleErr := handler(ctx, msg)
	if handleErr == nil {
		delivery.Ack(false)
		return
	}

	attempts := deliveryAttempts(delivery.Headers) + 1
	if attempts >= maxHandleAttempts {
		slog.ErrorContext(ctx, "Dropping generate request after repeated failures",
			"error", handleErr,
			"message_id", msg.MessageID,
			"attempts", attempts)
		delivery.Nack(false, false)
		return
	}

	slog.ErrorContext(ctx, "Failed to handle message",
		"error", handleErr,
		"message_id", msg.MessageID,
		"attempts", attempts)

	if err := c.retry(ctx, delivery, attempts); err != nil {
		slog.WarnContext(ctx, "Could not schedule retry, requeueing",
			"error", err,
			"message_id", msg.MessageID)
		delivery.Nack(false, true)
		return
	}
	delivery.Ack(false)
}

// retry waits for the attempt's backoff and republishes the delivery body.
func (c *Client) retry(ctx context.Context, delivery amqp091.Delivery, attempts int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(exponentialBackoff(attempts - 1)):
	}
	return c.publish(ctx, RoutingGenerateRequest, delivery.MessageId, delivery.Body,
		amqp091.Table{headerAttempts: int32(attempts)})
}

// deliveryAttempts reads the attempts header; a missing or malformed
// header counts as zero.
func deliveryAttempts(headers amqp091.Table) int {
	switch v := headers[headerAttempts].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
