package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

// NotificationHandler processes one decoded notification envelope
type NotificationHandler func(ctx context.Context, n *models.Notification) error

// ErrMalformed marks a message that can never be processed. Such messages
// are dropped instead of requeued.
var ErrMalformed = errors.New("malformed message")

const defaultHandlerTimeout = 30 * time.Second

// Consumer reads notification envelopes from one queue
type Consumer struct {
	conn           *Connection
	logger         *logger.Logger
	queueName      string
	consumerTag    string
	prefetch       int
	handlerTimeout time.Duration
}

func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:           conn,
		logger:         log,
		queueName:      queueName,
		consumerTag:    consumerTag,
		prefetch:       prefetch,
		handlerTimeout: defaultHandlerTimeout,
	}
}

// Consume delivers notifications to handler until ctx ends. A closed
// delivery channel triggers a reconnect and the queue is consumed again.
func (c *Consumer) Consume(ctx context.Context, handler NotificationHandler) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			return err
		}

		c.logger.Info("consumer_started",
			fmt.Sprintf("Started consuming from queue %s", c.queueName),
			"", map[string]interface{}{
				"queue":    c.queueName,
				"consumer": c.consumerTag,
				"prefetch": c.prefetch,
			})

		if err := c.drain(ctx, deliveries, handler); err != nil {
			return err
		}

		c.logger.Warn("consumer_channel_closed", "Delivery channel closed, reconnecting", "", map[string]interface{}{
			"queue": c.queueName,
		})
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp091.Delivery, error) {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %s: %w", c.queueName, err)
	}
	return deliveries, nil
}

// drain returns nil when the delivery channel closes and ctx.Err() on shutdown
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp091.Delivery, handler NotificationHandler) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, d, handler)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp091.Delivery, handler NotificationHandler) {
	start := time.Now()
	fields := map[string]interface{}{
		"queue":        c.queueName,
		"routing_key":  d.RoutingKey,
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
	}

	var n models.Notification
	err := ParseMessage(d.Body, &n)
	if err == nil {
		hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err = handler(hctx, &n)
		cancel()
	}
	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err == nil {
		c.logger.Debug("message_processed", fmt.Sprintf("Handled %s on %s", n.Event, n.Channel), "", fields)
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, fields)
		}
		return
	}

	// a second failure of the same delivery is not retried again
	requeue := !errors.Is(err, ErrMalformed) && !d.Redelivered
	fields["requeue"] = requeue
	c.logger.Error("message_processing_failed", "Failed to process message", "", err, fields)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, fields)
	}
}

// ParseMessage decodes a JSON body, reporting failures as ErrMalformed
func ParseMessage(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Close cancels the consumer and closes the connection
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
		c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
	}
	return c.conn.Close()
}
