package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

var ErrNacked = errors.New("publish NACK from broker")

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn    *Connection
	logger  *logger.Logger
	timeout time.Duration
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		logger:  log,
		timeout: 10 * time.Second,
	}
}

// RoutingKey maps a channel such as staff:kitchen to its topic routing key
func RoutingKey(channel string) string {
	return strings.ReplaceAll(channel, ":", ".")
}

// Publish implements the notification dispatcher on top of the topic exchange
func (p *Publisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	n, err := models.NewNotification(channel, event, payload)
	if err != nil {
		return err
	}
	return p.publishMessage(ctx, NotificationsExchange, RoutingKey(channel), n, !strings.HasPrefix(channel, "order:"))
}

// confirmation is the broker's answer to one publishing
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// publishMessage marshals the message and waits for the broker confirm of
// this publishing only. A confirm that arrives after ctx expired is dropped
// with its DeferredConfirmation and never seen by a later publish.
func (p *Publisher) publishMessage(ctx context.Context, exchange, routingKey string, message interface{}, persistent bool) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	mode := amqp091.Transient
	if persistent {
		mode = amqp091.Persistent
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dc, err := p.send(ctx, exchange, routingKey, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: mode,
		Timestamp:    time.Now(),
	})
	if err == nil && dc != nil {
		err = awaitConfirm(ctx, dc)
	}
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", exchange),
			"", err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": routingKey,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to exchange %s", exchange),
		"", map[string]interface{}{
			"exchange":     exchange,
			"routing_key":  routingKey,
			"message_size": len(body),
		})
	return nil
}

// send holds the connection lock only while the frame is written
func (p *Publisher) send(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) (*amqp091.DeferredConfirmation, error) {
	p.conn.mu.Lock()
	defer p.conn.mu.Unlock()

	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	return p.conn.Channel().PublishWithDeferredConfirmWithContext(
		ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	)
}

func awaitConfirm(ctx context.Context, conf confirmation) error {
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.conn.Close()
}
