package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/Arielutooo/restaurant-app/internal/adapter/notify"
	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/messaging"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Subscriber prints notifications for people watching a channel
type Subscriber struct {
	logger *logger.Logger
	out    io.Writer
}

// NewSubscriber creates a new notification subscriber writing to stdout
func NewSubscriber(log *logger.Logger) *Subscriber {
	return &Subscriber{logger: log, out: os.Stdout}
}

// SetOutput replaces where formatted lines are written
func (s *Subscriber) SetOutput(w io.Writer) {
	s.out = w
}

// ConsumeRabbitMQ handles deliveries from consumer until ctx ends
func (s *Subscriber) ConsumeRabbitMQ(ctx context.Context, consumer *messaging.Consumer) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, map[string]interface{}{
		"source": "rabbitmq",
	})

	defer func() {
		consumer.Close()
		s.logger.Info("graceful_shutdown", "Notification subscriber stopped", requestID, nil)
	}()
	return consumer.Consume(ctx, s.handle)
}

// ConsumeRedis handles notifications from channels matching patterns until ctx ends
func (s *Subscriber) ConsumeRedis(ctx context.Context, client *redis.Client, patterns ...string) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, map[string]interface{}{
		"source":   "redis",
		"patterns": patterns,
	})
	return notify.Subscribe(ctx, client, s.logger, s.handle, patterns...)
}

// HandleMessage decodes one broker delivery and prints it
func (s *Subscriber) HandleMessage(ctx context.Context, body []byte) error {
	var n models.Notification
	if err := messaging.ParseMessage(body, &n); err != nil {
		return err
	}
	return s.handle(ctx, &n)
}

func (s *Subscriber) handle(ctx context.Context, n *models.Notification) error {
	line, err := Format(n)
	if err != nil {
		return fmt.Errorf("%w: %v", messaging.ErrMalformed, err)
	}

	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return err
	}

	s.logger.Debug("notification_displayed", "Notification displayed to user", "", map[string]interface{}{
		"channel": n.Channel,
		"event":   n.Event,
	})
	return nil
}

// Format renders a notification as one human readable line
func Format(n *models.Notification) (string, error) {
	ts := n.Timestamp.Format(timeLayout)

	switch n.Event {
	case models.EventOrderUpdated:
		var p models.OrderUpdatedPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Order %s is now %s (%d items, total %d)",
			ts, short(p.OrderID.String()), p.Status, p.ItemCount, p.Total), nil

	case models.EventItemAdded:
		var p models.ItemAddedPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Order %s: added %dx %s",
			ts, short(p.OrderID.String()), p.Item.Quantity, p.Item.Name), nil

	case models.EventItemStatus:
		var p models.ItemStatusPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Order %s: item %s is %s",
			ts, short(p.OrderID.String()), short(p.ItemID.String()), p.Status), nil

	case models.EventOrderNewItems, models.EventOrderNeedsApproval, models.EventOrderReady:
		var p models.StaffPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Table %s: %s (%d items, order %s)",
			ts, p.TableID, staffText(n.Event), p.ItemCount, short(p.OrderID.String())), nil

	case models.EventTableUpdated:
		var p models.TableUpdatedPayload
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Table %s: order %s is %s",
			ts, p.TableID, short(p.OrderID.String()), p.Status), nil
	}

	return fmt.Sprintf("[%s] %s on %s", ts, n.Event, n.Channel), nil
}

func staffText(event string) string {
	switch event {
	case models.EventOrderNewItems:
		return "new items for the kitchen"
	case models.EventOrderNeedsApproval:
		return "items waiting for approval"
	default:
		return "order ready to serve"
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
