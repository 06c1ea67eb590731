// Package crm forwards lifecycle analytics events to the CRM topic.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Arielutooo/restaurant-app/internal/config"
	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

// Noop discards CRM events
type Noop struct{}

func (Noop) Track(context.Context, models.CRMEvent) error { return nil }
func (Noop) Close() error                                  { return nil }

// Kafka writes CRM events asynchronously. Delivery errors surface in the
// completion callback and are logged only.
type Kafka struct {
	writer  *kafka.Writer
	logger  *logger.Logger
	timeout time.Duration
}

func NewKafka(cfg config.KafkaConfig, log *logger.Logger) *Kafka {
	k := &Kafka{logger: log, timeout: 5 * time.Second}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.CRMTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   k.completed,
	}
	return k
}

// Track enqueues the event keyed by order id so one order's events stay ordered
func (k *Kafka) Track(ctx context.Context, event models.CRMEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal crm event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key(event)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (k *Kafka) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	k.logger.Error("crm_delivery_failed", "Failed to deliver CRM events", "", err, map[string]interface{}{
		"count": len(messages),
		"topic": k.writer.Topic,
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func key(event models.CRMEvent) string {
	if id, ok := event.Payload["orderId"]; ok {
		return fmt.Sprint(id)
	}
	return event.Type
}
