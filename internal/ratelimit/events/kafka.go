package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"pastebin/internal/platform/kafka/producer"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/observability"
)

// AsyncProducer buffers records for background delivery.
type AsyncProducer interface {
	ProduceAsync(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher mirrors gate events and ban audit records to Kafka topics.
// Records are keyed by identifier so one caller's history stays ordered
// within a partition.
type KafkaPublisher struct {
	producer    AsyncProducer
	eventsTopic string
	auditTopic  string
}

func NewKafkaPublisher(p AsyncProducer, eventsTopic, auditTopic string) (*KafkaPublisher, error) {
	if p == nil {
		return nil, errors.New("producer is required")
	}
	if eventsTopic == "" || auditTopic == "" {
		return nil, errors.New("kafka topics are required")
	}
	return &KafkaPublisher{producer: p, eventsTopic: eventsTopic, auditTopic: auditTopic}, nil
}

// Publish implements Publisher.
func (k *KafkaPublisher) Publish(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.producer.ProduceAsync(ctx, &producer.Message{
		Topic: k.eventsTopic,
		Key:   []byte(event.Identifier),
		Value: value,
		Headers: map[string]string{
			"action":  string(event.Action),
			"success": strconv.FormatBool(event.Success),
		},
	})
}

// Emit implements observability.AuditPublisher.
func (k *KafkaPublisher) Emit(ctx context.Context, event observability.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.producer.ProduceAsync(ctx, &producer.Message{
		Topic:   k.auditTopic,
		Key:     []byte(event.Subject),
		Value:   value,
		Headers: map[string]string{"event": event.Action},
	})
}

var (
	_ Publisher                    = (*KafkaPublisher)(nil)
	_ observability.AuditPublisher = (*KafkaPublisher)(nil)
)
