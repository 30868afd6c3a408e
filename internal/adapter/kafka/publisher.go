// Package kafka forwards streamed fixes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/config"
	"github.com/couchcryptid/location-orchestrator/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// FixPublisher produces one message per fix to the configured topic.
type FixPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewFixPublisher creates a Kafka producer for the configured fix topic.
func NewFixPublisher(cfg *config.Config, logger *slog.Logger) *FixPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaFixTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &FixPublisher{writer: w, topic: cfg.KafkaFixTopic, logger: logger}
}

// Publish writes fix to the topic and blocks until the brokers acknowledge it.
func (p *FixPublisher) Publish(ctx context.Context, fix domain.Fix) error {
	msg, err := serializeToMessage(fix)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish fix to %s: %w", p.topic, err)
	}
	return nil
}

// Sink adapts Publish to a stream callback. Each fix is published with
// timeout; failures are logged and the fix is dropped.
func (p *FixPublisher) Sink(timeout time.Duration) func(domain.Fix) {
	return func(fix domain.Fix) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.Publish(ctx, fix); err != nil {
			p.logger.Warn("fix not published", "error", err, "timestamp", fix.Timestamp)
		}
	}
}

func (p *FixPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Fix into a Kafka message keyed by provider.
func serializeToMessage(fix domain.Fix) (kafkago.Message, error) {
	data, err := json.Marshal(fix)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fix: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fix.Provider),
		Value: data,
		Time:  fix.Timestamp,
		Headers: []kafkago.Header{
			{Key: "provider", Value: []byte(fix.Provider)},
			{Key: "recorded_at", Value: []byte(fix.Timestamp.Format(time.RFC3339Nano))},
		},
	}, nil
}
