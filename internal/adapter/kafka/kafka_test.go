package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/config"
	"github.com/couchcryptid/location-orchestrator/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

var testFix = domain.Fix{
	Latitude:  37.4219,
	Longitude: -122.0840,
	Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	Accuracy:  4.5,
	Provider:  "gps",
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testFix)
	require.NoError(t, err)

	assert.Equal(t, []byte("gps"), msg.Key)
	assert.Equal(t, testFix.Timestamp, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "provider", msg.Headers[0].Key)
	assert.Equal(t, []byte("gps"), msg.Headers[0].Value)
	assert.Equal(t, "recorded_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-05-01T12:00:00Z"), msg.Headers[1].Value)

	var decoded domain.Fix
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, testFix.Latitude, decoded.Latitude)
	assert.Contains(t, string(msg.Value), `"accuracy_m":4.5`)
}

func TestFixPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &FixPublisher{writer: w, topic: "fixes", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, p.Publish(context.Background(), testFix))
	require.Len(t, w.msgs, 1)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestFixPublisher_PublishError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	p := &FixPublisher{writer: &mockWriter{err: brokerErr}, topic: "fixes", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := p.Publish(context.Background(), testFix)
	require.ErrorIs(t, err, brokerErr)
	assert.Contains(t, err.Error(), "fixes")
}

func TestFixPublisher_SinkSwallowsErrors(t *testing.T) {
	w := &mockWriter{err: errors.New("down")}
	p := &FixPublisher{writer: w, topic: "fixes", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	assert.NotPanics(t, func() { p.Sink(time.Second)(testFix) })

	w.err = nil
	p.Sink(time.Second)(testFix)
	assert.Len(t, w.msgs, 1)
}

func TestNewFixPublisher(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaFixTopic: "location-fixes"}
	p := NewFixPublisher(cfg, slog.Default())

	assert.Equal(t, "location-fixes", p.topic)
	w, ok := p.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.True(t, w.AllowAutoTopicCreation)
	require.NoError(t, p.Close())
}
