package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestNewMatchCompletedEvent(t *testing.T) {
	results := []models.MatchResult{
		{ExternalID: "E1", Score: 41, IsMatch: true, IsHighConfidence: true},
		{ExternalID: "E2", Score: 26, IsMatch: true},
		{ExternalID: "E3", Score: 10},
	}

	event := NewMatchCompletedEvent("req-1", "trace-1", results)

	assert.Equal(t, EventTypeMatchCompleted, event.EventType)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, 3, event.ResultCount)
	assert.Equal(t, 2, event.MatchCount)
	assert.Equal(t, 1, event.HighConfidenceCount)
	assert.Equal(t, 41, event.TopScore)
	assert.False(t, event.Timestamp.IsZero())
}

func TestNewMatchCompletedEvent_NoResults(t *testing.T) {
	event := NewMatchCompletedEvent("req-1", "", nil)
	assert.Equal(t, 0, event.ResultCount)
	assert.Equal(t, 0, event.TopScore)
}

func TestProducer_PublishMatchCompleted(t *testing.T) {
	writer := &fakeWriter{}
	producer := newProducer(writer, "patient-matches", testLogger())

	event := NewMatchCompletedEvent("req-1", "", []models.MatchResult{{ExternalID: "E1", Score: 26, IsMatch: true}})
	require.NoError(t, producer.PublishMatchCompleted(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "patient-matches", msg.Topic)
	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.Equal(t, kafka.Header{Key: "event_type", Value: []byte(EventTypeMatchCompleted)}, msg.Headers[0])

	var decoded MatchCompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 1, decoded.MatchCount)
	assert.Equal(t, 26, decoded.TopScore)
	assert.NotContains(t, string(msg.Value), "E1")

	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}

func TestProducer_PublishMatchCompleted_Error(t *testing.T) {
	writeErr := errors.New("broker unavailable")
	producer := newProducer(&fakeWriter{err: writeErr}, "patient-matches", testLogger())

	err := producer.PublishMatchCompleted(context.Background(), NewMatchCompletedEvent("req-1", "", nil))
	assert.ErrorIs(t, err, writeErr)
}

func TestNoopPublisher(t *testing.T) {
	var publisher Publisher = NoopPublisher{}
	assert.NoError(t, publisher.PublishMatchCompleted(context.Background(), &MatchCompletedEvent{}))
	assert.NoError(t, publisher.Close())
}

func TestNewWriter_Defaults(t *testing.T) {
	writer := newWriter(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "patient-match-events"})

	assert.Equal(t, DefaultBatchSize, writer.BatchSize)
	assert.Equal(t, 10*time.Millisecond, writer.BatchTimeout)
	assert.Equal(t, kafka.RequireOne, writer.RequiredAcks)
	assert.Equal(t, kafka.Snappy, writer.Compression)
	assert.Empty(t, writer.Topic)
}

func TestNewWriter_Configured(t *testing.T) {
	writer := newWriter(ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		BatchSize:    10,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: int(kafka.RequireAll),
		Compression:  "gzip",
	})

	assert.Equal(t, 10, writer.BatchSize)
	assert.Equal(t, 50*time.Millisecond, writer.BatchTimeout)
	assert.Equal(t, kafka.RequireAll, writer.RequiredAcks)
	assert.Equal(t, kafka.Gzip, writer.Compression)
}
