// Package events publishes match outcomes for downstream consumers. Events
// carry counts and scores only, never demographics.
package events

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventTypeMatchCompleted is emitted after every match request
const EventTypeMatchCompleted = "patient.match.completed"

// MatchCompletedEvent summarizes one match call
type MatchCompletedEvent struct {
	EventType           string    `json:"event_type"`
	RequestID           string    `json:"request_id"`
	TraceID             string    `json:"trace_id,omitempty"`
	ResultCount         int       `json:"result_count"`
	MatchCount          int       `json:"match_count"`
	HighConfidenceCount int       `json:"high_confidence_count"`
	TopScore            int       `json:"top_score"`
	Timestamp           time.Time `json:"timestamp"`
}

// NewMatchCompletedEvent summarizes results, which must be sorted by score
func NewMatchCompletedEvent(requestID, traceID string, results []models.MatchResult) *MatchCompletedEvent {
	event := &MatchCompletedEvent{
		EventType:   EventTypeMatchCompleted,
		RequestID:   requestID,
		TraceID:     traceID,
		ResultCount: len(results),
		Timestamp:   time.Now().UTC(),
	}

	for i, result := range results {
		if i == 0 {
			event.TopScore = result.Score
		}
		if result.IsMatch {
			event.MatchCount++
		}
		if result.IsHighConfidence {
			event.HighConfidenceCount++
		}
	}

	return event
}

// Publisher emits match events
type Publisher interface {
	PublishMatchCompleted(ctx context.Context, event *MatchCompletedEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishMatchCompleted(context.Context, *MatchCompletedEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
