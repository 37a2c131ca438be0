// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchRequestsTotal tracks match calls by outcome
	MatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "requests_total",
			Help:      "Total number of match calls by status",
		},
		[]string{"status"},
	)

	// MatchDuration tracks match call duration
	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "duration_seconds",
			Help:      "Duration of match calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// CandidatesEvaluated tracks candidates scored per match call
	CandidatesEvaluated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "candidates_evaluated",
			Help:      "Number of directory candidates evaluated per match call",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 400},
		},
	)

	// MatchResultsTotal tracks emitted results by confidence tier
	MatchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "results_total",
			Help:      "Total number of match results by confidence tier",
		},
		[]string{"confidence"},
	)

	// RulesFiredTotal tracks how often each rule fires
	RulesFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "rules_fired_total",
			Help:      "Total number of times each match rule fired",
		},
		[]string{"rule"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// RateLimitHits tracks rate limit hits
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rate limit hits",
		},
		[]string{"limit_name"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// Confidence tiers for MatchResultsTotal
const (
	ConfidenceHigh      = "high"
	ConfidenceMatch     = "match"
	ConfidenceCandidate = "candidate"
)

// RecordMatch records a completed match call
func RecordMatch(status string, candidates int, durationSeconds float64) {
	MatchRequestsTotal.WithLabelValues(status).Inc()
	MatchDuration.Observe(durationSeconds)
	CandidatesEvaluated.Observe(float64(candidates))
}

// RecordMatchResult records one emitted result and the rules it fired
func RecordMatchResult(confidence string, rules []string) {
	MatchResultsTotal.WithLabelValues(confidence).Inc()
	for _, rule := range rules {
		RulesFiredTotal.WithLabelValues(rule).Inc()
	}
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordRateLimitHit records a request rejected by a rate limit
func RecordRateLimitHit(limitName string) {
	RateLimitHits.WithLabelValues(limitName).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordRedisOperation records a Redis operation duration
func RecordRedisOperation(operation string, durationSeconds float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}
