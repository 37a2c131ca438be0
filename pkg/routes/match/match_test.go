package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
)

type fakeMatcher struct {
	results  []models.MatchResult
	err      error
	requests []*models.MatchRequest
}

func (f *fakeMatcher) Match(_ context.Context, request *models.MatchRequest) ([]models.MatchResult, error) {
	f.requests = append(f.requests, request)
	return f.results, f.err
}

type fakePublisher struct {
	events []*events.MatchCompletedEvent
	err    error
}

func (f *fakePublisher) PublishMatchCompleted(_ context.Context, event *events.MatchCompletedEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func newTestServer(matcher Matcher, publisher events.Publisher) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())

	NewHandler(matcher, publisher, logger).Register(e.Group("/api/v1"))
	return e
}

func post(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/match", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Match(t *testing.T) {
	matcher := &fakeMatcher{
		results: []models.MatchResult{
			{ExternalID: "A1", Score: 26, IsMatch: true, Rules: []models.MatchRule{models.MatchRuleExactName}},
			{ExternalID: "B2", Score: 10, Rules: []models.MatchRule{models.MatchRuleExactName}},
		},
	}
	publisher := &fakePublisher{}
	e := newTestServer(matcher, publisher)

	rec := post(e, `{"first_name":"Bob","last_name":"Smith","birth_date":"1980-01-02","national_identifier":"6789"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Total)
	assert.Equal(t, 1, response.MatchCount)
	assert.Equal(t, models.LowThreshold, response.LowThreshold)
	assert.Equal(t, "A1", response.Results[0].ExternalID)

	require.Len(t, matcher.requests, 1)
	assert.Equal(t, "Bob", matcher.requests[0].FirstName)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, 2, publisher.events[0].ResultCount)
	assert.Equal(t, 26, publisher.events[0].TopScore)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), publisher.events[0].RequestID)
}

func TestHandler_Match_NoResults(t *testing.T) {
	e := newTestServer(&fakeMatcher{}, &fakePublisher{})

	rec := post(e, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var response Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 0, response.Total)
	assert.Empty(t, response.Results)
}

func TestHandler_Match_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"full national id", `{"national_identifier":"123-45-6789"}`, http.StatusOK},
		{"last four national id", `{"national_identifier":"6789"}`, http.StatusOK},
		{"national id wrong length", `{"national_identifier":"12345"}`, http.StatusBadRequest},
		{"national id without dashes", `{"national_identifier":"123456789"}`, http.StatusBadRequest},
		{"bad email", `{"email":"not-an-email"}`, http.StatusBadRequest},
		{"bad birth date", `{"birth_date":"01/02/1980"}`, http.StatusBadRequest},
		{"middle initial too long", `{"middle_initial":"AB"}`, http.StatusBadRequest},
		{"malformed json", `{"first_name":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher := &fakeMatcher{}
			rec := post(newTestServer(matcher, &fakePublisher{}), tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				assert.Empty(t, matcher.requests)
			}
		})
	}
}

func TestHandler_Match_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"directory status", &directory.StatusError{StatusCode: http.StatusInternalServerError, Message: "boom"}, http.StatusBadGateway},
		{"rate limited", fmt.Errorf("search: %w", fernredis.ErrRateLimitExceeded), http.StatusServiceUnavailable},
		{"partial directory birth date", fmt.Errorf("evaluate: %w", directory.ErrInvalidDate), http.StatusBadGateway},
		{"timeout", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &fakePublisher{}
			rec := post(newTestServer(&fakeMatcher{err: tt.err}, publisher), `{"first_name":"Bob"}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Empty(t, publisher.events)

			var response middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.NotEmpty(t, response.RequestID)
		})
	}
}

func TestHandler_Match_PublishFailureDoesNotFailRequest(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	rec := post(newTestServer(&fakeMatcher{}, publisher), `{"first_name":"Bob"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, publisher.events, 1)
}
