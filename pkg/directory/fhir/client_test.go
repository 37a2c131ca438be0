package fhir

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
)

const patientBundle = `{
	"resourceType": "Bundle",
	"type": "searchset",
	"total": 2,
	"entry": [
		{
			"resource": {
				"resourceType": "Patient",
				"id": "p1",
				"identifier": [
					{"type": {"text": "EXTERNAL"}, "value": "E100"},
					{"system": "urn:oid:2.16.840.1.113883.4.1", "value": "xxx-xx-1234"}
				],
				"name": [{"use": "official", "family": "Van Buren", "given": ["Martin", "K"]}],
				"telecom": [
					{"system": "phone", "value": "215-555-1212", "use": "home"},
					{"system": "email", "value": "martin@example.com"}
				],
				"gender": "male",
				"birthDate": "1982-12-05",
				"address": [{"use": "home", "line": ["1 Broad St", "Apt 2"], "city": "Philadelphia", "state": "PA", "postalCode": "19104"}]
			},
			"search": {"mode": "match"}
		},
		{
			"resource": {"resourceType": "OperationOutcome"},
			"search": {"mode": "outcome"}
		}
	]
}`

type fakeLimiter struct {
	allowed   bool
	err       error
	blockedBy time.Duration
	calls     int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ int64, _ time.Duration) (*fernredis.RateLimitResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fernredis.RateLimitResult{Allowed: f.allowed, RetryIn: time.Second}, nil
}

func (f *fakeLimiter) BlockFor(_ context.Context, _ string, d time.Duration) error {
	f.blockedBy = d
	return nil
}

func newTestClient(baseURL string, limiter RateLimiter) *Client {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	cfg := Config{
		BaseURL:     baseURL,
		BearerToken: "secret",
		RateLimit:   10,
	}
	return NewClient(cfg, httpclient.NewClient(httpclient.DefaultConfig(), logger), limiter, logger)
}

func TestClient_SearchByCriteria(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fhir/Patient", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "215-555-1212", r.URL.Query().Get("telecom"))
		assert.Equal(t, "female", r.URL.Query().Get("gender"))
		assert.False(t, r.URL.Query().Has("given"))

		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write([]byte(patientBundle))
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/fhir", nil)
	records, err := client.SearchByCriteria(context.Background(), directory.SearchCriteria{
		Phone:  "215-555-1212",
		Gender: "Female",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "p1", record.ResourceID)
	require.Len(t, record.Names, 1)
	assert.Equal(t, []string{"Van", "Buren"}, record.Names[0].Family)
	assert.Equal(t, []string{"Martin", "K"}, record.Names[0].Given)
	assert.Equal(t, "1 Broad St", record.Addresses[0].Line1())
	assert.Equal(t, "1982-12-05", record.BirthDate)
	assert.Equal(t, []string{"martin@example.com"}, record.TelecomValues("email"))

	externalID, ok := directory.ExtractExternalID(record)
	assert.True(t, ok)
	assert.Equal(t, "E100", externalID)

	lastFour, ok := directory.ExtractNationalIDLastFour(record)
	assert.True(t, ok)
	assert.Equal(t, "1234", lastFour)
}

func TestClient_SearchByCriteria_FollowsPages(t *testing.T) {
	var requests atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// every page links to another; only MaxPages are followed
		_, _ = w.Write([]byte(`{"resourceType":"Bundle","link":[{"relation":"next","url":"` + server.URL + `/Patient?page=next"}],` +
			`"entry":[{"resource":{"resourceType":"Patient","id":"p"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	records, err := client.SearchByCriteria(context.Background(), directory.SearchCriteria{FamilyName: "Smith"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_SearchByCriteria_EmptyCriteria(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, nil).SearchByCriteria(context.Background(), directory.SearchCriteria{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_SearchByCriteria_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"invalid","diagnostics":"unknown parameter"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil).SearchByCriteria(context.Background(), directory.SearchCriteria{FamilyName: "Smith"})

	var statusErr *directory.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "invalid: unknown parameter", statusErr.Message)
}

func TestClient_TooManyRequestsBlocksLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	limiter := &fakeLimiter{allowed: true}
	_, err := newTestClient(server.URL, limiter).SearchByCriteria(context.Background(), directory.SearchCriteria{FamilyName: "Smith"})

	var statusErr *directory.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, 12*time.Second, limiter.blockedBy)
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	limiter := &fakeLimiter{allowed: false}
	_, err := newTestClient(server.URL, limiter).SearchByCriteria(context.Background(), directory.SearchCriteria{FamilyName: "Smith"})
	assert.ErrorIs(t, err, fernredis.ErrRateLimitExceeded)
}

func TestClient_LimiterFailureFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"resourceType":"Bundle"}`))
	}))
	defer server.Close()

	limiter := &fakeLimiter{err: errors.New("redis down")}
	records, err := newTestClient(server.URL, limiter).SearchByCriteria(context.Background(), directory.SearchCriteria{FamilyName: "Smith"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, limiter.calls)
}

func TestClient_FetchDemographics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Patient/E100/$demographics", r.URL.Path)
		_, _ = w.Write([]byte(`{"nationalIdentifier":"123-45-1234"}`))
	}))
	defer server.Close()

	demographics, err := newTestClient(server.URL, nil).FetchDemographics(context.Background(), "E100")
	require.NoError(t, err)
	assert.Equal(t, "E100", demographics.ExternalID)
	assert.Equal(t, "123-45-1234", demographics.NationalIdentifier)
}

func TestClient_FetchDemographics_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil).FetchDemographics(context.Background(), "E404")

	var statusErr *directory.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
