package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(DefaultConfig(), ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"123"}`))
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL, map[string]string{"Authorization": "Bearer token"})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "application/json", resp.ContentType)

	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.DecodeJSON(&body))
	assert.Equal(t, "123", body.ID)
}

func TestClient_Get_NonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestClient_Get_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", MaxResponseSize+1)))
	}))
	defer server.Close()

	_, err := newTestClient().Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestClient_Get_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestClient().Get(context.Background(), server.URL, nil)
	assert.Error(t, err)
}

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("https://ehr.example.com/fhir/R4/", "/Patient", map[string]string{
		"family":    "Smith",
		"given":     "",
		"birthdate": "1980-05-04",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://ehr.example.com/fhir/R4/Patient?birthdate=1980-05-04&family=Smith", got)

	got, err = BuildURL("https://ehr.example.com/fhir", "Patient/E1/$demographics", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://ehr.example.com/fhir/Patient/E1/$demographics", got)
}
