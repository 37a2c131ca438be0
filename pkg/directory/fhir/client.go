// Package fhir implements the patient directory against a FHIR R4 server
package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	defaultRetryAfter = 30 * time.Second
	rateLimitName     = "directory"
)

// RateLimiter gates directory calls. Satisfied by *redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*fernredis.RateLimitResult, error)
	BlockFor(ctx context.Context, key string, d time.Duration) error
}

// Config holds FHIR directory configuration
type Config struct {
	BaseURL     string
	BearerToken string

	// MaxPages bounds how many searchset pages are followed per search
	MaxPages int

	RateLimit       int64
	RateLimitWindow time.Duration
	RateLimitKey    string
}

// Client is a directory.Client backed by a FHIR server
type Client struct {
	http    *httpclient.Client
	limiter RateLimiter
	logger  ectologger.Logger
	config  Config
}

var _ directory.Client = (*Client)(nil)

// NewClient creates a FHIR directory client. limiter may be nil.
func NewClient(cfg Config, httpClient *httpclient.Client, limiter RateLimiter, logger ectologger.Logger) *Client {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 2
	}
	if cfg.RateLimitKey == "" {
		cfg.RateLimitKey = rateLimitName
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Second
	}

	return &Client{
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
		config:  cfg,
	}
}

// SearchByCriteria runs a Patient search. Empty criteria return no candidates
// without calling the server.
func (c *Client) SearchByCriteria(ctx context.Context, criteria directory.SearchCriteria) ([]models.CandidateRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "fhir.Client.SearchByCriteria")
	defer span.End()

	if criteria.IsEmpty() {
		return []models.CandidateRecord{}, nil
	}

	searchURL, err := httpclient.BuildURL(c.config.BaseURL, resourceTypePatient, searchParams(criteria))
	if err != nil {
		return nil, err
	}

	records := make([]models.CandidateRecord, 0)
	for page := 0; page < c.config.MaxPages && searchURL != ""; page++ {
		var bundle Bundle
		if err := c.get(ctx, searchURL, &bundle); err != nil {
			return nil, err
		}

		records = append(records, toCandidateRecords(&bundle)...)
		searchURL = nextPage(&bundle)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_count": len(records),
	}).Debug("Directory search complete")

	return records, nil
}

// FetchDemographics calls the Patient $demographics operation
func (c *Client) FetchDemographics(ctx context.Context, externalID string) (*models.Demographics, error) {
	ctx, span := tracing.StartSpan(ctx, "fhir.Client.FetchDemographics")
	defer span.End()

	demographicsURL, err := httpclient.BuildURL(c.config.BaseURL, fmt.Sprintf("%s/%s/$demographics", resourceTypePatient, url.PathEscape(externalID)), nil)
	if err != nil {
		return nil, err
	}

	var response demographicsResponse
	if err := c.get(ctx, demographicsURL, &response); err != nil {
		return nil, err
	}

	return &models.Demographics{
		ExternalID:         externalID,
		NationalIdentifier: response.NationalIdentifier,
	}, nil
}

func (c *Client) get(ctx context.Context, requestURL string, out any) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}

	headers := map[string]string{"Accept": "application/fhir+json"}
	if c.config.BearerToken != "" {
		headers["Authorization"] = "Bearer " + c.config.BearerToken
	}

	resp, err := c.http.Get(ctx, requestURL, headers)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.backOff(ctx, resp)
	}

	if !resp.IsSuccess() {
		return statusError(resp)
	}

	return resp.DecodeJSON(out)
}

// acquire takes a slot from the shared rate limit. A limiter failure is
// logged and the call proceeds.
func (c *Client) acquire(ctx context.Context) error {
	if c.limiter == nil || c.config.RateLimit <= 0 {
		return nil
	}

	result, err := c.limiter.Allow(ctx, c.config.RateLimitKey, c.config.RateLimit, c.config.RateLimitWindow)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Rate limiter unavailable")
		return nil
	}
	if result.Allowed {
		return nil
	}

	metrics.RecordRateLimitHit(c.config.RateLimitKey)
	return fmt.Errorf("%w: retry in %s", fernredis.ErrRateLimitExceeded, result.RetryIn)
}

func (c *Client) backOff(ctx context.Context, resp *httpclient.Response) {
	if c.limiter == nil {
		return
	}

	retryAfter := defaultRetryAfter
	if seconds, err := strconv.Atoi(strings.TrimSpace(resp.Headers.Get("Retry-After"))); err == nil && seconds > 0 {
		retryAfter = time.Duration(seconds) * time.Second
	}

	if err := c.limiter.BlockFor(ctx, c.config.RateLimitKey, retryAfter); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to record directory back-off")
	}
}

func statusError(resp *httpclient.Response) error {
	var outcome OperationOutcome
	if err := json.Unmarshal(resp.Body, &outcome); err == nil && len(outcome.Issue) > 0 {
		return &directory.StatusError{StatusCode: resp.StatusCode, Message: outcome.Message()}
	}
	return &directory.StatusError{StatusCode: resp.StatusCode}
}

func searchParams(criteria directory.SearchCriteria) map[string]string {
	return map[string]string{
		"telecom":   criteria.Phone,
		"birthdate": criteria.BirthDate,
		"family":    criteria.FamilyName,
		"given":     criteria.GivenName,
		"gender":    strings.ToLower(criteria.Gender),
	}
}

func nextPage(bundle *Bundle) string {
	link := ectolinq.Find(bundle.Link, func(link BundleLink) bool {
		return link.Relation == "next"
	})
	return link.URL
}
