// Package match exposes the identity matching engine over HTTP
package match

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Matcher reconciles a request against directory candidates
type Matcher interface {
	Match(ctx context.Context, request *models.MatchRequest) ([]models.MatchResult, error)
}

// Response is the body of a successful match call
type Response struct {
	Results       []models.MatchResult `json:"results"`
	Total         int                  `json:"total"`
	MatchCount    int                  `json:"match_count"`
	LowThreshold  int                  `json:"low_threshold"`
	HighThreshold int                  `json:"high_threshold"`
}

// Handler serves match requests and publishes a summary event for each
type Handler struct {
	matcher   Matcher
	publisher events.Publisher
	logger    ectologger.Logger
}

// NewHandler creates a match handler. A nil publisher drops events.
func NewHandler(matcher Matcher, publisher events.Publisher, logger ectologger.Logger) *Handler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Handler{
		matcher:   matcher,
		publisher: publisher,
		logger:    logger,
	}
}

// Register registers match routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/patients/match", h.Match)
}

// Match scores directory candidates against the posted identity
func (h *Handler) Match(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "match_handler.Match")
	defer span.End()

	var req models.MatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, validationErrorToString(err).Error())
	}

	results, err := h.matcher.Match(ctx, &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("failed to match patient")
		return toHTTPError(err)
	}

	event := events.NewMatchCompletedEvent(fernctx.GetRequestID(ctx), tracing.GetTraceID(ctx), results)
	if err := h.publisher.PublishMatchCompleted(ctx, event); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("failed to publish match completed event")
	}

	return c.JSON(http.StatusOK, Response{
		Results:       results,
		Total:         len(results),
		MatchCount:    len(ectolinq.Filter(results, func(r models.MatchResult) bool { return r.IsMatch })),
		LowThreshold:  models.LowThreshold,
		HighThreshold: models.HighThreshold,
	})
}

func toHTTPError(err error) error {
	var statusErr *directory.StatusError
	switch {
	case errors.Is(err, fernredis.ErrRateLimitExceeded):
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "directory rate limit exceeded, retry later")
	case errors.Is(err, directory.ErrInvalidDate):
		return httperror.NewHTTPError(http.StatusBadGateway, "directory returned an unreadable birth date")
	case errors.As(err, &statusErr):
		return httperror.NewHTTPErrorf(http.StatusBadGateway, "directory returned status %d", statusErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return httperror.NewHTTPError(http.StatusGatewayTimeout, "directory request timed out")
	default:
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to match patient")
	}
}
