package middleware

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/context"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestEcho(handler echo.HandlerFunc, middlewares ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	e.GET("/test", handler, middlewares...)
	return e
}

func serve(e *echo.Echo, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestContext(t *testing.T) {
	t.Run("generates a request id", func(t *testing.T) {
		var seen string
		e := newTestEcho(func(c echo.Context) error {
			seen = context.GetRequestID(c.Request().Context())
			assert.Equal(t, http.MethodGet, context.GetMethod(c.Request().Context()))
			assert.Equal(t, "/test", context.GetRoute(c.Request().Context()))
			return c.NoContent(http.StatusNoContent)
		})

		rec := serve(e, nil)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("keeps the caller's request id", func(t *testing.T) {
		var seen string
		e := newTestEcho(func(c echo.Context) error {
			seen = context.GetRequestID(c.Request().Context())
			return c.NoContent(http.StatusNoContent)
		})

		rec := serve(e, map[string]string{echo.HeaderXRequestID: "req-123"})
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"http error", httperror.NewHTTPError(http.StatusBadRequest, "bad input"), http.StatusBadRequest, "bad input"},
		{"echo error", echo.NewHTTPError(http.StatusUnauthorized, "missing bearer"), http.StatusUnauthorized, "missing bearer"},
		{"unknown error", errors.New("secret details"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(func(echo.Context) error { return tt.err })
			rec := serve(e, map[string]string{echo.HeaderXRequestID: "req-1"})

			assert.Equal(t, tt.code, rec.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Contains(t, response.Message, tt.message)
			assert.NotContains(t, response.Message, "secret")
			assert.Equal(t, "req-1", response.RequestID)
		})
	}
}

func TestLogger(t *testing.T) {
	e := newTestEcho(func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	}, Logger(testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/test?last_name=smith", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLogger_RendersHandlerErrorOnce(t *testing.T) {
	e := newTestEcho(func(echo.Context) error {
		return httperror.NewHTTPError(http.StatusNotFound, "no such patient")
	}, Logger(testLogger()))

	rec := serve(e, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Contains(t, response.Message, "no such patient")
}

func TestAuthentication(t *testing.T) {
	verify := func(_ stdcontext.Context, rawToken string) (*UserClaims, error) {
		if rawToken != "good-token" {
			return nil, errors.New("bad signature")
		}
		return &UserClaims{Sub: "user-1", Email: "user@example.com"}, nil
	}

	var userID string
	e := newTestEcho(func(c echo.Context) error {
		userID = context.GetUserID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}, Authentication(testLogger(), verify))

	t.Run("missing bearer", func(t *testing.T) {
		rec := serve(e, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := serve(e, map[string]string{echo.HeaderAuthorization: "Bearer forged"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := serve(e, map[string]string{echo.HeaderAuthorization: "Bearer good-token"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "user-1", userID)
	})
}
