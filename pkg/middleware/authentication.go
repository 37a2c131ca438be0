package middleware

import (
	stdcontext "context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const verifyTimeout = 5 * time.Second

// UserClaims are the token claims the service reads
type UserClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// TokenVerifier validates a raw bearer token and returns its claims
type TokenVerifier func(ctx stdcontext.Context, rawToken string) (*UserClaims, error)

// NewOIDCVerifier discovers the issuer and verifies ID tokens issued for clientID
func NewOIDCVerifier(ctx stdcontext.Context, issuer, clientID string) (TokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(ctx stdcontext.Context, rawToken string) (*UserClaims, error) {
		idToken, err := verifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, err
		}

		var claims UserClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("cannot parse claims: %w", err)
		}
		return &claims, nil
	}, nil
}

// Authentication rejects requests without a valid bearer token
func Authentication(logger ectologger.Logger, verify TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			verifyCtx, cancel := stdcontext.WithTimeout(ctx, verifyTimeout)
			defer cancel()

			claims, err := verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(context.SetUserID(c.Request().Context(), claims.Sub)))

			return next(c)
		}
	}
}
