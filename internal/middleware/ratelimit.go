package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"hls-relay/internal/config"
)

// RateLimiter returns a per-client-IP rate limiting middleware. Rejected
// requests get a plain-text 429, matching the relay's other error bodies.
func RateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RequestsPerSecond))

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			logger.Debug("rate limited", "remote_ip", identifier, "path", c.Request().URL.Path)
			return c.String(http.StatusTooManyRequests, "Too many requests")
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	})
}
