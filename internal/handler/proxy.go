package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"hls-relay/internal/client"
	"hls-relay/internal/config"
	"hls-relay/internal/service"
	"hls-relay/internal/translate"
)

// ProxyPath is the route that serves relay requests.
const ProxyPath = "/proxy"

// urlQueryPattern matches query strings of URLs embedded in error messages.
// Pass-through headers and signed origin URLs travel there, so they are kept out of logs.
var urlQueryPattern = regexp.MustCompile(`(https?://[^\s"?]+)\?[^\s"]*`)

// ProxyHandler answers relay requests: it translates the query, fetches the
// target and writes back the transformed response.
type ProxyHandler struct {
	service   *service.RelayService
	publicURL string
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.RelayService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:   svc,
		publicURL: cfg.Server.PublicURL,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle relays a single GET /proxy request. The upstream body is fully
// buffered before anything is written, so a failed rewrite never produces a
// partial response.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr, err := translate.Translate(req.URL.RawQuery)
	if err != nil {
		return h.mapError(c, err)
	}

	resp, err := h.service.Relay(req.Context(), pr, h.relayBase(c))
	if err != nil {
		return h.mapError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// relayBase returns the absolute URL rewritten manifest entries point at.
func (h *ProxyHandler) relayBase(c echo.Context) string {
	if h.publicURL != "" {
		return h.publicURL + ProxyPath
	}
	return c.Scheme() + "://" + c.Request().Host + ProxyPath
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, translate.ErrMissingTarget) {
		h.logger.Debug("rejected request", "err", err)
		return c.String(http.StatusBadRequest, `Missing "url" query parameter`)
	}

	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)

	body := "Proxy error: " + err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return c.String(http.StatusGatewayTimeout, body)
	}

	if errors.Is(err, client.ErrResponseTooLarge) {
		return c.String(http.StatusBadGateway, body)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.String(http.StatusBadGateway, body)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return c.String(http.StatusGatewayTimeout, body)
		}
		return c.String(http.StatusBadGateway, body)
	}

	return c.String(http.StatusInternalServerError, body)
}

// sanitizeError redacts query strings from URLs that may appear in error messages.
func sanitizeError(err error) string {
	return urlQueryPattern.ReplaceAllString(err.Error(), "${1}?[REDACTED]")
}
