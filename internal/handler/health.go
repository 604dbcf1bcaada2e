package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"hls-relay/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Health returns a fixed OK body for liveness probes.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// statusResponse is the JSON body of GET /status.
type statusResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	PublicURL         string `json:"public_url,omitempty"`
	TLSVerifyDisabled bool   `json:"tls_verify_disabled"`
	MetricsEnabled    bool   `json:"metrics_enabled"`
}

// Status returns relay status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:            "ok",
		Version:           string(h.version),
		PublicURL:         h.cfg.Server.PublicURL,
		TLSVerifyDisabled: h.cfg.Upstream.SkipTLSVerify(),
		MetricsEnabled:    h.cfg.Metrics.Enabled,
	})
}
