// Package service implements the core relay logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"hls-relay/internal/config"
	"hls-relay/internal/metrics"
	"hls-relay/internal/model"
	"hls-relay/internal/translate"
)

// Fetcher performs the outbound GET for a relay request. Every HTTP status is
// a valid response; only transport failures are errors.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, header http.Header) (*model.UpstreamResponse, error)
}

// RelayService fetches targets on behalf of callers and transforms the responses.
type RelayService struct {
	fetcher  Fetcher
	baseline http.Header
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewRelayService creates a RelayService.
// The metrics parameter is optional; pass nil to disable manifest metrics.
func NewRelayService(f Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *RelayService {
	return &RelayService{
		fetcher:  f,
		baseline: BaselineHeaders(cfg),
		logger:   logger.With("component", "relay_service"),
		metrics:  m,
	}
}

// BaselineHeaders returns the default outbound headers. Pass-through headers
// override them per request.
func BaselineHeaders(cfg *config.Config) http.Header {
	h := make(http.Header)
	if cfg.Upstream.UserAgent != "" {
		h.Set("User-Agent", cfg.Upstream.UserAgent)
	}
	for k, v := range cfg.Upstream.Headers {
		h.Set(k, v)
	}
	return h
}

// Relay fetches pr.TargetURL with the caller's headers and returns the
// response to send back. Manifest URLs are rewritten to go through relayBase.
func (s *RelayService) Relay(ctx context.Context, pr *model.ProxyRequest, relayBase string) (*model.RelayResponse, error) {
	header := translate.OutboundHeaders(s.baseline, pr.PassThrough)

	s.logger.Debug("fetching upstream",
		"pass_through_headers", len(pr.PassThrough),
	)

	up, err := s.fetcher.Fetch(ctx, pr.TargetURL, header)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream: %w", err)
	}

	res, err := Transform(up, pr.TargetURL, pr.PassThrough, relayBase)
	if err != nil {
		return nil, err
	}

	if res.Class.IsManifest() {
		s.logger.Debug("manifest rewritten",
			"classified_by", res.Class.String(),
			"playlist", res.Playlist,
			"lines", res.Stats.Lines,
			"rewritten", res.Stats.Rewritten,
			"fallbacks", res.Stats.Fallbacks,
		)
		if s.metrics != nil {
			s.metrics.ManifestsRewritten.WithLabelValues(res.Playlist).Inc()
			s.metrics.ResolutionFallbacks.Add(float64(res.Stats.Fallbacks))
		}
	}

	return res.Response, nil
}
