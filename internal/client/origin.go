// Package client provides the outbound HTTP client used to fetch origin resources.
package client

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hls-relay/internal/config"
	"hls-relay/internal/metrics"
	"hls-relay/internal/model"
)

// ErrResponseTooLarge is returned when an origin body exceeds upstream.max_response_bytes.
var ErrResponseTooLarge = errors.New("upstream response exceeds size limit")

// OriginClient fetches arbitrary origin URLs and buffers their bodies.
type OriginClient struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewOriginClient creates an OriginClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// When upstream.insecure_skip_verify is set (the default), origin TLS
// certificates are not verified.
func NewOriginClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *OriginClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Upstream.SkipTLSVerify(), //nolint:gosec // explicit upstream.insecure_skip_verify
		},
	}

	return &OriginClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		maxBytes: cfg.Upstream.MaxResponseBytes,
		logger:   logger.With("component", "origin_client"),
		metrics:  m,
	}
}

// Fetch issues a GET for targetURL with the given headers and returns the
// fully buffered response. Non-2xx statuses are returned as responses; only
// transport failures are errors. Redirects follow the net/http default policy.
func (c *OriginClient) Fetch(ctx context.Context, targetURL string, header http.Header) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header.Clone()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}

	c.logger.Debug("upstream request",
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(start, 0)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readBody(resp)
	c.observe(start, resp.StatusCode)
	if err != nil {
		return nil, err
	}

	header = resp.Header.Clone()
	if header.Get("Content-Length") != "" {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	if c.metrics != nil {
		c.metrics.UpstreamBytes.Add(float64(len(body)))
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}

// readBody buffers the response body, decoding gzip content the transport
// left encoded because the caller asked for it explicitly.
func (c *OriginClient) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if errors.Is(err, io.EOF) {
			resp.Header.Del("Content-Encoding")
			return []byte{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode gzip body: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
		resp.Header.Del("Content-Encoding")
	}

	if c.maxBytes > 0 {
		r = io.LimitReader(r, c.maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if c.maxBytes > 0 && int64(len(body)) > c.maxBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func (c *OriginClient) observe(start time.Time, status int) {
	if c.metrics == nil {
		return
	}
	method := metrics.NormalizeMethod(http.MethodGet)
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}
