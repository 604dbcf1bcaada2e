package service

import (
	"fmt"
	"net/http"
	"strconv"

	"hls-relay/internal/manifest"
	"hls-relay/internal/model"
)

// passthroughResponseHeaders are the only upstream response headers sent back to the caller.
var passthroughResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Last-Modified",
	"Cache-Control",
}

// Result is a transformed upstream response plus what was done to it.
type Result struct {
	Response *model.RelayResponse
	Class    manifest.Class
	Stats    manifest.Stats
	Playlist string // master, media or unknown; empty for opaque bodies
}

// Transform turns an upstream response into the relay response. Manifests are
// rewritten to point at relayBase; everything else is passed through as is.
// The upstream status code is always kept.
func Transform(up *model.UpstreamResponse, targetURL string, pass model.HeaderSet, relayBase string) (*Result, error) {
	res := &Result{
		Response: &model.RelayResponse{
			StatusCode: up.StatusCode,
			Header:     filterResponseHeaders(up.Header),
			Body:       up.Body,
		},
		Class: manifest.Classify(up.ContentType(), targetURL),
	}
	if !res.Class.IsManifest() {
		return res, nil
	}

	body, stats, err := manifest.Rewrite(up.Body, targetURL, relayBase, pass)
	if err != nil {
		return nil, fmt.Errorf("rewrite manifest: %w", err)
	}
	res.Response.Body = body
	res.Response.Header.Set("Content-Length", strconv.Itoa(len(body)))
	res.Stats = stats
	res.Playlist = manifest.Inspect(up.Body)
	return res, nil
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(passthroughResponseHeaders))
	for _, key := range passthroughResponseHeaders {
		if v := src.Get(key); v != "" {
			dst.Set(key, v)
		}
	}
	return dst
}
