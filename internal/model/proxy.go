// Package model defines shared types for the relay.
package model

import (
	"net/http"
)

// Header is a single pass-through header supplied by the caller.
type Header struct {
	Name  string
	Value string
}

// HeaderSet is an ordered list of pass-through headers with unique names.
// Order is the first-seen order of the originating query parameters and only
// matters for reproducing generated proxy URLs.
type HeaderSet []Header

// Get returns the value recorded for name.
func (hs HeaderSet) Get(name string) (string, bool) {
	for _, h := range hs {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Set records name=value. An existing entry keeps its position and takes the new value.
func (hs HeaderSet) Set(name, value string) HeaderSet {
	for i := range hs {
		if hs[i].Name == name {
			hs[i].Value = value
			return hs
		}
	}
	return append(hs, Header{Name: name, Value: value})
}

// Map returns the headers as an unordered map, for order-independent comparisons.
func (hs HeaderSet) Map() map[string]string {
	m := make(map[string]string, len(hs))
	for _, h := range hs {
		m[h.Name] = h.Value
	}
	return m
}

// ProxyRequest is a translated inbound relay request.
type ProxyRequest struct {
	TargetURL   string
	PassThrough HeaderSet
}

// UpstreamResponse is the fully buffered origin response.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the declared Content-Type, or "" when absent.
func (u *UpstreamResponse) ContentType() string {
	return u.Header.Get("Content-Type")
}

// RelayResponse is what the relay sends back to its caller.
type RelayResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
