// Package translate converts relay query strings into proxy requests and back.
package translate

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"hls-relay/internal/model"
)

const (
	// TargetParam names the query parameter carrying the resource to fetch.
	TargetParam = "url"
	// HeaderPrefix marks query parameters that become outbound headers.
	HeaderPrefix = "h_"
)

// ErrMissingTarget is returned when the url query parameter is absent or empty.
var ErrMissingTarget = errors.New(`missing "url" query parameter`)

// Translate parses a raw query string into a ProxyRequest.
//
// Every parameter whose key starts with HeaderPrefix becomes a pass-through
// header named by the rest of the key. Headers keep the position of their
// first occurrence; a later duplicate overwrites the value.
func Translate(rawQuery string) (*model.ProxyRequest, error) {
	pr := &model.ProxyRequest{}
	targetSeen := false

	for _, p := range parsePairs(rawQuery) {
		if p.key == TargetParam {
			if !targetSeen {
				pr.TargetURL = p.value
				targetSeen = true
			}
			continue
		}
		name, ok := strings.CutPrefix(p.key, HeaderPrefix)
		if !ok || !validHeader(name, p.value) {
			continue
		}
		pr.PassThrough = pr.PassThrough.Set(name, p.value)
	}

	if pr.TargetURL == "" {
		return nil, ErrMissingTarget
	}
	return pr, nil
}

// OutboundHeaders overlays the pass-through headers onto a copy of baseline.
func OutboundHeaders(baseline http.Header, pass model.HeaderSet) http.Header {
	h := baseline.Clone()
	if h == nil {
		h = make(http.Header, len(pass))
	}
	for _, p := range pass {
		h.Set(p.Name, p.Value)
	}
	return h
}

// Encode builds the relay URL that fetches target with the given pass-through
// headers: relayBase?h_Name=value&...&url=<escaped target>.
func Encode(relayBase string, pass model.HeaderSet, target string) string {
	var b strings.Builder
	b.Grow(len(relayBase) + len(target)*3/2 + 16)
	b.WriteString(relayBase)
	b.WriteByte('?')
	for _, p := range pass {
		b.WriteString(url.QueryEscape(HeaderPrefix + p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
		b.WriteByte('&')
	}
	b.WriteString(TargetParam)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(target))
	return b.String()
}

type pair struct {
	key   string
	value string
}

// parsePairs decodes a query string like url.ParseQuery but keeps the
// original parameter order. Malformed escapes are kept as written.
func parsePairs(rawQuery string) []pair {
	var pairs []pair
	for rawQuery != "" {
		var part string
		part, rawQuery, _ = strings.Cut(rawQuery, "&")
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, pair{key: unescape(k), value: unescape(v)})
	}
	return pairs
}

// unescape query-decodes s, returning it unchanged when it holds a bad escape.
func unescape(s string) string {
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}

func validHeader(name, value string) bool {
	return name != "" && httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}
