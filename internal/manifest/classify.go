// Package manifest classifies upstream responses and rewrites HLS playlists
// so that every referenced URL is fetched back through the relay.
package manifest

import (
	"net/url"
	"strings"
)

// Extension is the playlist file extension recognised when no manifest
// content type is declared.
const Extension = ".m3u8"

// contentTypeMarkers are the manifest MIME types, matched as lower-case substrings.
var contentTypeMarkers = []string{
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
}

// Class is the outcome of manifest-vs-opaque classification.
type Class int

const (
	// Opaque bodies are forwarded unchanged.
	Opaque Class = iota
	// ByContentType marks a manifest recognised from its declared content type.
	ByContentType
	// ByExtension marks a manifest recognised from the target URL extension.
	ByExtension
)

// IsManifest reports whether the body must be rewritten.
func (c Class) IsManifest() bool {
	return c == ByContentType || c == ByExtension
}

func (c Class) String() string {
	switch c {
	case ByContentType:
		return "content_type"
	case ByExtension:
		return "extension"
	default:
		return "opaque"
	}
}

// Classify decides how a response is handled. The declared content type takes
// precedence over the target extension; anything else is opaque.
func Classify(contentType, targetURL string) Class {
	ct := strings.ToLower(contentType)
	for _, marker := range contentTypeMarkers {
		if strings.Contains(ct, marker) {
			return ByContentType
		}
	}
	if hasManifestExtension(targetURL) {
		return ByExtension
	}
	return Opaque
}

// hasManifestExtension checks the raw target and, when it parses, its path,
// so that a signed playlist URL with a query string is still recognised.
func hasManifestExtension(targetURL string) bool {
	if strings.HasSuffix(targetURL, Extension) {
		return true
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, Extension)
}
