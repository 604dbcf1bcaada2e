package manifest

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"hls-relay/internal/model"
	"hls-relay/internal/translate"
)

// ErrInvalidEncoding is returned when a manifest body is not valid UTF-8.
var ErrInvalidEncoding = errors.New("manifest body is not valid UTF-8")

// tagMarker starts every playlist tag and comment line.
const tagMarker = "#"

// uriAttrPattern matches URI="..." attributes, e.g. in #EXT-X-KEY and #EXT-X-MAP.
var uriAttrPattern = regexp.MustCompile(`URI="([^"]*)"`)

// LineKind classifies a single playlist line.
type LineKind int

const (
	Blank LineKind = iota
	Tag
	MediaReference
)

// ClassifyLine returns the kind of a raw playlist line.
func ClassifyLine(line string) LineKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Blank
	case strings.HasPrefix(trimmed, tagMarker):
		return Tag
	default:
		return MediaReference
	}
}

// Stats describes one rewrite.
type Stats struct {
	Lines     int // lines in the playlist, equal before and after
	Rewritten int // URLs replaced with relay URLs
	Fallbacks int // references that could not be resolved and were kept verbatim
}

// Rewriter rewrites playlists fetched from one target URL.
type Rewriter struct {
	relayBase string
	pass      model.HeaderSet
	base      *url.URL // nil when target does not parse
	stats     Stats
}

// NewRewriter returns a Rewriter resolving references against target and
// pointing them back at relayBase with the pass-through headers re-encoded.
func NewRewriter(target, relayBase string, pass model.HeaderSet) *Rewriter {
	base, _ := url.Parse(target)
	return &Rewriter{
		relayBase: relayBase,
		pass:      pass,
		base:      base,
	}
}

// Rewrite returns the rewritten playlist. The whole body is rewritten or an
// error is returned; line count and blank lines are preserved.
func (r *Rewriter) Rewrite(body []byte) ([]byte, Stats, error) {
	if !utf8.Valid(body) {
		return nil, Stats{}, ErrInvalidEncoding
	}
	r.stats = Stats{}

	lines := strings.Split(string(body), "\n")
	for i, line := range lines {
		lines[i] = r.rewriteLine(line)
	}
	r.stats.Lines = len(lines)

	return []byte(strings.Join(lines, "\n")), r.stats, nil
}

func (r *Rewriter) rewriteLine(line string) string {
	switch ClassifyLine(line) {
	case Tag:
		if !strings.Contains(line, `URI="`) {
			return line
		}
		return uriAttrPattern.ReplaceAllStringFunc(line, func(attr string) string {
			raw := attr[len(`URI="`) : len(attr)-1]
			return `URI="` + r.proxyURL(raw) + `"`
		})
	case MediaReference:
		return r.proxyURL(strings.TrimSpace(line))
	default:
		return line
	}
}

func (r *Rewriter) proxyURL(ref string) string {
	abs, ok := r.resolve(ref)
	if !ok {
		r.stats.Fallbacks++
	}
	r.stats.Rewritten++
	return translate.Encode(r.relayBase, r.pass, abs)
}

func (r *Rewriter) resolve(ref string) (string, bool) {
	if r.base == nil {
		return ref, false
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref, false
	}
	return r.base.ResolveReference(rel).String(), true
}

// Resolve resolves ref against base. When either fails to parse, ref is
// returned verbatim and ok is false.
func Resolve(base, ref string) (resolved string, ok bool) {
	return NewRewriter(base, "", nil).resolve(ref)
}

// Rewrite is a convenience wrapper around NewRewriter(...).Rewrite.
func Rewrite(body []byte, target, relayBase string, pass model.HeaderSet) ([]byte, Stats, error) {
	return NewRewriter(target, relayBase, pass).Rewrite(body)
}
