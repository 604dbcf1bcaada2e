package manifest

import (
	"bytes"

	"github.com/grafov/m3u8"
)

// Playlist kinds reported by Inspect.
const (
	PlaylistMaster  = "master"
	PlaylistMedia   = "media"
	PlaylistUnknown = "unknown"
)

// Inspect decodes body leniently and reports whether it is a master or media
// playlist. It is informational only; the rewrite never depends on it.
// Playlists the decoder cannot cope with, including ones that make it panic
// (an #EXT-X-MAP before any #EXTINF, a malformed MAP BYTERANGE), are unknown.
func Inspect(body []byte) (kind string) {
	defer func() {
		if recover() != nil {
			kind = PlaylistUnknown
		}
	}()

	_, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return PlaylistUnknown
	}
	switch listType {
	case m3u8.MASTER:
		return PlaylistMaster
	case m3u8.MEDIA:
		return PlaylistMedia
	default:
		return PlaylistUnknown
	}
}
