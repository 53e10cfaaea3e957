package video

import (
	"regexp"
)

// idPattern matches the recognized YouTube URL shapes: watch-style,
// short-link and embed, with optional scheme and www prefix. Anchored at
// the start so garbage before the host never matches. The capture group is
// the 11-character identifier.
var idPattern = regexp.MustCompile(
	`^(?:https?://)?(?:www\.)?(?:youtube\.com/(?:watch\?v=|embed/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})`,
)

// ExtractID parses a raw URL into a canonical video ID. It is pure; any
// string that does not match a recognized shape fails with ErrInvalidURL.
func ExtractID(raw string) (ID, error) {
	m := idPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrInvalidURL
	}
	return ID(m[1]), nil
}
