package continuity

import (
	"fmt"
	"regexp"
)

// Legacy messages carry their continuation token inline as a human-readable
// marker appended to the answer text. Messages written since the store
// existed have a structured record instead, but the marker tier stays as a
// permanent safety net for the old ones.

const markerFormat = "Response ID (for conversation continuation): %s"

// markerPattern tolerates platform markup wrapped around the token:
// backticks, bold, italics, links.
var markerPattern = regexp.MustCompile("Response ID \\(for conversation continuation\\):\\s*[*_~`]*([A-Za-z0-9._-]+)")

// FormatMarker renders the legacy inline marker for a token.
func FormatMarker(token string) string {
	return fmt.Sprintf(markerFormat, token)
}

// ExtractMarkerToken scans message text for the legacy marker and returns
// the captured token, or "" when no marker is present.
func ExtractMarkerToken(text string) string {
	m := markerPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
