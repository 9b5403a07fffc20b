package window

import (
	"strings"

	"chatrelay/internal/domain"
)

// containsFold is a case-insensitive substring match. Chat clients localize
// window titles with mixed casing, so the lookup must not be exact.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// candidate is a visible top-level window gathered during enumeration.
type candidate struct {
	handle uintptr
	title  string
	outer  domain.Rect
}

// selectWindow picks the index of the candidate whose title contains the
// substring, preferring the largest outer area so a small child or tool
// window never shadows the main window. Returns -1 when nothing matches.
func selectWindow(cands []candidate, titleSubstring string) int {
	best, bestArea := -1, -1
	for i, c := range cands {
		if c.title == "" || !containsFold(c.title, titleSubstring) {
			continue
		}
		area := c.outer.Width() * c.outer.Height()
		if area > bestArea {
			best, bestArea = i, area
		}
	}
	return best
}
