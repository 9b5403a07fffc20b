// Package message normalizes recognized text, decides whether it is new
// content, and formats the outbound message.
package message

import (
	"regexp"
	"strings"
	"time"
)

var (
	blankRuns = regexp.MustCompile(`\n{3,}`)
	wsRuns    = regexp.MustCompile(`\s+`)
)

// Normalize trims surrounding whitespace. With keepNewlines, runs of three
// or more newlines collapse to exactly two, preserving paragraph breaks
// while bounding blank-line runs. Otherwise every whitespace run, newlines
// included, collapses to a single space. Idempotent in the latter mode.
func Normalize(text string, keepNewlines bool) string {
	text = strings.TrimSpace(text)
	if keepNewlines {
		return blankRuns.ReplaceAllString(text, "\n\n")
	}
	return wsRuns.ReplaceAllString(text, " ")
}

// ShouldSend reports whether newText warrants a dispatch. Empty text never
// does; otherwise identical consecutive text is suppressed when onlyOnChange
// is set.
func ShouldSend(newText, lastText string, onlyOnChange bool) bool {
	if newText == "" {
		return false
	}
	if onlyOnChange && newText == lastText {
		return false
	}
	return true
}

// Format prefixes a local timestamp line when enabled.
func Format(text string, addTimestamp bool) string {
	if !addTimestamp {
		return text
	}
	return "[" + time.Now().Format("2006-01-02 15:04:05") + "]\n" + text
}
