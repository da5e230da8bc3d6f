package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MarkerChar starts every calculation boundary line.
const MarkerChar = "$"

// Exported files sometimes carry an editor line-number prefix ("12→").
var lineNumberPrefix = regexp.MustCompile(`^\s*\d+→`)

// Marker is the id/name split of a calculation boundary line.
type Marker struct {
	ID   string
	Name string
}

// CleanLine strips an optional line-number prefix and surrounding whitespace.
func CleanLine(line string) string {
	return strings.TrimSpace(lineNumberPrefix.ReplaceAllString(line, ""))
}

// IsMarker reports whether line opens a new calculation.
func IsMarker(line string) bool {
	return strings.HasPrefix(CleanLine(line), MarkerChar)
}

// ParseMarker splits a marker line into its id (marker included) and display
// name (marker stripped, trimmed).
func ParseMarker(line string) (Marker, error) {
	cleaned := CleanLine(line)
	if !strings.HasPrefix(cleaned, MarkerChar) {
		return Marker{}, &FormatError{Reason: "not a calculation marker: " + quoteLine(cleaned)}
	}
	return Marker{
		ID:   cleaned,
		Name: strings.TrimSpace(strings.TrimPrefix(cleaned, MarkerChar)),
	}, nil
}

// Fields splits a cleaned line on runs of whitespace.
func Fields(line string) []string {
	return strings.Fields(CleanLine(line))
}

const maxQuotedRunes = 60

func quoteLine(line string) string {
	if utf8.RuneCountInString(line) > maxQuotedRunes {
		line = string([]rune(line)[:maxQuotedRunes]) + "..."
	}
	return `"` + line + `"`
}
