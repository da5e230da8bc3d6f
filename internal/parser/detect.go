package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

var extensionFormats = map[string]Format{
	".det": FormatDet,
	".pou": FormatPou,
	".prt": FormatPrt,
	".pvd": FormatPvd,
}

// DetectByExtension maps a file extension (case-insensitive) to a format.
func DetectByExtension(path string) (Format, bool) {
	f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// DetectByContent guesses a tabular format from the metadata field count of
// the first line. Both tabular formats share one row grammar, so the count is
// all there is to go on.
func DetectByContent(firstLine string) (Format, bool) {
	n := len(Fields(firstLine))
	switch {
	case n >= 5:
		return FormatPou, true
	case n >= 2:
		return FormatDet, true
	default:
		return "", false
	}
}

// DetectFormat tries the extension first and falls back to content.
func DetectFormat(path, firstLine string) (Format, error) {
	if f, ok := DetectByExtension(path); ok {
		return f, nil
	}
	if f, ok := DetectByContent(firstLine); ok {
		return f, nil
	}
	return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnrecognizedFormat)
}
