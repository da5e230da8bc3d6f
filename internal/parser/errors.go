package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognizedFormat is returned when neither extension nor content
// identifies a file.
var ErrUnrecognizedFormat = errors.New("unrecognized file format")

// FormatError means a single file cannot be parsed at all.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "format error: " + e.Reason
	}
	return fmt.Sprintf("format error in %s: %s", e.Path, e.Reason)
}

// UnknownFormatError is returned by the registry for an unregistered format.
type UnknownFormatError struct {
	Format     Format
	Registered []Format
}

func (e *UnknownFormatError) Error() string {
	names := make([]string, 0, len(e.Registered))
	for _, f := range e.Registered {
		names = append(names, string(f))
	}
	return fmt.Sprintf("unknown format %q (registered: %s)", e.Format, strings.Join(names, ", "))
}

// IsFormatError reports whether err (or anything it wraps) is a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
