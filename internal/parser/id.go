package parser

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidID is returned for ids that cannot name a project.
var ErrInvalidID = errors.New("invalid project id")

var (
	knownExtension = regexp.MustCompile(`(?i)\.(det|pou|prt|pvd)$`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	idUnsafe       = regexp.MustCompile(`[^a-z0-9-]`)
	validID        = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// NormalizeID derives the project id shared by every file of one project:
// known extension stripped, lowercased, whitespace turned into "-", anything
// else outside [a-z0-9-] removed. "Vesta 1.6 IM.det" becomes "vesta-16-im".
func NormalizeID(fileName string) string {
	name := knownExtension.ReplaceAllString(filepath.Base(fileName), "")
	name = strings.ToLower(name)
	name = whitespaceRun.ReplaceAllString(name, "-")
	return idUnsafe.ReplaceAllString(name, "")
}

// ValidID reports whether id has the shape NormalizeID produces.
func ValidID(id string) bool {
	return validID.MatchString(id)
}
