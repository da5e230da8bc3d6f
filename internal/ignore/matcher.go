// Package ignore filters data-directory walks with gitignore-style rules.
package ignore

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the per-directory rules file read by Load.
const FileName = ".engviewignore"

// DefaultRules are applied before any user rules. User negations can
// re-include what they exclude.
var DefaultRules = []string{
	".git/",
	".metadata/",
	"node_modules/",
	".DS_Store",
	"~$*",
	"*.tmp",
	"*.bak",
}

type rule struct {
	negated  bool
	dirOnly  bool
	anchored bool
	nested   bool
	pattern  string
	re       *regexp.Regexp
}

// Matcher applies rules in order; the last matching rule wins.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles DefaultRules followed by userRules. Malformed lines
// are skipped.
func NewMatcher(userRules []string) *Matcher {
	all := make([]string, 0, len(DefaultRules)+len(userRules))
	all = append(all, DefaultRules...)
	all = append(all, userRules...)

	m := &Matcher{rules: make([]rule, 0, len(all))}
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			m.rules = append(m.rules, parsed)
		}
	}
	return m
}

// Load reads root/.engviewignore. A missing file yields no rules.
func Load(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ShouldIgnore reports whether relPath (relative to the walk root) is
// excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" || relPath == "." {
		return false
	}
	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	re, err := regexp.Compile("^" + globToRegex(line) + "$")
	if err != nil {
		return rule{}, false
	}
	r.pattern = line
	r.nested = strings.Contains(line, "/")
	r.re = re
	return r, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")

	if r.dirOnly {
		// Any ancestor directory, or the path itself when it is a directory.
		limit := len(parts) - 1
		if isDir {
			limit = len(parts)
		}
		for i := 0; i < limit; i++ {
			if r.matchPrefix(parts, i) {
				return true
			}
		}
		return false
	}

	if r.anchored || r.nested {
		if r.re.MatchString(relPath) {
			return true
		}
		if r.anchored {
			return false
		}
		for i := 1; i < len(parts); i++ {
			if r.re.MatchString(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	for _, segment := range parts {
		if r.re.MatchString(segment) {
			return true
		}
	}
	return false
}

// matchPrefix tests the directory parts[:i+1] against a directory rule.
func (r rule) matchPrefix(parts []string, i int) bool {
	if r.anchored || r.nested {
		return r.re.MatchString(strings.Join(parts[:i+1], "/"))
	}
	return r.re.MatchString(parts[i])
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return b.String()
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
