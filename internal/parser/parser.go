package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/morozRed/engview/internal/ignore"
)

// Parser is implemented by each file family.
type Parser interface {
	// Format returns the tag this parser produces.
	Format() Format

	// Parse reads the whole file at path and builds a fresh record.
	Parse(path string) (*ProjectRecord, error)
}

// Registry maps format tags to parsers. It is built once at startup and
// only read afterwards.
type Registry struct {
	parsers map[Format]Parser
}

// NewRegistry creates an empty parser registry
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[Format]Parser)}
}

// Register adds a parser. Registering the same format twice is an error.
func (r *Registry) Register(p Parser) error {
	if p == nil {
		return fmt.Errorf("register parser: nil parser")
	}
	format := p.Format()
	if _, exists := r.parsers[format]; exists {
		return fmt.Errorf("register parser: format %q already registered", format)
	}
	r.parsers[format] = p
	return nil
}

// Parser returns the parser registered for format.
func (r *Registry) Parser(format Format) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, &UnknownFormatError{Format: format, Registered: r.Formats()}
	}
	return p, nil
}

// Has reports whether format is registered.
func (r *Registry) Has(format Format) bool {
	_, ok := r.parsers[format]
	return ok
}

// Formats returns the registered formats, sorted.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFile detects the format of path and dispatches to its parser.
func (r *Registry) ParseFile(path string) (*ProjectRecord, error) {
	format, err := r.Detect(path)
	if err != nil {
		return nil, err
	}
	p, err := r.Parser(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(path)
}

// Detect classifies path by extension, reading its first line only when the
// extension is not conclusive.
func (r *Registry) Detect(path string) (Format, error) {
	if f, ok := DetectByExtension(path); ok {
		return f, nil
	}
	first, err := readFirstLine(path)
	if err != nil {
		return "", err
	}
	return DetectFormat(path, first)
}

// ParseDirectory recursively parses every file with a known extension. One
// broken file becomes an issue; it never aborts the walk.
func (r *Registry) ParseDirectory(root string, ignoreRules []string) (*ParseResult, error) {
	matcher := ignore.NewMatcher(ignoreRules)

	result := &ParseResult{
		RootPath: root,
		Records:  make([]ProjectRecord, 0),
		Issues:   make([]ParseIssue, 0),
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		relPath := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			relPath = rel
		}
		if err != nil {
			result.Issues = append(result.Issues, ParseIssue{
				File:     relPath,
				Severity: "warning",
				Message:  fmt.Sprintf("walk error: %v", err),
			})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.ShouldIgnore(relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		format, ok := DetectByExtension(path)
		if !ok || !r.Has(format) {
			return nil
		}

		record, err := r.ParseFile(path)
		if err != nil {
			result.Issues = append(result.Issues, ParseIssue{
				File:     relPath,
				Format:   format,
				Severity: "error",
				Message:  err.Error(),
			})
			return nil
		}
		record.FileName = relPath
		result.Records = append(result.Records, *record)
		return nil
	})

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].FileName < result.Records[j].FileName
	})
	sort.Slice(result.Issues, func(i, j int) bool {
		if result.Issues[i].File == result.Issues[j].File {
			return result.Issues[i].Message < result.Issues[j].Message
		}
		return result.Issues[i].File < result.Issues[j].File
	})

	return result, err
}

// ReadLines returns the file split on "\n". A trailing newline yields a final
// empty element, which the minimum-length checks count like any other line.
func ReadLines(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(content), "\n"), nil
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	return "", scanner.Err()
}
