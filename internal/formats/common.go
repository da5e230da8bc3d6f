package formats

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

var (
	cylinderSuffix = regexp.MustCompile(`\(\s*\d+\s*\)`)
	leadingNumber  = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
	leadingInteger = regexp.MustCompile(`^[-+]?\d+`)
)

// maxCylinders bounds the cylinder count read from a file header. Every
// per-cylinder slice is sized from it.
const maxCylinders = 64

func checkCylinders(n int) error {
	if n < 1 || n > maxCylinders {
		return fmt.Errorf("implausible cylinder count %d, want 1..%d", n, maxCylinders)
	}
	return nil
}

// column is one entry of a tabular row layout. Per-cylinder columns expand
// to one token per cylinder.
type column struct {
	name        string
	perCylinder bool
}

func scalar(name string) column      { return column{name: name} }
func perCylinder(name string) column { return column{name: name, perCylinder: true} }

type tabularLayout []column

// tabularSpec describes everything that differs between the two tabular
// formats. The envelope (metadata line, header line, marker/row stream) is
// shared.
type tabularSpec struct {
	format        parser.Format
	metadata      func(line string) (parser.EngineMetadata, error)
	renames       map[string]string
	layout        tabularLayout
	minDataPoints int
}

func parseTabular(path string, spec tabularSpec, logger *zap.Logger) (*parser.ProjectRecord, error) {
	lines, err := parser.ReadLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) < 3 {
		return nil, &parser.FormatError{Path: path, Reason: "file too short, need at least 3 lines"}
	}

	meta, err := spec.metadata(lines[0])
	if err != nil {
		return nil, &parser.FormatError{Path: path, Reason: err.Error()}
	}
	headers := mapHeaders(parser.Fields(lines[1]), spec.renames)

	log := logger.With(zap.String("file", filepath.Base(path)), zap.String("format", spec.format.String()))

	calculations := make([]parser.Calculation, 0)
	var current *parser.Calculation

	flush := func() {
		if current == nil {
			return
		}
		n := len(current.DataPoints)
		switch {
		case n >= spec.minDataPoints:
			calculations = append(calculations, *current)
		case n > 0:
			log.Warn("dropping calculation with too few data points",
				zap.String("calculation", current.Name),
				zap.Int("points", n),
				zap.Int("min", spec.minDataPoints))
		}
	}

	for i := 2; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}

		if parser.IsMarker(line) {
			flush()
			marker, err := parser.ParseMarker(line)
			if err != nil {
				return nil, err
			}
			current = &parser.Calculation{
				ID:         marker.ID,
				Name:       marker.Name,
				DataPoints: make([]parser.DataPoint, 0),
			}
			continue
		}
		if current == nil {
			continue
		}

		tokens := parser.Fields(line)
		if len(tokens) != len(headers) {
			log.Warn("row token count does not match headers",
				zap.Int("line", i+1),
				zap.Int("tokens", len(tokens)),
				zap.Int("headers", len(headers)))
			continue
		}
		current.DataPoints = append(current.DataPoints, decodeRow(tokens, spec.layout, meta.NumCylinders))
	}
	flush()

	return &parser.ProjectRecord{
		FileName:      filepath.Base(path),
		Format:        spec.format,
		Metadata:      meta,
		ColumnHeaders: headers,
		Calculations:  calculations,
	}, nil
}

// decodeRow walks tokens in layout order. Tokens past the end read as 0 so a
// short row still yields per-cylinder slices of the right length.
func decodeRow(tokens []string, layout tabularLayout, cylinders int) parser.DataPoint {
	var point parser.DataPoint
	idx := 0
	next := func() float64 {
		v := 0.0
		if idx < len(tokens) {
			v = parseNumber(tokens[idx])
		}
		idx++
		return v
	}

	for _, col := range layout {
		if col.perCylinder {
			values := make([]float64, max(cylinders, 0))
			for i := range values {
				values[i] = next()
			}
			point.SetPerCylinder(col.name, values)
			continue
		}

		v := next()
		switch col.name {
		case parser.ParamRPM:
			point.RPM = v
		case parser.ParamPAv:
			point.PAv = v
		case parser.ParamTorque:
			point.Torque = v
		default:
			point.SetScalar(col.name, v)
		}
	}
	return point
}

// mapHeaders applies a rename table to the base name of each header and
// keeps any "( n)" cylinder suffix.
func mapHeaders(headers []string, renames map[string]string) []string {
	out := make([]string, len(headers))
	for i, header := range headers {
		base := strings.TrimSpace(cylinderSuffix.ReplaceAllString(header, ""))
		if renamed, ok := renames[base]; ok {
			base = renamed
		}
		if suffix := cylinderSuffix.FindString(header); suffix != "" {
			base += suffix
		}
		out[i] = base
	}
	return out
}

func metadataFields(line string, want int, format parser.Format) ([]string, error) {
	parts := parser.Fields(line)
	if len(parts) < want {
		return nil, fmt.Errorf("malformed %s metadata line: need %d fields, got %d", format, want, len(parts))
	}
	return parts, nil
}

// parseNumber reads the leading number of s, 0 when there is none.
func parseNumber(s string) float64 {
	v, _ := leadingFloat(s)
	return v
}

func leadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func leadingInt(s string) (int, bool) {
	m := leadingInteger.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intPtr(v int) *int {
	return &v
}
