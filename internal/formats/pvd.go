package formats

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

const (
	pvdHeaderLine = 17
	pvdMinLines   = 20
)

// PvdParser reads pressure-volume diagram exports.
type PvdParser struct {
	logger *zap.Logger
}

var _ parser.Parser = (*PvdParser)(nil)

// NewPvdParser creates a parser for .pvd files.
func NewPvdParser(logger *zap.Logger) *PvdParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PvdParser{logger: logger}
}

func (p *PvdParser) Format() parser.Format {
	return parser.FormatPvd
}

func (p *PvdParser) Parse(path string) (*parser.ProjectRecord, error) {
	lines, err := parser.ReadLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) < pvdMinLines {
		return nil, &parser.FormatError{Path: path, Reason: "file too short, need at least 20 lines"}
	}

	diagram, cylinders := parsePvdPreamble(lines)
	if err := checkCylinders(cylinders); err != nil {
		return nil, &parser.FormatError{Path: path, Reason: err.Error()}
	}
	engineType := "NATUR"
	if diagram.NumTurbo > 0 {
		engineType = "TURBO"
	}

	want := 1 + 2*cylinders
	for i := pvdHeaderLine + 1; i < len(lines); i++ {
		tokens := strings.Fields(lines[i])
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) < want {
			p.logger.Warn("pv sample has too few values",
				zap.String("file", filepath.Base(path)),
				zap.Int("line", i+1),
				zap.Int("tokens", len(tokens)),
				zap.Int("want", want))
			continue
		}

		sample := parser.PVSample{
			Deg:       parseNumber(tokens[0]),
			Cylinders: make([]parser.PVPoint, cylinders),
		}
		for c := 0; c < cylinders; c++ {
			sample.Cylinders[c] = parser.PVPoint{
				Volume:   parseNumber(tokens[1+2*c]),
				Pressure: parseNumber(tokens[2+2*c]),
			}
		}
		diagram.Samples = append(diagram.Samples, sample)
	}

	return &parser.ProjectRecord{
		FileName: filepath.Base(path),
		Format:   parser.FormatPvd,
		Metadata: parser.EngineMetadata{
			NumCylinders: cylinders,
			EngineType:   engineType,
		},
		ColumnHeaders: strings.Fields(lines[pvdHeaderLine]),
		Calculations:  []parser.Calculation{},
		Diagram:       diagram,
	}, nil
}

// parsePvdPreamble reads the fixed block: RPM, engine counts, eleven system
// scalars, two trace lengths and the firing order split over two lines.
func parsePvdPreamble(lines []string) (*parser.PVDiagram, int) {
	firstInt := func(i int) int {
		v, _ := leadingInt(firstToken(lines[i]))
		return v
	}
	firstFloat := func(i int) float64 {
		return parseNumber(firstToken(lines[i]))
	}

	counts := strings.Fields(lines[1])
	countAt := func(i int) int {
		if i >= len(counts) {
			return 0
		}
		v, _ := leadingInt(counts[i])
		return v
	}
	cylinders := countAt(0)

	diagram := &parser.PVDiagram{
		RPM:      firstInt(0),
		NumTurbo: countAt(1),
		NumExPas: countAt(2),
		NumSuper: countAt(3),
		SystemConfig: parser.PVSystemConfig{
			NumPipIn:     firstInt(2),
			NumColIn:     firstInt(3),
			NumBoxIn:     firstInt(4),
			NumPipEx:     firstInt(5),
			NumColEx:     firstInt(6),
			NumBoxEx:     firstInt(7),
			NumOutPipEx:  firstInt(8),
			NumStepExH:   firstInt(9),
			NumStepEx:    firstInt(10),
			NumExSil:     firstInt(11),
			NumExSilPlen: firstInt(12),
			ITraceL:      firstFloat(13),
			ETraceL:      firstFloat(14),
		},
		FiringOrder: make([]float64, 0),
		Samples:     make([]parser.PVSample, 0),
	}
	for _, line := range lines[15:17] {
		for _, tok := range strings.Fields(line) {
			diagram.FiringOrder = append(diagram.FiringOrder, parseNumber(tok))
		}
	}
	return diagram, cylinders
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
