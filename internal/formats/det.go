package formats

import (
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

// DetParser reads the basic 24-parameter tabular format.
type DetParser struct {
	logger *zap.Logger
}

var _ parser.Parser = (*DetParser)(nil)

var detSpec = tabularSpec{
	format:   parser.FormatDet,
	metadata: parseDetMetadata,
	renames: map[string]string{
		"TCylMax": parser.ParamTCAv,
	},
	layout: tabularLayout{
		scalar(parser.ParamRPM),
		scalar(parser.ParamPAv),
		scalar(parser.ParamTorque),
		perCylinder(parser.ParamPurCyl),
		perCylinder(parser.ParamTUbMax),
		perCylinder(parser.ParamTCAv),
		perCylinder(parser.ParamPCylMax),
		perCylinder(parser.ParamDeto),
		scalar(parser.ParamConvergence),
	},
	// A line chart needs two points; single-point runs are dropped.
	minDataPoints: 2,
}

// NewDetParser creates a parser for .det files.
func NewDetParser(logger *zap.Logger) *DetParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetParser{logger: logger}
}

func (p *DetParser) Format() parser.Format {
	return parser.FormatDet
}

func (p *DetParser) Parse(path string) (*parser.ProjectRecord, error) {
	return parseTabular(path, detSpec, p.logger)
}

func parseDetMetadata(line string) (parser.EngineMetadata, error) {
	parts, err := metadataFields(line, 2, parser.FormatDet)
	if err != nil {
		return parser.EngineMetadata{}, err
	}
	cylinders, _ := leadingInt(parts[0])
	if err := checkCylinders(cylinders); err != nil {
		return parser.EngineMetadata{}, err
	}
	return parser.EngineMetadata{
		NumCylinders: cylinders,
		EngineType:   parts[1],
	}, nil
}
