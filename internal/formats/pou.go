package formats

import (
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

// PouParser reads the superset 71-parameter tabular format.
type PouParser struct {
	logger *zap.Logger
}

var _ parser.Parser = (*PouParser)(nil)

var pouSpec = tabularSpec{
	format:   parser.FormatPou,
	metadata: parsePouMetadata,
	renames: map[string]string{
		"Purc": parser.ParamPurCyl,
	},
	layout: tabularLayout{
		scalar(parser.ParamRPM),
		scalar(parser.ParamPAv),
		scalar(parser.ParamTorque),
		scalar(parser.ParamTexAv),
		perCylinder(parser.ParamPower),
		perCylinder(parser.ParamIMEP),
		perCylinder(parser.ParamBMEP),
		perCylinder(parser.ParamPMEP),
		scalar(parser.ParamFMEP),
		perCylinder(parser.ParamDRatio),
		perCylinder(parser.ParamPurCyl),
		perCylinder(parser.ParamSeff),
		perCylinder(parser.ParamTeff),
		perCylinder(parser.ParamCeff),
		perCylinder(parser.ParamBSFC),
		perCylinder(parser.ParamTCAv),
		perCylinder(parser.ParamTUbMax),
		perCylinder(parser.ParamMaxDeg),
		scalar(parser.ParamTiming),
		perCylinder(parser.ParamDelay),
		perCylinder(parser.ParamDurat),
		scalar(parser.ParamTAF),
		scalar(parser.ParamVibeDelay),
		scalar(parser.ParamVibeDurat),
		scalar(parser.ParamVibeA),
		scalar(parser.ParamVibeM),
	},
	minDataPoints: 1,
}

// NewPouParser creates a parser for .pou files.
func NewPouParser(logger *zap.Logger) *PouParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PouParser{logger: logger}
}

func (p *PouParser) Format() parser.Format {
	return parser.FormatPou
}

func (p *PouParser) Parse(path string) (*parser.ProjectRecord, error) {
	return parseTabular(path, pouSpec, p.logger)
}

func parsePouMetadata(line string) (parser.EngineMetadata, error) {
	parts, err := metadataFields(line, 5, parser.FormatPou)
	if err != nil {
		return parser.EngineMetadata{}, err
	}
	cylinders, _ := leadingInt(parts[0])
	if err := checkCylinders(cylinders); err != nil {
		return parser.EngineMetadata{}, err
	}
	breath, _ := leadingInt(parts[2])
	turbo, _ := leadingInt(parts[3])
	wasteGate, _ := leadingInt(parts[4])
	return parser.EngineMetadata{
		NumCylinders: cylinders,
		EngineType:   parts[1],
		Breath:       intPtr(breath),
		NumTurbo:     intPtr(turbo),
		NumWasteGate: intPtr(wasteGate),
	}, nil
}
