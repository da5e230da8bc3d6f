package formats

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

// The phrase rules below must keep matching the files the simulation tool
// already produced, typos included ("seperate").
var (
	colonValue      = regexp.MustCompile(`:\s*(.+?)(?:\s+\w+)?\s*$`)
	multiSpace      = regexp.MustCompile(`\s{2,}`)
	numericValue    = regexp.MustCompile(`^[-+]?[\d.]+(?:[eE][-+]?\d+)?$`)
	engineWord      = regexp.MustCompile(`(?i)engine`)
	constructedDate = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
	constructedTime = regexp.MustCompile(`(\d{1,2})h:\s*(\d{1,2})min`)
	toolVersion     = regexp.MustCompile(`(?i)Version:\s*(V[\d.]+)`)
	headValves      = regexp.MustCompile(`(?i)with\s+(\d+)\s+valves`)
	throttleCount   = regexp.MustCompile(`(?i)(\d+)\s+throttles`)
	airboxCount     = regexp.MustCompile(`(?i)(\d+)\s+boxes/plenums`)
	manifoldPattern = regexp.MustCompile(`(?i)(\d+into\d+(?:into\d+)?)\s+manifold`)
	intoWord        = regexp.MustCompile(`into`)
)

const (
	sectionSentinel     = "*********"
	intakeSectionStart  = "The INTAKE system has the following Characteristics"
	exhaustSectionStart = "The EXHAUST system has the following Characteristics"
	ignitionModelStart  = "The Ignition model"
	combustionRowWidth  = 7
)

// PrtParser extracts engine specifications from the narrative project file.
// Extraction is best effort: a missing field is logged and left empty.
type PrtParser struct {
	logger *zap.Logger
	now    func() time.Time
}

var _ parser.Parser = (*PrtParser)(nil)

// NewPrtParser creates a parser for .prt narrative files.
func NewPrtParser(logger *zap.Logger) *PrtParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrtParser{logger: logger, now: time.Now}
}

func (p *PrtParser) Format() parser.Format {
	return parser.FormatPrt
}

func (p *PrtParser) Parse(path string) (*parser.ProjectRecord, error) {
	lines, err := parser.ReadLines(path)
	if err != nil {
		return nil, err
	}

	specs := p.extract(lines)
	specs.PrtFileName = filepath.Base(path)
	p.reportMissing(specs)

	return &parser.ProjectRecord{
		FileName: filepath.Base(path),
		Format:   parser.FormatPrt,
		Metadata: parser.EngineMetadata{
			NumCylinders: specs.Engine.Cylinders,
			EngineType:   specs.Engine.Type,
		},
		ColumnHeaders: []string{},
		Calculations:  []parser.Calculation{},
		Specs:         specs,
	}, nil
}

type narrativeState struct {
	inIntake     bool
	inExhaust    bool
	inIgnition   bool
	intakeLines  []string
	exhaustLines []string
	curve        parser.CombustionCurve
}

func (p *PrtParser) extract(lines []string) *parser.EngineSpecs {
	specs := &parser.EngineSpecs{}
	engine := &specs.Engine
	st := &narrativeState{}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.Contains(line, "engine") && engine.Name == "" && i < 20 {
			engine.Name = projectName(line)
		}

		if strings.Contains(line, "constructed on:") && specs.Created == "" {
			timeLine := ""
			if i+1 < len(lines) {
				timeLine = lines[i+1]
			}
			specs.Created = p.creationDate(line, timeLine)
		}

		if strings.Contains(line, "Dat4T Version:") && specs.DatVersion == "" {
			specs.DatVersion = "Unknown"
			if m := toolVersion.FindStringSubmatch(line); m != nil {
				specs.DatVersion = m[1]
			}
		}

		if strings.Contains(line, "This is a") && (strings.Contains(line, "Aspirated") || strings.Contains(line, "charged")) {
			engine.Type = classifyEngineType(line)
		}

		if strings.Contains(line, "Number of cylinders") && engine.Cylinders == 0 {
			if v, ok := extractValue(line); ok {
				engine.Cylinders, _ = leadingInt(v)
			}
		}

		if strings.Contains(line, "The engine is an") && strings.Contains(line, "TYPE") {
			engine.Configuration = classifyConfiguration(line)
		}

		if strings.Contains(line, "Bore") && !strings.Contains(line, "Bored") && engine.Bore == 0 {
			engine.Bore = extractFloat(line)
		}

		if strings.Contains(line, "Stroke") && engine.Stroke == 0 {
			engine.Stroke = extractFloat(line)
		}

		if strings.Contains(line, "Geometric Compression Ratio") && engine.CompressionRatio == 0 {
			engine.CompressionRatio = extractFloat(line)
		}

		if strings.Contains(line, "RPM for Maximum Power") && engine.MaxPowerRPM == 0 {
			engine.MaxPowerRPM = extractFloat(line)
		}

		if strings.Contains(line, "Cylinder head") && strings.Contains(line, "valves") && engine.ValvesPerCylinder == 0 {
			if m := headValves.FindStringSubmatch(line); m != nil {
				engine.ValvesPerCylinder, _ = leadingInt(m[1])
			}
		}

		if strings.Contains(line, "Number of exhaust valves") && engine.ExhaustValves == 0 {
			if v, ok := extractValue(line); ok {
				engine.ExhaustValves, _ = leadingInt(v)
			}
		}

		if strings.Contains(line, "Number of inlet valves") && engine.InletValves == 0 {
			if v, ok := extractValue(line); ok {
				engine.InletValves, _ = leadingInt(v)
			}
		}

		if strings.Contains(line, intakeSectionStart) {
			st.inIntake = true
			st.inExhaust = false
			st.intakeLines = nil
		} else if st.inIntake {
			if strings.Contains(line, sectionSentinel) || strings.Contains(line, ignitionModelStart) {
				st.inIntake = false
				if engine.IntakeSystem == "" && engine.Cylinders != 0 {
					engine.IntakeSystem = classifyIntake(st.intakeLines, engine.Cylinders)
				}
			} else {
				st.intakeLines = append(st.intakeLines, line)
			}
		}

		if strings.Contains(line, exhaustSectionStart) {
			st.inExhaust = true
			st.inIntake = false
			st.exhaustLines = nil
		} else if st.inExhaust {
			if strings.Contains(line, sectionSentinel) || strings.Contains(line, "The INTAKE system") {
				st.inExhaust = false
				if engine.ExhaustSystem == "" {
					engine.ExhaustSystem = classifyExhaust(st.exhaustLines)
				}
			} else {
				st.exhaustLines = append(st.exhaustLines, line)
			}
		}

		p.scanCombustion(line, st)
	}

	if engine.IntakeSystem == "" && len(st.intakeLines) > 0 && engine.Cylinders != 0 {
		engine.IntakeSystem = classifyIntake(st.intakeLines, engine.Cylinders)
	}
	if engine.ExhaustSystem == "" && len(st.exhaustLines) > 0 {
		engine.ExhaustSystem = classifyExhaust(st.exhaustLines)
	}

	if specs.Created == "" {
		specs.Created = p.now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	engine.Displacement = displacement(engine.Bore, engine.Stroke, engine.Cylinders)

	if len(st.curve.Points) > 0 {
		curve := st.curve
		specs.Combustion = &curve
	}
	return specs
}

// scanCombustion collects the fuel description and the ignition table. The
// table starts after the ignition model heading and ends at the section
// sentinel or at the next system heading.
func (p *PrtParser) scanCombustion(line string, st *narrativeState) {
	if strings.Contains(line, "Fuel type") && st.curve.FuelType == "" {
		if v, ok := extractValue(line); ok {
			st.curve.FuelType = v
		}
	}
	if strings.Contains(line, "Nitromethane") && st.curve.NitromethaneRatio == 0 {
		st.curve.NitromethaneRatio = extractFloat(line)
	}

	switch {
	case strings.Contains(line, ignitionModelStart):
		st.inIgnition = true
		return
	case !st.inIgnition:
		return
	case strings.Contains(line, sectionSentinel),
		strings.Contains(line, intakeSectionStart),
		strings.Contains(line, exhaustSectionStart):
		st.inIgnition = false
		return
	}

	fields := strings.Fields(line)
	if len(fields) < combustionRowWidth {
		return
	}
	values := make([]float64, combustionRowWidth)
	for i := range values {
		if !numericValue.MatchString(fields[i]) {
			return
		}
		values[i] = parseNumber(fields[i])
	}
	st.curve.Points = append(st.curve.Points, parser.CombustionPoint{
		RPM:      values[0],
		Timing:   values[1],
		AFR:      values[2],
		Delay:    values[3],
		Duration: values[4],
		VibeA:    values[5],
		VibeM:    values[6],
	})
}

func (p *PrtParser) creationDate(dateLine, timeLine string) string {
	dm := constructedDate.FindStringSubmatch(dateLine)
	if dm == nil {
		return p.now().UTC().Format("2006-01-02T15:04:05.000Z")
	}

	hours, minutes := "00", "00"
	if tm := constructedTime.FindStringSubmatch(timeLine); tm != nil {
		hours, minutes = pad2(tm[1]), pad2(tm[2])
	}
	return fmt.Sprintf("%s-%s-%sT%s:%s:00Z", dm[3], pad2(dm[2]), pad2(dm[1]), hours, minutes)
}

func (p *PrtParser) reportMissing(specs *parser.EngineSpecs) {
	missing := make([]string, 0)
	if specs.Engine.Name == "" {
		missing = append(missing, "name")
	}
	if specs.Engine.Cylinders == 0 {
		missing = append(missing, "cylinders")
	}
	if specs.Engine.Bore == 0 {
		missing = append(missing, "bore")
	}
	if specs.Engine.Stroke == 0 {
		missing = append(missing, "stroke")
	}
	if len(missing) > 0 {
		p.logger.Warn("narrative fields not found",
			zap.String("file", specs.PrtFileName),
			zap.Strings("fields", missing))
	}
}

// extractValue reads "label : value unit" first and falls back to the first
// numeric column of a space-aligned line.
func extractValue(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if m := colonValue.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	parts := multiSpace.Split(line, -1)
	for i := 1; i < len(parts); i++ {
		value := strings.TrimSpace(parts[i])
		if numericValue.MatchString(value) {
			return value, true
		}
	}
	return "", false
}

func extractFloat(line string) float64 {
	v, ok := extractValue(line)
	if !ok {
		return 0
	}
	f, _ := leadingFloat(v)
	return f
}

func classifyEngineType(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "naturally aspirated"):
		return "NA"
	case strings.Contains(lower, "turbocharged"):
		return "Turbo"
	case strings.Contains(lower, "supercharged"):
		return "Supercharged"
	default:
		return "NA"
	}
}

func classifyConfiguration(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "inline"):
		return "inline"
	case strings.Contains(lower, "vee"), strings.Contains(lower, "v-type"):
		return "vee"
	default:
		return "unknown"
	}
}

// classifyIntake returns Carb, ITB or IM.
func classifyIntake(lines []string, cylinders int) string {
	text := strings.ToLower(strings.Join(lines, "\n"))

	if strings.Contains(text, "collected intake pipes") {
		return "Carb"
	}
	if strings.Contains(text, "seperate intake pipes") {
		if strings.Contains(text, "with no airboxes") && strings.Contains(text, "but with throttles") {
			return "ITB"
		}
		if strings.Contains(text, "with a common airbox") || strings.Contains(text, "with a common plenum") {
			return "IM"
		}
	}

	// Older exports only state the counts.
	tm := throttleCount.FindStringSubmatch(text)
	am := airboxCount.FindStringSubmatch(text)
	if tm != nil && am != nil {
		throttles, _ := leadingInt(tm[1])
		airboxes, _ := leadingInt(am[1])
		if throttles == cylinders && airboxes == 0 {
			return "ITB"
		}
	}
	return "IM"
}

func classifyExhaust(lines []string) string {
	text := strings.ToLower(strings.Join(lines, "\n"))

	if m := manifoldPattern.FindStringSubmatch(text); m != nil {
		return intoWord.ReplaceAllString(m[1], "-")
	}
	if strings.Contains(text, "tri-y") || strings.Contains(text, "tri y") {
		return "tri-y"
	}
	return "unknown"
}

// displacement in litres from bore and stroke in millimetres.
func displacement(bore, stroke float64, cylinders int) float64 {
	if bore <= 0 || stroke <= 0 || cylinders <= 0 {
		return 0
	}
	v := math.Pi / 4 * bore * bore * stroke * float64(cylinders) / 1e6
	return math.Round(v*100) / 100
}

// projectName drops the first "engine" (any case) from the heading line.
func projectName(line string) string {
	loc := engineWord.FindStringIndex(line)
	if loc == nil {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(line[:loc[0]] + line[loc[1]:])
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
