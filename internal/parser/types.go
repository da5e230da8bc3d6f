package parser

import (
	"encoding/json"
	"sort"
)

// Format identifies one of the supported file families.
type Format string

const (
	FormatDet    Format = "det"
	FormatPou    Format = "pou"
	FormatPrt    Format = "prt"
	FormatPvd    Format = "pvd"
	FormatMerged Format = "pou-merged"
)

func (f Format) String() string {
	return string(f)
}

// Tabular reports whether records of this format carry calculations.
func (f Format) Tabular() bool {
	switch f {
	case FormatDet, FormatPou, FormatMerged:
		return true
	default:
		return false
	}
}

// EngineMetadata is the first-line metadata of a parsed file. The
// breath/turbo/waste-gate counts are only present for the superset format.
type EngineMetadata struct {
	NumCylinders int    `json:"numCylinders"`
	EngineType   string `json:"engineType"`
	Breath       *int   `json:"breath,omitempty"`
	NumTurbo     *int   `json:"numTurbo,omitempty"`
	NumWasteGate *int   `json:"numWasteGate,omitempty"`
}

// Calculation is one named run of RPM-indexed data points.
type Calculation struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	DataPoints []DataPoint `json:"dataPoints"`
}

// DataPoint holds one row of a tabular file. RPM, P-Av and Torque are
// common to every tabular format; everything else is keyed by canonical
// parameter name. Per-cylinder slices are positional, index 0 = cylinder 1.
type DataPoint struct {
	RPM    float64
	PAv    float64
	Torque float64

	scalars   map[string]float64
	cylinders map[string][]float64
}

// SetScalar stores a scalar parameter.
func (p *DataPoint) SetScalar(name string, v float64) {
	if p.scalars == nil {
		p.scalars = make(map[string]float64)
	}
	p.scalars[name] = v
}

// SetPerCylinder stores a per-cylinder parameter.
func (p *DataPoint) SetPerCylinder(name string, values []float64) {
	if p.cylinders == nil {
		p.cylinders = make(map[string][]float64)
	}
	p.cylinders[name] = values
}

func (p DataPoint) Scalar(name string) (float64, bool) {
	v, ok := p.scalars[name]
	return v, ok
}

func (p DataPoint) PerCylinder(name string) ([]float64, bool) {
	v, ok := p.cylinders[name]
	return v, ok
}

// Fields returns every parameter name set on the point (RPM, P-Av and
// Torque included), sorted.
func (p DataPoint) Fields() []string {
	out := []string{ParamRPM, ParamPAv, ParamTorque}
	for name := range p.scalars {
		out = append(out, name)
	}
	for name := range p.cylinders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy so merged records never alias their inputs.
func (p DataPoint) Clone() DataPoint {
	out := DataPoint{RPM: p.RPM, PAv: p.PAv, Torque: p.Torque}
	for name, v := range p.scalars {
		out.SetScalar(name, v)
	}
	for name, values := range p.cylinders {
		out.SetPerCylinder(name, append([]float64(nil), values...))
	}
	return out
}

// MarshalJSON flattens the point into a single object keyed by parameter name.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, 3+len(p.scalars)+len(p.cylinders))
	flat[ParamRPM] = p.RPM
	flat[ParamPAv] = p.PAv
	flat[ParamTorque] = p.Torque
	for name, v := range p.scalars {
		flat[name] = v
	}
	for name, values := range p.cylinders {
		flat[name] = values
	}
	return json.Marshal(flat)
}

// UnmarshalJSON accepts the flat form produced by MarshalJSON.
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*p = DataPoint{}
	for name, raw := range flat {
		var scalar float64
		if err := json.Unmarshal(raw, &scalar); err == nil {
			switch name {
			case ParamRPM:
				p.RPM = scalar
			case ParamPAv:
				p.PAv = scalar
			case ParamTorque:
				p.Torque = scalar
			default:
				p.SetScalar(name, scalar)
			}
			continue
		}
		var values []float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return err
		}
		p.SetPerCylinder(name, values)
	}
	return nil
}

// ProjectRecord is the normalized result of parsing one file. A fresh parse
// always yields a new record; callers never share one across requests.
type ProjectRecord struct {
	FileName      string         `json:"fileName"`
	Format        Format         `json:"format"`
	Metadata      EngineMetadata `json:"metadata"`
	ColumnHeaders []string       `json:"columnHeaders"`
	Calculations  []Calculation  `json:"calculations"`

	Specs   *EngineSpecs `json:"specs,omitempty"`
	Diagram *PVDiagram   `json:"diagram,omitempty"`
}

// DataPointCount sums the points across all calculations.
func (r *ProjectRecord) DataPointCount() int {
	n := 0
	for _, calc := range r.Calculations {
		n += len(calc.DataPoints)
	}
	return n
}

// EngineSpecs is what the narrative parser extracts.
type EngineSpecs struct {
	PrtFileName string           `json:"prtFileName"`
	Created     string           `json:"created"`
	DatVersion  string           `json:"datVersion"`
	Engine      EngineInfo       `json:"engine"`
	Combustion  *CombustionCurve `json:"combustionCurve"`
}

type EngineInfo struct {
	Name              string  `json:"name,omitempty"`
	Cylinders         int     `json:"cylinders,omitempty"`
	Configuration     string  `json:"configuration,omitempty"`
	Type              string  `json:"type,omitempty"`
	Bore              float64 `json:"bore,omitempty"`
	Stroke            float64 `json:"stroke,omitempty"`
	Displacement      float64 `json:"displacement,omitempty"`
	CompressionRatio  float64 `json:"compressionRatio,omitempty"`
	MaxPowerRPM       float64 `json:"maxPowerRPM,omitempty"`
	IntakeSystem      string  `json:"intakeSystem,omitempty"`
	ExhaustSystem     string  `json:"exhaustSystem,omitempty"`
	ValvesPerCylinder int     `json:"valvesPerCylinder,omitempty"`
	InletValves       int     `json:"inletValves,omitempty"`
	ExhaustValves     int     `json:"exhaustValves,omitempty"`
}

// CombustionCurve is the ignition table of a narrative file.
type CombustionCurve struct {
	FuelType          string            `json:"fuelType,omitempty"`
	NitromethaneRatio float64           `json:"nitromethaneRatio"`
	Points            []CombustionPoint `json:"points"`
}

type CombustionPoint struct {
	RPM      float64 `json:"rpm"`
	Timing   float64 `json:"timing"`
	AFR      float64 `json:"afr"`
	Delay    float64 `json:"delay"`
	Duration float64 `json:"duration"`
	VibeA    float64 `json:"vibeA"`
	VibeM    float64 `json:"vibeM"`
}

// PVDiagram is a pressure-volume trace per crank-angle sample.
type PVDiagram struct {
	RPM          int            `json:"rpm"`
	NumTurbo     int            `json:"numTurbo"`
	NumExPas     int            `json:"numExPas"`
	NumSuper     int            `json:"numSuper"`
	SystemConfig PVSystemConfig `json:"systemConfig"`
	FiringOrder  []float64      `json:"firingOrder"`
	Samples      []PVSample     `json:"data"`
}

type PVSystemConfig struct {
	NumPipIn     int     `json:"numPipIn"`
	NumColIn     int     `json:"numColIn"`
	NumBoxIn     int     `json:"numBoxIn"`
	NumPipEx     int     `json:"numPipEx"`
	NumColEx     int     `json:"numColEx"`
	NumBoxEx     int     `json:"numBoxEx"`
	NumOutPipEx  int     `json:"numOutPipEx"`
	NumStepExH   int     `json:"numStepExH"`
	NumStepEx    int     `json:"numStepEx"`
	NumExSil     int     `json:"numExSil"`
	NumExSilPlen int     `json:"numExSilPlen"`
	ITraceL      float64 `json:"iTraceL"`
	ETraceL      float64 `json:"eTraceL"`
}

type PVSample struct {
	Deg       float64   `json:"deg"`
	Cylinders []PVPoint `json:"cylinders"`
}

type PVPoint struct {
	Volume   float64 `json:"volume"`
	Pressure float64 `json:"pressure"`
}

// ParseIssue records a non-fatal problem found while parsing a directory.
type ParseIssue struct {
	File     string `json:"file"`
	Format   Format `json:"format,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ParseResult contains all parsed records from a directory.
type ParseResult struct {
	RootPath string          `json:"rootPath"`
	Records  []ProjectRecord `json:"records"`
	Issues   []ParseIssue    `json:"issues,omitempty"`
}
