package formats

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/engview/internal/parser"
)

const sampleNarrative = ` 4 Cylinder Test engine
  Project file for Dat4T

This project was constructed on: 15-3-2024
 at 9h: 5min
Dat4T Version: V3.2.1
This is a Naturally Aspirated engine
Number of cylinders                  : 4
The engine is an INLINE TYPE
Bore                                 : 82.5 mm
Stroke                               : 75.6 mm
Geometric Compression Ratio          : 12.5
RPM for Maximum Power                : 8500 rpm
Cylinder head with 4 valves per cylinder
Number of inlet valves               : 2
Number of exhaust valves             : 2
*********
The INTAKE system has the following Characteristics
 seperate intake pipes with no airboxes but with throttles
*********
The EXHAUST system has the following Characteristics
 4into2into1 manifold
*********
Fuel type                            : Gasoline
Nitromethane ratio                   : 0.15
The Ignition model
 RPM  Timing  AFR  Delay  Durat  VibeA  VibeM
 3000   20    12.5   5     50     5      2
 6000   28    12.8   6     55     5.2    2.1
*********
`

func TestPrtParserExtractsSpecs(t *testing.T) {
	record, err := NewPrtParser(nil).Parse(writeFixture(t, "Test.prt", sampleNarrative))
	require.NoError(t, err)
	require.NotNil(t, record.Specs)

	specs := record.Specs
	assert.Equal(t, parser.FormatPrt, record.Format)
	assert.Equal(t, "Test.prt", specs.PrtFileName)
	assert.Equal(t, "2024-03-15T09:05:00Z", specs.Created)
	assert.Equal(t, "V3.2.1", specs.DatVersion)

	engine := specs.Engine
	assert.Equal(t, "4 Cylinder Test", engine.Name)
	assert.Equal(t, "NA", engine.Type)
	assert.Equal(t, 4, engine.Cylinders)
	assert.Equal(t, "inline", engine.Configuration)
	assert.Equal(t, 82.5, engine.Bore)
	assert.Equal(t, 75.6, engine.Stroke)
	assert.Equal(t, 12.5, engine.CompressionRatio)
	assert.Equal(t, 8500.0, engine.MaxPowerRPM)
	assert.Equal(t, 4, engine.ValvesPerCylinder)
	assert.Equal(t, 2, engine.InletValves)
	assert.Equal(t, 2, engine.ExhaustValves)
	assert.Equal(t, "ITB", engine.IntakeSystem)
	assert.Equal(t, "4-2-1", engine.ExhaustSystem)
	assert.InDelta(t, 1.62, engine.Displacement, 1e-9)

	assert.Equal(t, 4, record.Metadata.NumCylinders)
	assert.Equal(t, "NA", record.Metadata.EngineType)

	require.NotNil(t, specs.Combustion)
	assert.Equal(t, "Gasoline", specs.Combustion.FuelType)
	assert.Equal(t, 0.15, specs.Combustion.NitromethaneRatio)
	require.Len(t, specs.Combustion.Points, 2)
	assert.Equal(t, parser.CombustionPoint{RPM: 6000, Timing: 28, AFR: 12.8, Delay: 6, Duration: 55, VibeA: 5.2, VibeM: 2.1}, specs.Combustion.Points[1])
}

func TestPrtParserDefaultsWhenFieldsMissing(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewPrtParser(nil)
	p.now = func() time.Time { return fixed }

	record, err := p.Parse(writeFixture(t, "bare.prt", "nothing useful here\nThe Ignition model\n RPM Timing\n*********\n"))
	require.NoError(t, err)

	assert.Equal(t, "2025-01-02T03:04:05.000Z", record.Specs.Created)
	assert.Empty(t, record.Specs.DatVersion)
	assert.Zero(t, record.Specs.Engine.Displacement)
	assert.Nil(t, record.Specs.Combustion, "an empty ignition table is absent, not empty")
}

func TestPrtParserUnknownVersion(t *testing.T) {
	record, err := NewPrtParser(nil).Parse(writeFixture(t, "v.prt", "Dat4T Version: beta\n"))
	require.NoError(t, err)
	assert.Equal(t, "Unknown", record.Specs.DatVersion)
}

func TestExtractValue(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{line: "Bore : 82.5 mm", want: "82.5", ok: true},
		{line: "Number of cylinders   : 6", want: "6", ok: true},
		{line: "Bore        82.5      mm", want: "82.5", ok: true},
		{line: "Stroke      long      75.6", want: "75.6", ok: true},
		{line: "Stroke only words", ok: false},
	}
	for _, tt := range tests {
		got, ok := extractValue(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestClassifyIntake(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		cyl   int
		want  string
	}{
		{name: "carb", lines: []string{"4 collected intake pipes"}, cyl: 4, want: "Carb"},
		{name: "itb", lines: []string{"seperate intake pipes", "with no airboxes but with throttles"}, cyl: 4, want: "ITB"},
		{name: "airbox", lines: []string{"seperate intake pipes with a common airbox"}, cyl: 4, want: "IM"},
		{name: "plenum", lines: []string{"Seperate intake pipes with a common plenum"}, cyl: 6, want: "IM"},
		{name: "counts itb", lines: []string{"4 throttles", "0 boxes/plenums"}, cyl: 4, want: "ITB"},
		{name: "counts mismatch", lines: []string{"1 throttles", "0 boxes/plenums"}, cyl: 4, want: "IM"},
		{name: "default", lines: []string{"something else"}, cyl: 4, want: "IM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyIntake(tt.lines, tt.cyl))
		})
	}
}

func TestClassifyExhaust(t *testing.T) {
	assert.Equal(t, "4-1", classifyExhaust([]string{"a 4into1 manifold"}))
	assert.Equal(t, "4-2-1", classifyExhaust([]string{"4INTO2INTO1 Manifold"}))
	assert.Equal(t, "tri-y", classifyExhaust([]string{"Tri-Y headers"}))
	assert.Equal(t, "unknown", classifyExhaust([]string{"straight pipes"}))
}

func TestClassifyEngineType(t *testing.T) {
	assert.Equal(t, "Turbo", classifyEngineType("This is a Turbocharged engine"))
	assert.Equal(t, "Supercharged", classifyEngineType("This is a Supercharged engine"))
	assert.Equal(t, "NA", classifyEngineType("This is a charged something"))
}

func TestExhaustSectionClosedByIntakeHeading(t *testing.T) {
	content := strings.Join([]string{
		"Number of cylinders : 4",
		"The EXHAUST system has the following Characteristics",
		"4into1 manifold",
		"The INTAKE system has the following Characteristics",
		"collected intake pipes",
	}, "\n")
	record, err := NewPrtParser(nil).Parse(writeFixture(t, "order.prt", content))
	require.NoError(t, err)
	assert.Equal(t, "4-1", record.Specs.Engine.ExhaustSystem)
	assert.Equal(t, "Carb", record.Specs.Engine.IntakeSystem)
}
