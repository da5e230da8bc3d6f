package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/morozRed/engview/internal/parser"
)

func TestDetParserScenario(t *testing.T) {
	path := writeFixture(t, "engine.det", "4 NATUR\nRPM P-Av Torque\n$1\n4→2000 20.0 80.0\n4→3000 30.0 90.0\n")

	record, err := NewDetParser(nil).Parse(path)
	require.NoError(t, err)

	assert.Equal(t, parser.FormatDet, record.Format)
	assert.Equal(t, 4, record.Metadata.NumCylinders)
	assert.Equal(t, "NATUR", record.Metadata.EngineType)
	require.Len(t, record.Calculations, 1)

	calc := record.Calculations[0]
	assert.Equal(t, "$1", calc.ID)
	assert.Equal(t, "1", calc.Name)
	require.Len(t, calc.DataPoints, 2)
	assert.Equal(t, 2000.0, calc.DataPoints[0].RPM)
	assert.Equal(t, 3000.0, calc.DataPoints[1].RPM)

	deto, ok := calc.DataPoints[0].PerCylinder(parser.ParamDeto)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0, 0}, deto, "missing tokens read as zero")
}

func TestDetParserFullRow(t *testing.T) {
	content := "2 TURBO\n" + detHeaders(2) + "\n$run A\n" + detRow(2, 4000) + "\n" + detRow(2, 5000) + "\n"
	record, err := NewDetParser(nil).Parse(writeFixture(t, "full.det", content))
	require.NoError(t, err)
	require.Len(t, record.Calculations, 1)

	assert.Contains(t, record.ColumnHeaders, "TC-Av(1)")
	assert.NotContains(t, record.ColumnHeaders, "TCylMax(1)")

	point := record.Calculations[0].DataPoints[1]
	assert.Equal(t, 5000.0, point.RPM)
	tc, _ := point.PerCylinder(parser.ParamTCAv)
	assert.Equal(t, []float64{5007, 5008}, tc)
	conv, ok := point.Scalar(parser.ParamConvergence)
	require.True(t, ok)
	assert.Equal(t, 5100.0, conv)
}

func TestDetParserDropsSinglePointCalculations(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	content := "4 NATUR\nRPM P-Av Torque\n" +
		"$lonely\n2000 1 2\n" +
		"$empty\n" +
		"$kept\n2000 1 2\n3000 1 2\n"

	record, err := NewDetParser(zap.New(core)).Parse(writeFixture(t, "drop.det", content))
	require.NoError(t, err)

	require.Len(t, record.Calculations, 1)
	assert.Equal(t, "kept", record.Calculations[0].Name)
	for _, calc := range record.Calculations {
		assert.GreaterOrEqual(t, len(calc.DataPoints), 2)
	}

	dropped := logs.FilterMessage("dropping calculation with too few data points").All()
	require.Len(t, dropped, 1, "only the one-point run is reported")
	assert.Equal(t, "lonely", dropped[0].ContextMap()["calculation"])
}

func TestDetParserRejectsMismatchedRows(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	content := "4 NATUR\nRPM P-Av Torque\n$1\n2000 1 2\n2500 1\n3000 1 2\n3500 1 2 9\n"

	record, err := NewDetParser(zap.New(core)).Parse(writeFixture(t, "rows.det", content))
	require.NoError(t, err)
	require.Len(t, record.Calculations, 1)
	require.Len(t, record.Calculations[0].DataPoints, 2)
	assert.Equal(t, 2, logs.FilterMessage("row token count does not match headers").Len())
}

func TestDetParserShortFile(t *testing.T) {
	_, err := NewDetParser(nil).Parse(writeFixture(t, "short.det", "4 NATUR"))
	require.Error(t, err)
	assert.True(t, parser.IsFormatError(err))

	_, err = NewDetParser(nil).Parse(writeFixture(t, "nometa.det", "4\nRPM\n$1\n"))
	assert.True(t, parser.IsFormatError(err))
}

func TestTabularParsersRejectImplausibleCylinderCounts(t *testing.T) {
	rows := "RPM P-Av Torque\n$1\n2000 20 80\n3000 30 90\n"
	tests := []struct {
		name     string
		file     string
		metadata string
		p        parser.Parser
	}{
		{name: "det huge", file: "huge.det", metadata: "1000000000000000 NATUR", p: NewDetParser(nil)},
		{name: "det overflow", file: "overflow.det", metadata: "99999999999999999999 NATUR", p: NewDetParser(nil)},
		{name: "det zero", file: "zero.det", metadata: "0 NATUR", p: NewDetParser(nil)},
		{name: "det negative", file: "neg.det", metadata: "-4 NATUR", p: NewDetParser(nil)},
		{name: "det above bound", file: "many.det", metadata: "65 NATUR", p: NewDetParser(nil)},
		{name: "pou huge", file: "huge.pou", metadata: "1000000000000000 TURBO 1 1 0", p: NewPouParser(nil)},
		{name: "pou zero", file: "zero.pou", metadata: "0 TURBO 1 1 0", p: NewPouParser(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Parse(writeFixture(t, tt.file, tt.metadata+"\n"+rows))
			require.Error(t, err)
			assert.True(t, parser.IsFormatError(err))
			assert.Contains(t, err.Error(), "cylinder count")
		})
	}

	record, err := NewDetParser(nil).Parse(writeFixture(t, "v16.det", "16 NATUR\n"+rows))
	require.NoError(t, err)
	assert.Equal(t, 16, record.Metadata.NumCylinders)
}

func TestPouParserKeepsSinglePointCalculations(t *testing.T) {
	content := "4 NATUR 1 0 0\n" + pouHeaders(4) + "\n" +
		"$solo\n" + pouRow(4, 3200) + "\n" +
		"$pair\n" + pouRow(4, 3200) + "\n" + pouRow(4, 3600) + "\n" +
		"$none\n"

	record, err := NewPouParser(nil).Parse(writeFixture(t, "engine.pou", content))
	require.NoError(t, err)

	assert.Len(t, record.ColumnHeaders, 71)
	assert.Contains(t, record.ColumnHeaders, "PurCyl(1)")
	require.Len(t, record.Calculations, 2)
	for _, calc := range record.Calculations {
		assert.GreaterOrEqual(t, len(calc.DataPoints), 1)
	}

	require.NotNil(t, record.Metadata.Breath)
	assert.Equal(t, 1, *record.Metadata.Breath)
	assert.Equal(t, 0, *record.Metadata.NumTurbo)

	point := record.Calculations[1].DataPoints[1]
	assert.Equal(t, 3600.0, point.RPM)
	fmep, _ := point.Scalar(parser.ParamFMEP)
	assert.Equal(t, 3600.0+20, fmep, "FMEP follows the four PMEP columns")
	vibeM, _ := point.Scalar(parser.ParamVibeM)
	assert.Equal(t, 3600.0+70, vibeM)
	durat, _ := point.PerCylinder(parser.ParamDurat)
	assert.Equal(t, []float64{3600 + 62, 3600 + 63, 3600 + 64, 3600 + 65}, durat)
}

func TestPouParserMetadataNeedsFiveFields(t *testing.T) {
	_, err := NewPouParser(nil).Parse(writeFixture(t, "bad.pou", "4 NATUR 1\nRPM\n$1\n"))
	require.Error(t, err)
	assert.True(t, parser.IsFormatError(err))
}

func TestDataPointMarshalsFlat(t *testing.T) {
	var p parser.DataPoint
	p.RPM = 2000
	p.SetScalar(parser.ParamConvergence, 0.5)
	p.SetPerCylinder(parser.ParamDeto, []float64{1, 2})

	data, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"RPM":2000,"P-Av":0,"Torque":0,"Convergence":0.5,"Deto":[1,2]}`, string(data))
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil)
	assert.Equal(t, []parser.Format{parser.FormatDet, parser.FormatPou, parser.FormatPrt, parser.FormatPvd}, r.Formats())
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func detHeaders(cyl int) string {
	headers := []string{"RPM", "P-Av", "Torque"}
	for _, name := range []string{"PurCyl", "TUbMax", "TCylMax", "PCylMax", "Deto"} {
		for c := 1; c <= cyl; c++ {
			headers = append(headers, fmt.Sprintf("%s(%d)", name, c))
		}
	}
	headers = append(headers, "Convergence")
	return strings.Join(headers, " ")
}

// detRow fills every column with rpm+index so positions are easy to assert.
func detRow(cyl int, rpm int) string {
	n := 3 + 5*cyl + 1
	values := make([]string, n)
	values[0] = fmt.Sprint(rpm)
	for i := 1; i < n; i++ {
		values[i] = fmt.Sprint(rpm + i)
	}
	values[n-1] = fmt.Sprint(rpm + 100)
	return strings.Join(values, "  ")
}

func pouHeaders(cyl int) string {
	headers := make([]string, 0, 71)
	for _, col := range pouSpec.layout {
		if !col.perCylinder {
			headers = append(headers, col.name)
			continue
		}
		name := col.name
		if name == parser.ParamPurCyl {
			name = "Purc"
		}
		for c := 1; c <= cyl; c++ {
			headers = append(headers, fmt.Sprintf("%s(%d)", name, c))
		}
	}
	return strings.Join(headers, " ")
}

func pouRow(cyl int, rpm int) string {
	n := 0
	for _, col := range pouSpec.layout {
		if col.perCylinder {
			n += cyl
		} else {
			n++
		}
	}
	values := make([]string, n)
	values[0] = fmt.Sprint(rpm)
	for i := 1; i < n; i++ {
		values[i] = fmt.Sprint(rpm + i)
	}
	return "     4→  " + strings.Join(values, "   ")
}

func TestMapHeadersKeepsCylinderSuffix(t *testing.T) {
	got := mapHeaders([]string{"TCylMax( 1)", "TCylMax", "Deto(12)", "Purc(2)"}, map[string]string{
		"TCylMax": parser.ParamTCAv,
		"Purc":    parser.ParamPurCyl,
	})
	assert.Equal(t, []string{"TC-Av( 1)", "TC-Av", "Deto(12)", "PurCyl(2)"}, got)
}
