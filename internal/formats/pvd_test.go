package formats

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/engview/internal/parser"
)

func pvdFixture(turbo int, rows []string) string {
	preamble := []string{
		"7000   RPM",
		fmt.Sprintf("2 %d 0 0", turbo),
		"2  NumPipIn", "1", "1", "2", "1", "0", "1", "3", "4", "1", "0",
		"0.35  iTraceL",
		"1.20  eTraceL",
		"1 2",
		"",
		"Deg V1 P1 V2 P2",
	}
	return strings.Join(append(preamble, rows...), "\n") + "\n"
}

func TestPvdParser(t *testing.T) {
	content := pvdFixture(0, []string{
		"0   0.05 1.01  0.45 1.00",
		"1   0.06 1.02",
		"2   0.07 1.05  0.44 1.01",
	})

	record, err := NewPvdParser(nil).Parse(writeFixture(t, "trace.pvd", content))
	require.NoError(t, err)
	require.NotNil(t, record.Diagram)

	d := record.Diagram
	assert.Equal(t, parser.FormatPvd, record.Format)
	assert.Equal(t, 7000, d.RPM)
	assert.Equal(t, 2, record.Metadata.NumCylinders)
	assert.Equal(t, "NATUR", record.Metadata.EngineType)
	assert.Equal(t, 2, d.SystemConfig.NumPipIn)
	assert.Equal(t, 4, d.SystemConfig.NumStepEx)
	assert.Equal(t, 0.35, d.SystemConfig.ITraceL)
	assert.Equal(t, 1.2, d.SystemConfig.ETraceL)
	assert.Equal(t, []float64{1, 2}, d.FiringOrder)
	assert.Equal(t, []string{"Deg", "V1", "P1", "V2", "P2"}, record.ColumnHeaders)

	require.Len(t, d.Samples, 2, "short row is dropped")
	assert.Equal(t, 2.0, d.Samples[1].Deg)
	assert.Equal(t, parser.PVPoint{Volume: 0.44, Pressure: 1.01}, d.Samples[1].Cylinders[1])
}

func TestPvdParserTurbo(t *testing.T) {
	record, err := NewPvdParser(nil).Parse(writeFixture(t, "t.pvd", pvdFixture(1, []string{"0 1 1 1 1"})))
	require.NoError(t, err)
	assert.Equal(t, "TURBO", record.Metadata.EngineType)
}

func TestPvdParserShortFile(t *testing.T) {
	_, err := NewPvdParser(nil).Parse(writeFixture(t, "short.pvd", "7000\n2 0 0 0\n"))
	require.Error(t, err)
	assert.True(t, parser.IsFormatError(err))
}

func TestPvdParserRejectsImplausibleCylinderCounts(t *testing.T) {
	for _, counts := range []string{"1000000000000000 0 0 0", "4611686018427387904 0 0 0", "0 0 0 0", "-2 0 0 0"} {
		content := strings.Replace(pvdFixture(0, []string{"0 1 1 1 1"}), "2 0 0 0", counts, 1)
		_, err := NewPvdParser(nil).Parse(writeFixture(t, "bad.pvd", content))
		require.Error(t, err, counts)
		assert.True(t, parser.IsFormatError(err), counts)
	}
}
