// Package merge combines a superset (.pou) parse and a basic (.det) parse of
// the same project into one record.
package merge

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

var (
	// ErrWrongFormat means an input is not the format its argument slot expects.
	ErrWrongFormat = errors.New("wrong input format")

	// ErrIncompatible means the two records cannot describe the same engine.
	ErrIncompatible = errors.New("incompatible projects")
)

// Stats summarises one merge.
type Stats struct {
	Calculations       int  `json:"calculations"`
	UnmatchedCalcs     int  `json:"unmatchedCalculations"`
	MatchedPoints      int  `json:"matchedPoints"`
	SupersetOnlyPoints int  `json:"supersetOnlyPoints"`
	BasicOnlyPoints    int  `json:"basicOnlyPoints"`
	EngineTypeMismatch bool `json:"engineTypeMismatch"`
}

type Merger struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{logger: logger}
}

// Compatible reports whether Merge would accept the pair.
func Compatible(superset, basic *parser.ProjectRecord) bool {
	return check(superset, basic) == nil
}

func check(superset, basic *parser.ProjectRecord) error {
	if superset == nil || basic == nil {
		return fmt.Errorf("%w: missing record", ErrWrongFormat)
	}
	if superset.Format != parser.FormatPou && superset.Format != parser.FormatMerged {
		return fmt.Errorf("%w: superset side is %s, want %s", ErrWrongFormat, superset.Format, parser.FormatPou)
	}
	if basic.Format != parser.FormatDet {
		return fmt.Errorf("%w: basic side is %s, want %s", ErrWrongFormat, basic.Format, parser.FormatDet)
	}
	if superset.Metadata.NumCylinders != basic.Metadata.NumCylinders {
		return fmt.Errorf("%w: cylinder count %d vs %d", ErrIncompatible,
			superset.Metadata.NumCylinders, basic.Metadata.NumCylinders)
	}
	return nil
}

// Merge produces a pou-merged record. Metadata, headers and calculation
// order come from superset. Points are matched by calculation id and then by
// exact RPM; matched points gain TCylMax, PCylMax, Deto and Convergence from
// the basic record. An already merged record is accepted as the superset
// side, so merging twice yields the same calculations.
func (m *Merger) Merge(superset, basic *parser.ProjectRecord) (*parser.ProjectRecord, Stats, error) {
	var stats Stats
	if err := check(superset, basic); err != nil {
		return nil, stats, err
	}

	log := m.logger.With(zap.String("file", superset.FileName))
	if superset.Metadata.EngineType != basic.Metadata.EngineType {
		stats.EngineTypeMismatch = true
		log.Warn("engine type differs between formats, merging anyway",
			zap.String("superset", superset.Metadata.EngineType),
			zap.String("basic", basic.Metadata.EngineType))
	}

	basicCalcs := make(map[string]parser.Calculation, len(basic.Calculations))
	for _, calc := range basic.Calculations {
		basicCalcs[calc.ID] = calc
	}

	merged := &parser.ProjectRecord{
		FileName:      superset.FileName,
		Format:        parser.FormatMerged,
		Metadata:      superset.Metadata,
		ColumnHeaders: append([]string(nil), superset.ColumnHeaders...),
		Calculations:  make([]parser.Calculation, 0, len(superset.Calculations)),
	}

	for _, calc := range superset.Calculations {
		out := parser.Calculation{
			ID:         calc.ID,
			Name:       calc.Name,
			DataPoints: make([]parser.DataPoint, 0, len(calc.DataPoints)),
		}

		detCalc, ok := basicCalcs[calc.ID]
		if !ok {
			stats.UnmatchedCalcs++
			log.Info("calculation has no basic counterpart, passing through", zap.String("calculation", calc.ID))
			for _, point := range calc.DataPoints {
				out.DataPoints = append(out.DataPoints, point.Clone())
			}
			merged.Calculations = append(merged.Calculations, out)
			continue
		}

		detPoints := make(map[float64]parser.DataPoint, len(detCalc.DataPoints))
		for _, point := range detCalc.DataPoints {
			detPoints[point.RPM] = point
		}
		used := make(map[float64]bool, len(detPoints))

		for _, point := range calc.DataPoints {
			detPoint, ok := detPoints[point.RPM]
			if !ok {
				stats.SupersetOnlyPoints++
				log.Debug("rpm missing from basic calculation",
					zap.String("calculation", calc.ID), zap.Float64("rpm", point.RPM))
				out.DataPoints = append(out.DataPoints, point.Clone())
				continue
			}
			used[point.RPM] = true
			stats.MatchedPoints++
			out.DataPoints = append(out.DataPoints, enrich(point, detPoint))
		}

		for rpm := range detPoints {
			if !used[rpm] {
				stats.BasicOnlyPoints++
				log.Debug("rpm only in basic calculation, dropped",
					zap.String("calculation", calc.ID), zap.Float64("rpm", rpm))
			}
		}
		merged.Calculations = append(merged.Calculations, out)
	}

	stats.Calculations = len(merged.Calculations)
	log.Info("merged superset and basic records",
		zap.Int("calculations", stats.Calculations),
		zap.Int("matchedPoints", stats.MatchedPoints))

	return merged, stats, nil
}

func enrich(point, detPoint parser.DataPoint) parser.DataPoint {
	out := point.Clone()
	if tc, ok := detPoint.PerCylinder(parser.ParamTCAv); ok {
		out.SetPerCylinder(parser.ParamTCylMax, append([]float64(nil), tc...))
	}
	for _, name := range []string{parser.ParamPCylMax, parser.ParamDeto} {
		if values, ok := detPoint.PerCylinder(name); ok {
			out.SetPerCylinder(name, append([]float64(nil), values...))
		}
	}
	if conv, ok := detPoint.Scalar(parser.ParamConvergence); ok {
		out.SetScalar(parser.ParamConvergence, conv)
	}
	return out
}
