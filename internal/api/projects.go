package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/scanner"
)

type projectItem struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	FileName          string        `json:"fileName"`
	Format            parser.Format `json:"format"`
	NumCylinders      int           `json:"numCylinders"`
	EngineType        string        `json:"engineType"`
	CalculationsCount int           `json:"calculationsCount"`
	FileSize          int64         `json:"fileSize"`
	FileSizeFormatted string        `json:"fileSizeFormatted"`
	LastModified      time.Time     `json:"lastModified"`
	Created           time.Time     `json:"created"`
	DisplayName       string        `json:"displayName,omitempty"`
	Error             string        `json:"error,omitempty"`
}

type projectsMeta struct {
	Total        int              `json:"total"`
	ScannedAt    int64            `json:"scannedAt"`
	ScanDuration int64            `json:"scanDuration"`
	Directory    scanner.DirStats `json:"directory"`
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entries, err := s.scanner.ScanProjects(r.Context())
	if err != nil {
		s.scanFailed(w, err)
		return
	}
	took := time.Since(start)

	stats, err := scanner.DirectoryStats(s.scanner.Root(), s.scanner.Extensions())
	if err != nil {
		s.scanFailed(w, err)
		return
	}

	items := make([]projectItem, 0, len(entries))
	for _, e := range entries {
		item := projectItem{
			ID:                e.ID,
			Name:              e.Name,
			FileName:          e.FileName,
			Format:            e.Format,
			NumCylinders:      e.NumCylinders,
			EngineType:        e.EngineType,
			CalculationsCount: e.CalculationsCount,
			FileSize:          e.FileSize,
			FileSizeFormatted: scanner.FormatFileSize(e.FileSize),
			LastModified:      e.ModifiedAt,
			Created:           e.CreatedAt,
			Error:             e.Error,
		}
		if item.EngineType == "" {
			item.EngineType = scanner.EngineTypeUnknown
		}
		if doc, err := s.store.Get(e.ID); err == nil && doc != nil {
			item.DisplayName = doc.DisplayName
		}
		items = append(items, item)
	}

	s.logger.Info("projects listed", zap.Int("projects", len(items)), zap.Duration("took", took))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    items,
		"meta": projectsMeta{
			Total:        len(items),
			ScannedAt:    time.Now().UnixMilli(),
			ScanDuration: took.Milliseconds(),
			Directory:    stats,
		},
	})
}

func (s *Server) scanFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, scanner.ErrDirectoryNotFound) {
		writeError(w, http.StatusNotFound, CodeDirectoryNotFound, "Data directory not found", err.Error())
		return
	}
	s.logger.Error("scan failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to scan projects", err.Error())
}

type valueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type calculationSummary struct {
	TotalPoints int        `json:"totalPoints"`
	RPMRange    valueRange `json:"rpmRange"`
	PowerRange  valueRange `json:"powerRange"`
	TorqueRange valueRange `json:"torqueRange"`
}

type calculationView struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	DataPoints []parser.DataPoint `json:"dataPoints"`
	Metadata   calculationSummary `json:"metadata"`
}

type fileInfoView struct {
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"sizeFormatted"`
	LastModified  time.Time `json:"lastModified"`
	Created       time.Time `json:"created"`
}

type projectView struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	FileName      string                `json:"fileName"`
	Format        parser.Format         `json:"format"`
	Metadata      parser.EngineMetadata `json:"metadata"`
	ColumnHeaders []string              `json:"columnHeaders"`
	Calculations  []calculationView     `json:"calculations"`
	FileInfo      fileInfoView          `json:"fileInfo"`
}

func summarize(points []parser.DataPoint) calculationSummary {
	if len(points) == 0 {
		return calculationSummary{}
	}
	sum := calculationSummary{
		TotalPoints: len(points),
		RPMRange:    valueRange{Min: math.Inf(1), Max: math.Inf(-1)},
		PowerRange:  valueRange{Min: math.Inf(1), Max: math.Inf(-1)},
		TorqueRange: valueRange{Min: math.Inf(1), Max: math.Inf(-1)},
	}
	for _, p := range points {
		sum.RPMRange.include(p.RPM)
		sum.PowerRange.include(p.PAv)
		sum.TorqueRange.include(p.Torque)
	}
	return sum
}

func (v *valueRange) include(x float64) {
	v.Min = math.Min(v.Min, x)
	v.Max = math.Max(v.Max, x)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !parser.ValidID(id) {
		writeError(w, http.StatusBadRequest, CodeInvalidProjectID, "Invalid project ID format",
			"Project ID must contain only lowercase letters, numbers, and hyphens")
		return
	}

	start := time.Now()
	project, err := s.scanner.LoadProject(id)
	switch {
	case errors.Is(err, scanner.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, CodeProjectNotFound, "Project not found", "No project found with ID: "+id)
		return
	case errors.Is(err, scanner.ErrDirectoryNotFound):
		writeError(w, http.StatusNotFound, CodeDirectoryNotFound, "Data directory not found", err.Error())
		return
	case err != nil:
		s.logger.Error("failed to load project", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to load project", err.Error())
		return
	}
	took := time.Since(start)

	record := project.Record
	calcs := make([]calculationView, 0, len(record.Calculations))
	for _, c := range record.Calculations {
		calcs = append(calcs, calculationView{
			ID:         c.ID,
			Name:       c.Name,
			DataPoints: c.DataPoints,
			Metadata:   summarize(c.DataPoints),
		})
	}

	view := projectView{
		ID:            id,
		Name:          project.Name,
		FileName:      project.File.Name,
		Format:        record.Format,
		Metadata:      record.Metadata,
		ColumnHeaders: record.ColumnHeaders,
		Calculations:  calcs,
		FileInfo: fileInfoView{
			Size:          project.File.Size,
			SizeFormatted: scanner.FormatFileSize(project.File.Size),
			LastModified:  project.File.ModTime,
			Created:       project.File.Created,
		},
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    view,
		"meta": map[string]any{
			"totalCalculations": len(calcs),
			"totalDataPoints":   record.DataPointCount(),
			"parseDuration":     took.Milliseconds(),
			"merge":             project.Merge,
		},
	})
}

func (s *Server) handleDiagrams(w http.ResponseWriter, r *http.Request) {
	entries, err := s.scanner.ScanDiagrams(r.Context())
	if err != nil {
		s.scanFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}
