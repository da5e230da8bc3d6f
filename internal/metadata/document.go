package metadata

import (
	"time"

	"github.com/morozRed/engview/internal/fileutil"
	"github.com/morozRed/engview/internal/parser"
)

const CurrentVersion = "1.0"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
	StatusTesting   = "testing"
)

// ValidStatuses lists the statuses the API and CLI accept.
var ValidStatuses = []string{StatusActive, StatusCompleted, StatusArchived, StatusTesting}

func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Document is the persisted metadata of one project.
type Document struct {
	Version     string         `json:"version"`
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Auto        *AutoMetadata  `json:"auto"`
	Manual      ManualMetadata `json:"manual"`
	Created     time.Time      `json:"created"`
	Modified    time.Time      `json:"modified"`
}

// Name returns the display name, falling back to the id.
func (d *Document) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ID
}

// AutoMetadata is derived from the narrative file and replaced wholesale on
// every extraction.
type AutoMetadata struct {
	PrtFileName       string                  `json:"prtFileName,omitempty"`
	Created           string                  `json:"created,omitempty"`
	DatVersion        string                  `json:"datVersion,omitempty"`
	Name              string                  `json:"name,omitempty"`
	Cylinders         int                     `json:"cylinders"`
	Configuration     string                  `json:"configuration,omitempty"`
	Type              string                  `json:"type,omitempty"`
	Bore              float64                 `json:"bore,omitempty"`
	Stroke            float64                 `json:"stroke,omitempty"`
	Displacement      float64                 `json:"displacement,omitempty"`
	CompressionRatio  float64                 `json:"compressionRatio,omitempty"`
	MaxPowerRPM       float64                 `json:"maxPowerRPM,omitempty"`
	IntakeSystem      string                  `json:"intakeSystem,omitempty"`
	ExhaustSystem     string                  `json:"exhaustSystem,omitempty"`
	ValvesPerCylinder int                     `json:"valvesPerCylinder,omitempty"`
	InletValves       int                     `json:"inletValves,omitempty"`
	ExhaustValves     int                     `json:"exhaustValves,omitempty"`
	CombustionCurve   *parser.CombustionCurve `json:"combustionCurve"`
}

// AutoFromSpecs flattens narrative parser output into the auto section.
func AutoFromSpecs(specs *parser.EngineSpecs) AutoMetadata {
	e := specs.Engine
	return AutoMetadata{
		PrtFileName:       specs.PrtFileName,
		Created:           specs.Created,
		DatVersion:        specs.DatVersion,
		Name:              e.Name,
		Cylinders:         e.Cylinders,
		Configuration:     e.Configuration,
		Type:              e.Type,
		Bore:              e.Bore,
		Stroke:            e.Stroke,
		Displacement:      e.Displacement,
		CompressionRatio:  e.CompressionRatio,
		MaxPowerRPM:       e.MaxPowerRPM,
		IntakeSystem:      e.IntakeSystem,
		ExhaustSystem:     e.ExhaustSystem,
		ValvesPerCylinder: e.ValvesPerCylinder,
		InletValves:       e.InletValves,
		ExhaustValves:     e.ExhaustValves,
		CombustionCurve:   specs.Combustion,
	}
}

// ManualMetadata holds user-edited fields. Background extraction never
// touches it.
type ManualMetadata struct {
	Description string   `json:"description"`
	Client      string   `json:"client"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	Notes       string   `json:"notes"`
	Color       string   `json:"color"`
}

// Normalized fills defaults: empty tag list, status "active", deduped tags.
func (m ManualMetadata) Normalized() ManualMetadata {
	m.Tags = fileutil.DedupeStrings(m.Tags)
	if m.Status == "" {
		m.Status = StatusActive
	}
	return m
}

// DefaultManual is the manual section of a document nobody has edited.
func DefaultManual() ManualMetadata {
	return ManualMetadata{}.Normalized()
}
