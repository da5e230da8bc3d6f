package metadata

import (
	"encoding/json"
	"time"
)

// legacyDocument is the unversioned layout: free-form manual fields at the
// top level, no auto section.
type legacyDocument struct {
	ProjectID   string   `json:"projectId"`
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Client      string   `json:"client"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	Notes       string   `json:"notes"`
	Color       string   `json:"color"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

type versionProbe struct {
	Version string `json:"version"`
}

// decodeDocument parses data and reports whether it had to be migrated.
func decodeDocument(id string, data []byte, now time.Time) (*Document, bool, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, err
	}

	switch probe.Version {
	case CurrentVersion:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, false, err
		}
		doc.Manual = doc.Manual.Normalized()
		return &doc, false, nil
	default:
		var legacy legacyDocument
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, false, err
		}
		return migrateLegacy(id, legacy, now), true, nil
	}
}

func migrateLegacy(id string, legacy legacyDocument, now time.Time) *Document {
	docID := legacy.ProjectID
	if docID == "" {
		docID = legacy.ID
	}
	if docID == "" {
		docID = id
	}

	return &Document{
		Version:     CurrentVersion,
		ID:          docID,
		DisplayName: legacy.DisplayName,
		Manual: ManualMetadata{
			Description: legacy.Description,
			Client:      legacy.Client,
			Tags:        legacy.Tags,
			Status:      legacy.Status,
			Notes:       legacy.Notes,
			Color:       legacy.Color,
		}.Normalized(),
		Created:  parseTimestamp(legacy.CreatedAt, now),
		Modified: parseTimestamp(legacy.UpdatedAt, now),
	}
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fallback
	}
	return t
}
