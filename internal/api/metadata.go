package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/parser"
)

// saveRequest is the POST body. Manual is required; DisplayName is left
// unchanged when omitted.
type saveRequest struct {
	DisplayName *string                  `json:"displayName"`
	Manual      *metadata.ManualMetadata `json:"manual"`
}

func (s *Server) metadataID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !parser.ValidID(id) {
		writeError(w, http.StatusBadRequest, CodeInvalidProjectID, "Invalid project ID format",
			"Project ID must contain only lowercase letters, numbers, and hyphens")
		return "", false
	}
	return id, true
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.metadataID(w, r)
	if !ok {
		return
	}
	doc, err := s.store.Get(id)
	if err != nil {
		s.storeFailed(w, id, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, CodeMetadataNotFound, "Metadata not found", "No metadata exists for project: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": doc})
}

func (s *Server) handleSaveMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.metadataID(w, r)
	if !ok {
		return
	}

	var req saveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "Invalid metadata", err.Error())
		return
	}
	if req.Manual == nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "Invalid metadata", "manual section is required")
		return
	}
	if req.Manual.Status != "" && !metadata.IsValidStatus(req.Manual.Status) {
		writeError(w, http.StatusBadRequest, CodeValidation, "Invalid metadata",
			"Invalid status. Must be one of: "+strings.Join(metadata.ValidStatuses, ", "))
		return
	}

	doc, created, err := s.store.UpsertManual(id, *req.Manual, req.DisplayName)
	if err != nil {
		s.storeFailed(w, id, err)
		return
	}
	s.logger.Info("metadata saved", zap.String("id", id), zap.Bool("created", created))
	writeJSON(w, http.StatusOK, map[string]any{"metadata": doc, "created": created})
}

func (s *Server) handleDeleteMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.metadataID(w, r)
	if !ok {
		return
	}
	deleted, err := s.store.Delete(id)
	if err != nil {
		s.storeFailed(w, id, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, CodeMetadataNotFound, "Metadata not found", "No metadata exists for project: "+id)
		return
	}
	s.logger.Info("metadata deleted", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeFailed(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, metadata.ErrInvalidID) {
		writeError(w, http.StatusBadRequest, CodeInvalidProjectID, "Invalid project ID format", err.Error())
		return
	}
	s.logger.Error("metadata store failed", zap.String("id", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "Metadata operation failed", err.Error())
}
