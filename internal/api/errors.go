package api

import (
	"encoding/json"
	"net/http"
)

// Stable error codes returned to clients.
const (
	CodeInvalidProjectID  = "INVALID_PROJECT_ID"
	CodeProjectNotFound   = "PROJECT_NOT_FOUND"
	CodeMetadataNotFound  = "METADATA_NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeQueueStatus       = "QUEUE_STATUS_ERROR"
	CodeDirectoryNotFound = "DIRECTORY_NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, errorResponse{
		Error: errorBody{Message: message, Code: code, Details: details},
	})
}
