// shared/api/response.go
package api

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// JSONErrorResponse defines a standard structure for API error responses.
type JSONErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Field   string `json:"field,omitempty"` // set for validation errors
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeError(w, JSONErrorResponse{Message: message, Code: status})
}

// WriteFieldError reports a problem with one input field.
func WriteFieldError(w http.ResponseWriter, field, message string) {
	writeError(w, JSONErrorResponse{Message: message, Code: http.StatusBadRequest, Field: field})
}

func writeError(w http.ResponseWriter, errResp JSONErrorResponse) {
	if err := WriteJSON(w, errResp.Code, errResp); err != nil {
		log.Errorf("Failed to write JSON error response: %v", err)
	}
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
