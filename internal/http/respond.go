package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/mkashifaslam/go-api-template/internal/validate"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeValidationError sends the field level issues of a rejected input.
func writeValidationError(w http.ResponseWriter, verr *validate.Error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": "Bad Request",
		"errors":  verr.Issues,
	})
}
