package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
)

// errorBody is the error field of the response envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope is the {success, data, error} response shape spec.md §6 names,
// grounded on backend/api/response.go's OK/Data/Error envelope (field
// renamed ok -> success to match spec.md's wording).
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: &errorBody{Code: code, Message: msg}}); err != nil {
		log.Printf("httpapi: failed to encode error response: %v", err)
	}
}
