package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON body written by [WriteError].
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON serializes data to JSON and writes it with the given status code
// and a "Content-Type: application/json" header.
//
// If marshaling fails, it responds with 500 Internal Server Error and returns
// a wrapped error. On success it returns the number of body bytes written.
//
// Example usage:
//
//	WriteJSON(w, state, http.StatusOK)
func WriteJSON(w http.ResponseWriter, data any, statusCode int) (int, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "error writing data to JSON", http.StatusInternalServerError)
		return 0, fmt.Errorf("error writing data to JSON: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return w.Write(jsonData)
}

// WriteError writes {"error": err.Error()} with statusCode.
func WriteError(w http.ResponseWriter, err error, statusCode int) {
	msg := http.StatusText(statusCode)
	if err != nil {
		msg = err.Error()
	}
	_, _ = WriteJSON(w, ErrorResponse{Error: msg}, statusCode)
}
