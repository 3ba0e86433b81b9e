// Package jsonutil provides helper functions for JSON API responses.
//
// All API endpoints respond with the same envelope so the SPA can handle
// responses uniformly:
//
//	{"status": 200, "data": {...}, "message": "Folder created successfully"}
//
// Errors use the same shape with a null data field.
package jsonutil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body shape shared by all API endpoints.
type Envelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// JSON writes an enveloped JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Status: status, Data: data, Message: message})
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusOK, data, message)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusCreated, data, message)
}

// NoContent writes a 204 No Content response (no body).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code and message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, nil, message)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized error response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 Forbidden error response.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, message)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 Internal Server Error response.
// Do not expose internal details to clients - log the actual error separately.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

// ValidationError writes a 400 Bad Request response with field-level errors.
func ValidationError(w http.ResponseWriter, errors map[string]string) {
	JSON(w, http.StatusBadRequest, map[string]any{"fields": errors}, "validation failed")
}

// Decode reads and decodes JSON from the request body into v.
// Returns an error that can be passed to BadRequest if decoding fails.
func Decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
