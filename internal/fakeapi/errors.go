package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type validationError struct {
	Message string   `json:"message"`
	Members []string `json:"members"`
}

type errorInfo struct {
	Code             string            `json:"code,omitempty"`
	Message          string            `json:"message"`
	Details          string            `json:"details,omitempty"`
	ValidationErrors []validationError `json:"validationErrors,omitempty"`
}

type apiError struct {
	status int
	body   errorInfo
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body.Message)
}

func asAPIError(err error) *apiError {
	var e *apiError
	if errors.As(err, &e) {
		return e
	}
	return &apiError{status: http.StatusInternalServerError, body: errorInfo{Message: "An internal error occurred during your request!"}}
}

func unauthorized() *apiError {
	return &apiError{status: http.StatusUnauthorized, body: errorInfo{
		Code:    "Volo.Authorization:010001",
		Message: "Current user did not login to the application!",
	}}
}

func entityNotFound(entity, id string) *apiError {
	return &apiError{status: http.StatusNotFound, body: errorInfo{
		Message: "There is no such an entity given id. Entity type: " + entity,
		Details: fmt.Sprintf("Entity type: %s, id: %s", entity, id),
	}}
}

// businessError is what the service answers when a domain rule is broken.
func businessError(code, message string) *apiError {
	return &apiError{status: http.StatusForbidden, body: errorInfo{Code: code, Message: message}}
}

func invalidRequest(member, message string) *apiError {
	return &apiError{status: http.StatusBadRequest, body: errorInfo{
		Message:          "Your request is not valid!",
		Details:          "The following errors were detected during validation.\n - " + message + "\n",
		ValidationErrors: []validationError{{Message: message, Members: []string{member}}},
	}}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.status, struct {
		Error errorInfo `json:"error"`
	}{Error: e.body})
}

// dropConnection closes the underlying connection without a response.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
