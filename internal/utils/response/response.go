// Package response provides helpers for writing consistent JSON HTTP
// responses from the students service.
//
// Success responses carry whatever shape the route defines (a student, a
// list, a summary). Error responses always use the Response envelope.
// Clients of this service only look at the status code; the envelope is
// there for humans reading curl output and logs.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the envelope returned for error cases:
//
//	{ "status": "error", "error": "field Name is required" }
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StatusError is the only status the envelope carries.
const StatusError = "error"

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes data as JSON with the given status code.
//
// Order matters: Header() → WriteHeader() → body. Once WriteHeader runs the
// headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes err in the error envelope.
func WriteError(w http.ResponseWriter, status int, err error) error {
	return WriteJSON(w, status, GeneralError(err))
}

// NoContent writes 204 with an empty body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// GeneralError wraps any error into the standard envelope.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError turns validator field errors into one readable message:
//
//	{ "status": "error", "error": "field Name is required, field Age must be greater than 0" }
//
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", e.Field()))
		case "gt":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be greater than %s", e.Field(), e.Param()))
		case "email":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be a valid email address", e.Field()))
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMessages, ", "),
	}
}
