// Package httputil provides HTTP request and response helpers shared by the API handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

// maxRequestBodyBytes bounds JSON request bodies.
const maxRequestBodyBytes = 1 << 20

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// =============================================================================
// Responses
// =============================================================================

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response carrying a detail message.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorResponse{Detail: detail})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, detail)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, detail)
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusInternalServerError, detail)
}

// WriteServiceError maps err onto the error taxonomy, logs the cause and writes the response.
// Errors outside the taxonomy become 500 with the error text as detail.
func WriteServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status := svcerrors.HTTPStatus(err)
	detail := err.Error()
	if se := svcerrors.GetServiceError(err); se != nil {
		detail = se.Message
	}

	if log != nil {
		entry := log.WithContext(r.Context()).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Warn("request rejected")
		}
	}

	WriteError(w, status, detail)
}

// =============================================================================
// Requests
// =============================================================================

// DecodeJSON decodes the request body into v, writing a 400 response on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		BadRequest(w, "request body is required")
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			BadRequest(w, "request body is required")
			return false
		}
		BadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// QueryInt parses an integer query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcerrors.Validation(name + " must be an integer")
	}
	return n, nil
}

// QueryBool parses a boolean query parameter, returning def when absent.
func QueryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, svcerrors.Validation(name + " must be a boolean")
	}
	return b, nil
}

// OptionalQuery returns a trimmed query parameter or nil when empty.
func OptionalQuery(r *http.Request, name string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	return &raw
}
