// Package httpkit provides the {success, data, message, timestamp} response
// envelope (spec.md §6) and generic handler wrappers, grounded on the
// teacher's httputil.WriteJSON/HandleJSON pattern.
package httpkit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wayfind/Cortex/platform/apierr"
	"github.com/wayfind/Cortex/platform/logging"
)

// Envelope is the standard response wrapper for every Cortex HTTP endpoint.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteJSON writes data wrapped in a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: status < 400, Data: data, Timestamp: time.Now().UTC()})
}

// WriteMessage writes a success/failure envelope with a message and no data.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: status < 400, Message: message, Timestamp: time.Now().UTC()})
}

// WriteError maps err to a status code using apierr's typed errors and
// writes the failure envelope. Unrecognized errors become 500s; their
// detail is logged, never echoed to the caller (spec.md §7: "no stack
// traces in the response").
func WriteError(w http.ResponseWriter, r *http.Request, log *logging.Logger, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError && log != nil {
		log.WithContext(r.Context()).WithError(err).Error("handler failed")
	}
	WriteMessage(w, status, message)
}

func classify(err error) (int, string) {
	switch e := err.(type) {
	case *apierr.NotFoundError:
		return http.StatusNotFound, e.Error()
	case *apierr.ValidationError:
		return http.StatusBadRequest, e.Error()
	case *apierr.UnauthorizedError:
		return http.StatusUnauthorized, e.Error()
	case *apierr.ForbiddenError:
		return http.StatusForbidden, e.Error()
	case *apierr.ConflictError:
		return http.StatusConflict, e.Error()
	case *apierr.UnavailableError:
		return http.StatusServiceUnavailable, e.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// DecodeJSON decodes the request body into v, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// QueryInt reads an integer query parameter with a default.
func QueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

// QueryString reads a string query parameter with a default.
func QueryString(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

// Pagination extracts offset/limit, clamped to [1, maxLimit].
func Pagination(r *http.Request, defaultLimit, maxLimit int) (offset, limit int) {
	offset = QueryInt(r, "offset", 0)
	limit = QueryInt(r, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// Handle wraps a context-aware handler function that returns (data, error)
// into an http.HandlerFunc, eliminating the decode/execute/respond
// boilerplate for GET-style endpoints.
func Handle(log *logging.Logger, fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fn(r)
		if err != nil {
			WriteError(w, r, log, err)
			return
		}
		WriteJSON(w, http.StatusOK, data)
	}
}

// HandleJSON decodes a JSON body of type Req, calls fn, and writes its
// result as the envelope's data.
func HandleJSON[Req any](log *logging.Logger, fn func(r *http.Request, req *Req) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !DecodeJSON(w, r, &req) {
			return
		}
		data, err := fn(r, &req)
		if err != nil {
			WriteError(w, r, log, err)
			return
		}
		WriteJSON(w, http.StatusOK, data)
	}
}
