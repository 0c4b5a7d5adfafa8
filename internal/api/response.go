package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// envelope is the standard API response wrapper.
// All JSON responses use this format: { "data": ..., "error": ... }
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// Pagination bounds for list endpoints.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// writeJSON writes a JSON response with the given status code and data payload.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: msg}); err != nil {
		slog.Error("failed to encode json error response", "error", err)
	}
}

// readJSON decodes a single JSON object from the request body into dst,
// rejecting unknown fields. It returns a client-facing message, or "" on
// success.
func readJSON(r *http.Request, dst any) string {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			sizeErr   *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return "request body must not be empty"
		case errors.As(err, &sizeErr):
			return fmt.Sprintf("request body must not exceed %d bytes", sizeErr.Limit)
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return "malformed json"
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return fmt.Sprintf("invalid value for field %q", typeErr.Field)
			}
			return "invalid value in request body"
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
		default:
			return "invalid request body"
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return "request body must contain a single json object"
	}
	return ""
}

// Pagination is a parsed limit/offset pair.
type Pagination struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps one page of a list endpoint.
type PaginatedResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// parsePagination reads limit and offset query parameters. Limits above
// maxLimit are clamped.
func parsePagination(r *http.Request) (Pagination, string) {
	p := Pagination{Limit: defaultLimit}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, "limit must be a positive integer"
		}
		p.Limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, "offset must be a non-negative integer"
		}
		p.Offset = n
	}
	return p, ""
}
