// ABOUTME: JSON response and request helpers shared by all handlers
// ABOUTME: Includes path parameter validation for table names and ids

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// maxUploadBytes caps multipart photo uploads.
const maxUploadBytes = 20 << 20

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]{1,120}$`)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return err
	}
	return nil
}

// pathParam returns the unescaped, trimmed chi URL parameter.
func pathParam(r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func validName(v string) bool {
	return namePattern.MatchString(v)
}

func validID(v string) bool {
	return v != "" && len(v) <= 200
}

// tableParam returns the validated {table} parameter.
func tableParam(r *http.Request) (string, bool) {
	v, ok := pathParam(r, "table")
	return v, ok && validName(v)
}

// idParam returns the validated id parameter called name.
func idParam(r *http.Request, name string) (string, bool) {
	v, ok := pathParam(r, name)
	return v, ok && validID(v)
}

// idColumnParam returns the optional ?idColumn= query value.
func idColumnParam(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("idColumn"))
	if v == "" {
		return "", true
	}
	return v, validName(v)
}

// recordPayload converts {"record": {...}} into string cells. Numbers,
// booleans and null are accepted; nested values are rejected.
func recordPayload(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	var body struct {
		Record map[string]json.RawMessage `json:"record"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		return nil, err
	}
	if body.Record == nil {
		return nil, fmt.Errorf("record is required")
	}
	out := make(map[string]string, len(body.Record))
	for k, raw := range body.Record {
		v, err := cellValue(raw)
		if err != nil {
			return nil, fmt.Errorf("record.%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func cellValue(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("must be a string, number, boolean or null")
	}
}
