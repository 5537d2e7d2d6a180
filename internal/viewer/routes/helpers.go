package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/editor"
)

// maxBody bounds JSON request bodies. File content travels in them.
const maxBody = 8 << 20

func handleGet(mux *http.ServeMux, path string, fn http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	})
}

// handlePost decodes the JSON body into T before calling fn.
func handlePost[T any](mux *http.ServeMux, path string, fn func(http.ResponseWriter, *http.Request, T)) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req T
		if decodeJSON(w, r, &req) != nil {
			return
		}
		fn(w, r, req)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status matching err's kind.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Warnf("request failed: %v", err)
	}
	writeJSONStatus(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrDuplicatePath), errors.Is(err, editor.ErrDiscardDeclined):
		return http.StatusConflict
	case errors.Is(err, content.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrClosed):
		return http.StatusGone
	case errors.Is(err, content.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// requireParam reads a mandatory query parameter.
func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		writeError(w, &content.ValidationError{Field: name, Reason: "required"})
		return "", false
	}
	return v, true
}
