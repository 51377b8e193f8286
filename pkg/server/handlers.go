package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethpandaops/ntview/pkg/server/db"
	"github.com/go-chi/chi/v5"
)

// errorResponse is the standard error payload.
type errorResponse struct {
	Detail any `json:"detail"`
}

// validationIssue is one entry of a field validation error.
type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}

// writeValidation reports an invalid request field with status 422.
func writeValidation(w http.ResponseWriter, loc, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Detail: []validationIssue{{
			Loc:  []string{loc, field},
			Msg:  msg,
			Type: "value_error",
		}},
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

// writeStoreError maps a store failure to a response. notFoundMsg is sent
// when the row is missing.
func (s *server) writeStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, notFoundMsg)

		return
	}

	s.log.WithError(err).Error("Request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// pathID parses the numeric URL parameter name.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeValidation(w, "path", name, "value is not a valid integer")

		return 0, false
	}

	return id, true
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeValidation(w, "body", "__root__", fmt.Sprintf("invalid JSON body: %v", err))

		return false
	}

	return true
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
