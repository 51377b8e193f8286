package server

import (
	"net/http"
	"strconv"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/server/db"
)

const testNotFound = "Test not found"

func (s *server) handleListTests(w http.ResponseWriter, r *http.Request) {
	var projectID *int64

	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeValidation(w, "query", "project_id", "value is not a valid integer")

			return
		}

		projectID = &id
	}

	tests, err := s.store.ListTests(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, convertAll(tests, toTest))
}

func (s *server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := s.store.GetTest(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toTest(t))
}

func (s *server) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	var req api.TestCreate
	if !decodeBody(w, r, &req) {
		return
	}

	if !req.TestType.IsValid() {
		writeValidation(w, "body", "test_type", "unknown test type "+strconv.Quote(string(req.TestType)))

		return
	}

	if _, err := s.store.GetProject(r.Context(), req.ProjectID); err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	t := &db.Test{
		ProjectID:    req.ProjectID,
		TestType:     string(req.TestType),
		StartedAt:    timePtr(req.StartedAt),
		EndedAt:      timePtr(req.EndedAt),
		SystemPrompt: req.SystemPrompt,
		Status:       api.TestStatusPending,
	}

	if err := s.store.CreateTest(r.Context(), t); err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toTest(t))
}

func (s *server) handleDeleteTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.store.DeleteTest(r.Context(), id); err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	s.removeTestFiles(id)

	w.WriteHeader(http.StatusNoContent)
}

// handleRunAnalysis builds the report of a test from its artifacts and
// marks the test completed.
func (s *server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.runAnalysis(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, result)
}
