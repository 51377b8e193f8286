package server

import (
	"net/http"
	"strings"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/server/db"
)

const projectNotFound = "Project not found"

func (s *server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	writeJSON(w, http.StatusOK, convertAll(projects, toProject))
}

func (s *server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toProject(p))
}

func (s *server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.ProjectCreate
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeValidation(w, "body", "name", "field required")

		return
	}

	p := &db.Project{
		Name:           req.Name,
		Description:    req.Description,
		GrafanaSources: req.GrafanaSources,
		K8sConfig:      req.K8sConfig,
		LLMType:        req.LLMType,
		LLMModel:       req.LLMModel,
		LLMAPIKey:      req.LLMAPIKey,
	}

	if p.LLMType == "" {
		p.LLMType = api.DefaultLLMType
	}

	if p.LLMModel == "" {
		p.LLMModel = api.DefaultLLMModel
	}

	if err := s.store.CreateProject(r.Context(), p); err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toProject(p))
}

// handleUpdateProject applies only the fields present in the body.
func (s *server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.ProjectUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeValidation(w, "body", "name", "must not be empty")

		return
	}

	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	applyProjectUpdate(p, &req)

	if err := s.store.SaveProject(r.Context(), p); err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toProject(p))
}

func applyProjectUpdate(p *db.Project, u *api.ProjectUpdate) {
	if u.Name != nil {
		p.Name = *u.Name
	}

	if u.Description != nil {
		p.Description = u.Description
	}

	if u.GrafanaSources != nil {
		p.GrafanaSources = *u.GrafanaSources
	}

	if u.K8sConfig != nil {
		p.K8sConfig = u.K8sConfig
	}

	if u.LLMType != nil {
		p.LLMType = *u.LLMType
	}

	if u.LLMModel != nil {
		p.LLMModel = *u.LLMModel
	}

	if u.LLMAPIKey != nil {
		p.LLMAPIKey = u.LLMAPIKey
	}
}

func (s *server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	testIDs, err := s.store.DeleteProject(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return
	}

	for _, testID := range testIDs {
		s.removeTestFiles(testID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// removeTestFiles drops stored files of a deleted test. Failures are
// logged.
func (s *server) removeTestFiles(testID int64) {
	if err := s.blobs.RemoveTest(testID); err != nil {
		s.log.WithError(err).
			WithField("test_id", testID).
			Warn("Failed to remove test files")
	}
}
