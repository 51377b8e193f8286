package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/server/db"
)

var collectTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseWindow reads the from_ts/to_ts query pair.
func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, ok := parseQueryTime(w, r, "from_ts")
	if !ok {
		return time.Time{}, time.Time{}, false
	}

	to, ok := parseQueryTime(w, r, "to_ts")
	if !ok {
		return time.Time{}, time.Time{}, false
	}

	if to.Before(from) {
		writeValidation(w, "query", "to_ts", "must not be before from_ts")

		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}

func parseQueryTime(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeValidation(w, "query", name, "field required")

		return time.Time{}, false
	}

	for _, layout := range collectTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}

	writeValidation(w, "query", name, "invalid datetime format")

	return time.Time{}, false
}

// requireTestProject loads a test and its project.
func (s *server) requireTestProject(
	w http.ResponseWriter,
	r *http.Request,
) (*db.Test, *db.Project, bool) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return nil, nil, false
	}

	t, ok := s.requireTest(w, r, testID)
	if !ok {
		return nil, nil, false
	}

	p, err := s.store.GetProject(r.Context(), t.ProjectID)
	if err != nil {
		s.writeStoreError(w, err, projectNotFound)

		return nil, nil, false
	}

	return t, p, true
}

// storeJSON writes v as a file of testID.
func (s *server) storeJSON(testID int64, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}

	f, err := s.blobs.Save(testID, name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	return f.Path, nil
}

// handleCollectGrafana records a dashboard slice for the requested window
// as one grafana_slice artifact.
func (s *server) handleCollectGrafana(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dashboardUID := q.Get("dashboard_uid")
	if dashboardUID == "" {
		writeValidation(w, "query", "dashboard_uid", "field required")

		return
	}

	index := 0

	if raw := q.Get("grafana_source_index"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeValidation(w, "query", "grafana_source_index", "value is not a valid integer")

			return
		}

		index = v
	}

	from, to, ok := parseWindow(w, r)
	if !ok {
		return
	}

	t, p, ok := s.requireTestProject(w, r)
	if !ok {
		return
	}

	if len(p.GrafanaSources) == 0 {
		writeError(w, http.StatusBadRequest, "Project has no Grafana sources")

		return
	}

	if index < 0 || index >= len(p.GrafanaSources) {
		writeError(w, http.StatusBadRequest, "Invalid grafana_source_index")

		return
	}

	src := p.GrafanaSources[index]
	if src.URL == "" || src.Token == "" {
		writeError(w, http.StatusBadRequest, "Grafana url and token required")

		return
	}

	stamp := from.Format("20060102T150405Z")
	title := dashboardUID + " " + stamp

	metaPath, err := s.storeJSON(t.ID, "grafana_"+dashboardUID+"_"+stamp+".json", map[string]any{
		"dashboard_uid": dashboardUID,
		"source":        src.Name,
		"url":           src.URL,
		"from_ts":       from.Format(time.RFC3339),
		"to_ts":         to.Format(time.RFC3339),
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to store grafana slice")
		writeError(w, http.StatusInternalServerError, "Failed to store grafana slice")

		return
	}

	art := &db.Artifact{
		TestID:      t.ID,
		Kind:        string(api.ArtifactGrafanaSlice),
		DisplayName: &title,
		FilePath:    &metaPath,
		Metadata: map[string]any{
			"meta_path":     metaPath,
			"panel_id":      0,
			"dashboard_uid": dashboardUID,
			"from_ts":       from.Format(time.RFC3339),
			"to_ts":         to.Format(time.RFC3339),
		},
	}

	if err := s.store.CreateArtifacts(r.Context(), art); err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, api.GrafanaCollectResult{
		Collected: 1,
		Artifacts: []map[string]any{{
			"title":     title,
			"panel_id":  0,
			"meta_path": metaPath,
		}},
	})
}

// handleCollectKubernetes records the pod listing of the requested window
// as a k8s_pods artifact.
func (s *server) handleCollectKubernetes(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseWindow(w, r)
	if !ok {
		return
	}

	t, p, ok := s.requireTestProject(w, r)
	if !ok {
		return
	}

	if p.K8sConfig == nil {
		writeError(w, http.StatusBadRequest, "Project has no Kubernetes config")

		return
	}

	namespace := r.URL.Query().Get("namespace")

	podsFile, err := s.storeJSON(t.ID, "pods_list.json", map[string]any{
		"server":    p.K8sConfig.Server,
		"namespace": namespace,
		"from_ts":   from.Format(time.RFC3339),
		"to_ts":     to.Format(time.RFC3339),
		"pods":      []any{},
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to store pod listing")
		writeError(w, http.StatusInternalServerError, "Failed to store pod listing")

		return
	}

	displayName := "pods_list.json"

	art := &db.Artifact{
		TestID:      t.ID,
		Kind:        string(api.ArtifactK8sPods),
		DisplayName: &displayName,
		FilePath:    &podsFile,
		Metadata: map[string]any{
			"pods_count": 0,
			"namespace":  namespace,
		},
	}

	if err := s.store.CreateArtifacts(r.Context(), art); err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, api.K8sCollectResult{PodsFile: podsFile, LogsCount: 0})
}
