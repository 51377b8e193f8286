package server

import (
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/server/db"
)

func toProject(p *db.Project) api.Project {
	return api.Project{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		GrafanaSources: p.GrafanaSources,
		K8sConfig:      p.K8sConfig,
		LLMType:        p.LLMType,
		LLMModel:       p.LLMModel,
		CreatedAt:      api.NewTimestamp(p.CreatedAt),
	}
}

func toTest(t *db.Test) api.Test {
	return api.Test{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		TestType:     api.TestType(t.TestType),
		StartedAt:    timestampPtr(t.StartedAt),
		EndedAt:      timestampPtr(t.EndedAt),
		SystemPrompt: t.SystemPrompt,
		Status:       t.Status,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    api.NewTimestamp(t.CreatedAt),
	}
}

func toArtifact(a *db.Artifact) api.Artifact {
	return api.Artifact{
		ID:          a.ID,
		TestID:      a.TestID,
		Kind:        api.ArtifactKind(a.Kind),
		DisplayName: a.DisplayName,
		FilePath:    a.FilePath,
		Metadata:    a.Metadata,
		CreatedAt:   api.NewTimestamp(a.CreatedAt),
	}
}

func toArtifactRef(a *db.Artifact) api.ArtifactRef {
	return api.ArtifactRef{
		ID:          a.ID,
		Kind:        api.ArtifactKind(a.Kind),
		DisplayName: a.DisplayName,
		FilePath:    a.FilePath,
	}
}

func toReport(r *db.Report) api.Report {
	return api.Report{
		ID:                    r.ID,
		TestID:                r.TestID,
		ReportText:            r.ReportText,
		PDFPath:               r.PDFPath,
		ArtifactsUsedSnapshot: r.ArtifactsUsedSnapshot,
		CreatedAt:             api.NewTimestamp(r.CreatedAt),
	}
}

func timestampPtr(t *time.Time) *api.Timestamp {
	if t == nil {
		return nil
	}

	ts := api.NewTimestamp(*t)

	return &ts
}

func timePtr(ts *api.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}

	t := ts.UTC()

	return &t
}

func convertAll[S, D any](in []S, fn func(*S) D) []D {
	out := make([]D, 0, len(in))
	for i := range in {
		out = append(out, fn(&in[i]))
	}

	return out
}
