package db

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	s := NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestStore_UnsupportedDriver(t *testing.T) {
	s := NewStore(logrus.New(), &config.DatabaseConfig{Driver: "mysql"})
	require.ErrorContains(t, s.Start(context.Background()), "unsupported database driver")
}

func TestStore_Projects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Project{
		Name:           "svc-a",
		GrafanaSources: []api.GrafanaSource{{Name: "main", URL: "http://grafana", Token: "t"}},
		K8sConfig:      &api.K8sConfig{Server: "https://k8s"},
		LLMType:        api.DefaultLLMType,
		LLMModel:       api.DefaultLLMModel,
	}
	b := &Project{Name: "svc-b", LLMType: "openai", LLMModel: "gpt-4o"}

	require.NoError(t, s.CreateProject(ctx, a))
	require.NoError(t, s.CreateProject(ctx, b))

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "svc-a", list[0].Name)
	assert.Equal(t, "svc-b", list[1].Name)

	got, err := s.GetProject(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got.GrafanaSources, 1)
	assert.Equal(t, "http://grafana", got.GrafanaSources[0].URL)
	require.NotNil(t, got.K8sConfig)
	assert.Equal(t, "https://k8s", got.K8sConfig.Server)

	got.Name = "svc-a2"
	require.NoError(t, s.SaveProject(ctx, got))

	got, err = s.GetProject(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "svc-a2", got.Name)

	_, err = s.GetProject(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteProjectCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Project{Name: "svc", LLMType: "ollama", LLMModel: "m"}
	require.NoError(t, s.CreateProject(ctx, p))

	t1 := &Test{ProjectID: p.ID, TestType: "max_search", Status: "pending"}
	require.NoError(t, s.CreateTest(ctx, t1))
	require.NoError(t, s.CreateArtifacts(ctx, &Artifact{TestID: t1.ID, Kind: "custom_gc"}))
	require.NoError(t, s.SaveReport(ctx, &Report{TestID: t1.ID, ReportText: "r"}))

	ids, err := s.DeleteProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{t1.ID}, ids)

	_, err = s.GetTest(ctx, t1.ID)
	require.ErrorIs(t, err, ErrNotFound)

	arts, err := s.ListArtifacts(ctx, t1.ID)
	require.NoError(t, err)
	assert.Empty(t, arts)

	_, err = s.GetReport(ctx, t1.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.DeleteProject(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListTests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1 := &Project{Name: "a", LLMType: "ollama", LLMModel: "m"}
	p2 := &Project{Name: "b", LLMType: "ollama", LLMModel: "m"}
	require.NoError(t, s.CreateProject(ctx, p1))
	require.NoError(t, s.CreateProject(ctx, p2))

	for _, pid := range []int64{p1.ID, p2.ID, p1.ID} {
		require.NoError(t, s.CreateTest(ctx, &Test{ProjectID: pid, TestType: "stability", Status: "pending"}))
	}

	tests := []struct {
		name      string
		projectID *int64
		want      int
	}{
		{name: "all", want: 3},
		{name: "filtered", projectID: &p1.ID, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListTests(ctx, tt.projectID)
			require.NoError(t, err)
			require.Len(t, list, tt.want)

			for i := 1; i < len(list); i++ {
				assert.Greater(t, list[i-1].ID, list[i].ID, "tests are newest first")
			}
		})
	}
}

func TestStore_SetTestStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Project{Name: "a", LLMType: "ollama", LLMModel: "m"}
	require.NoError(t, s.CreateProject(ctx, p))

	tst := &Test{ProjectID: p.ID, TestType: "stability", Status: "pending"}
	require.NoError(t, s.CreateTest(ctx, tst))

	require.NoError(t, s.SetTestStatus(ctx, tst.ID, "completed", nil))

	got, err := s.GetTest(ctx, tst.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	require.ErrorIs(t, s.SetTestStatus(ctx, 404, "completed", nil), ErrNotFound)
	require.ErrorIs(t, s.DeleteTest(ctx, 404), ErrNotFound)
}

func TestStore_SaveReportReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Report{TestID: 7, ReportText: "first"}
	require.NoError(t, s.SaveReport(ctx, first))
	require.NoError(t, s.SaveReport(ctx, &Report{
		TestID:                7,
		ReportText:            "second",
		ArtifactsUsedSnapshot: []api.ArtifactRef{{ID: 1, Kind: api.ArtifactCustomGC}},
	}))

	r, err := s.GetReport(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.ID, r.ID)
	assert.Equal(t, "second", r.ReportText)
	require.Len(t, r.ArtifactsUsedSnapshot, 1)
	assert.Equal(t, api.ArtifactCustomGC, r.ArtifactsUsedSnapshot[0].Kind)
}

func TestStore_Artifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateArtifacts(ctx,
		&Artifact{TestID: 3, Kind: "custom_gc", Metadata: map[string]any{"size": 12}},
		&Artifact{TestID: 3, Kind: "grafana_slice"},
		&Artifact{TestID: 4, Kind: "k8s_pods"},
	))

	arts, err := s.ListArtifacts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "custom_gc", arts[0].Kind)
	assert.EqualValues(t, 12, arts[0].Metadata["size"])

	require.NoError(t, s.DeleteArtifacts(ctx, 3))

	arts, err = s.ListArtifacts(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, arts)

	arts, err = s.ListArtifacts(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, arts, 1)
}
