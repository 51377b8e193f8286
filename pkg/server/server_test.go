package server

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/ethpandaops/ntview/pkg/store"
	"github.com/ethpandaops/ntview/pkg/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func newTestServer(t *testing.T, mutate ...func(*config.ServerConfig)) (*server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.ServerConfig{
		Listen: "127.0.0.1:0",
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			SQLite: config.SQLiteDatabaseConfig{Path: filepath.Join(dir, "ntview.db")},
		},
		Storage: config.StorageConfig{Path: filepath.Join(dir, "storage")},
	}

	for _, fn := range mutate {
		fn(cfg)
	}

	s := NewServer(testLogger(), cfg).(*server)
	require.NoError(t, s.prepare(context.Background()))

	ts := httptest.NewServer(s.buildRouter())

	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, s.Stop())
	})

	return s, ts
}

func newClient(t *testing.T, ts *httptest.Server) *api.Client {
	t.Helper()

	tr := transport.NewHTTPTransport(testLogger(), &config.ClientConfig{
		BaseURL: ts.URL,
		Timeout: 5 * time.Second,
	})

	return api.New(tr, api.WithBaseURL(ts.URL))
}

func seedProject(t *testing.T, c *api.Client, in *api.ProjectCreate) *api.Project {
	t.Helper()

	p, err := c.Projects().Create(context.Background(), in)
	require.NoError(t, err)

	return p
}

func seedTest(t *testing.T, c *api.Client, projectID int64) *api.Test {
	t.Helper()

	tst, err := c.Tests().Create(context.Background(), &api.TestCreate{
		ProjectID: projectID,
		TestType:  api.TestTypeMaxSearch,
	})
	require.NoError(t, err)

	return tst
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)

	h, err := newClient(t, ts).Health().Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
}

func TestServer_Projects(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	a := seedProject(t, c, &api.ProjectCreate{Name: "svc-a"})
	assert.Equal(t, api.DefaultLLMType, a.LLMType)
	assert.Equal(t, api.DefaultLLMModel, a.LLMModel)
	assert.False(t, a.CreatedAt.IsZero())

	b := seedProject(t, c, &api.ProjectCreate{Name: "svc-b", LLMType: "openai", LLMModel: "gpt-4o"})

	list, err := c.Projects().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []int64{a.ID, b.ID}, []int64{list[0].ID, list[1].ID})

	desc := "load test"
	updated, err := c.Projects().Update(ctx, a.ID, &api.ProjectUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "svc-a", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "load test", *updated.Description)
	assert.Equal(t, api.DefaultLLMType, updated.LLMType)

	require.NoError(t, c.Projects().Delete(ctx, a.ID))

	_, err = c.Projects().Get(ctx, a.ID)
	require.True(t, transport.IsNotFound(err))

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Project not found", terr.Message)

	err = c.Projects().Delete(ctx, a.ID)
	assert.True(t, transport.IsNotFound(err))
}

func TestServer_ProjectValidation(t *testing.T) {
	_, ts := newTestServer(t)

	_, err := newClient(t, ts).Projects().Create(context.Background(), &api.ProjectCreate{})
	require.True(t, transport.IsValidation(err))

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusUnprocessableEntity, terr.StatusCode)
	assert.Equal(t, "body.name: field required", terr.Message)
}

func TestServer_Tests(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	p1 := seedProject(t, c, &api.ProjectCreate{Name: "a"})
	p2 := seedProject(t, c, &api.ProjectCreate{Name: "b"})

	t1 := seedTest(t, c, p1.ID)
	t2 := seedTest(t, c, p2.ID)
	t3 := seedTest(t, c, p1.ID)

	assert.Equal(t, api.TestStatusPending, t1.Status)

	tests := []struct {
		name string
		opts []api.ListOption
		want []int64
	}{
		{name: "all newest first", want: []int64{t3.ID, t2.ID, t1.ID}},
		{name: "filtered by project", opts: []api.ListOption{api.WithProjectID(p1.ID)}, want: []int64{t3.ID, t1.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := c.Tests().List(ctx, tt.opts...)
			require.NoError(t, err)

			got := make([]int64, 0, len(list))
			for _, item := range list {
				got = append(got, item.ID)
			}

			assert.Equal(t, tt.want, got)
		})
	}

	_, err := c.Tests().Create(ctx, &api.TestCreate{ProjectID: 999, TestType: api.TestTypeReliability})
	assert.True(t, transport.IsNotFound(err))

	_, err = c.Tests().Create(ctx, &api.TestCreate{ProjectID: p1.ID, TestType: "soak"})
	assert.True(t, transport.IsValidation(err))

	require.NoError(t, c.Tests().Delete(ctx, t2.ID))

	_, err = c.Tests().Get(ctx, t2.ID)
	assert.True(t, transport.IsNotFound(err))
}

func TestServer_ArtifactLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	p := seedProject(t, c, &api.ProjectCreate{Name: "svc"})
	tst := seedTest(t, c, p.ID)

	art, err := c.Artifacts().Upload(ctx, tst.ID, &api.Upload{
		Kind:     api.ArtifactCustomGC,
		FileName: "gc.log",
		Content:  strings.NewReader("pause 12ms"),
	})
	require.NoError(t, err)
	assert.Equal(t, "gc.log", art.Name())

	var meta api.UploadMetadata
	require.NoError(t, art.DecodeMetadata(&meta))
	assert.Equal(t, "gc.log", meta.OriginalFilename)
	assert.Equal(t, int64(10), meta.Size)

	_, err = c.Artifacts().Upload(ctx, tst.ID, &api.Upload{
		Kind:        api.ArtifactCustomThreadDump,
		DisplayName: "dump",
		FileName:    "jstack.out",
		Content:     strings.NewReader("\"main\" #1"),
	})
	require.NoError(t, err)

	list, err := c.Artifacts().List(ctx, tst.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	data, err := c.Artifacts().DownloadAll(ctx, tst.ID)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}

	assert.ElementsMatch(t, []string{"gc.log", "dump.txt"}, names)

	require.NoError(t, c.Artifacts().DeleteAll(ctx, tst.ID))

	list, err = c.Artifacts().List(ctx, tst.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = c.Artifacts().List(ctx, 999)
	assert.True(t, transport.IsNotFound(err))
}

func TestServer_RunAnalysisThroughStore(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	p := seedProject(t, c, &api.ProjectCreate{Name: "svc"})
	tst := seedTest(t, c, p.ID)

	_, err := c.Artifacts().Upload(ctx, tst.ID, &api.Upload{
		Kind:     api.ArtifactCustomJavaLog,
		FileName: "app.log",
		Content:  strings.NewReader("started"),
	})
	require.NoError(t, err)

	stores := store.New(testLogger(), c)
	stores.Tests.FetchTests(ctx)

	run, err := stores.Tests.RunAnalysis(ctx, tst.ID)
	require.NoError(t, err)
	assert.Equal(t, "done", run.Ack.Status)
	require.Len(t, run.Ack.ArtifactsUsed, 1)
	require.True(t, run.Test.OK)
	assert.Equal(t, api.TestStatusCompleted, run.Test.Value.Status)
	assert.Equal(t, api.TestStatusCompleted, stores.Tests.Items()[0].Status)

	require.NoError(t, stores.LoadTestDetail(ctx, tst.ID))

	rep, ok := stores.Reports.Current()
	require.True(t, ok)
	assert.Equal(t, run.Ack.ReportID, rep.ID)
	assert.Contains(t, rep.ReportText, "Artifacts used (1)")
	assert.Contains(t, rep.ReportText, "- [Java log] app.log")

	text, err := c.Reports().GetText(ctx, tst.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.ReportText, text)

	_, err = stores.Tests.RunAnalysis(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, "failed to run analysis", stores.Tests.ErrorMessage())
}

func TestServer_RunAnalysisUpdatesReport(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	p := seedProject(t, c, &api.ProjectCreate{Name: "svc"})
	tst := seedTest(t, c, p.ID)

	first, err := c.Tests().RunAnalysis(ctx, tst.ID)
	require.NoError(t, err)

	second, err := c.Tests().RunAnalysis(ctx, tst.ID)
	require.NoError(t, err)

	rep, err := c.Reports().Get(ctx, tst.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ReportID, second.ReportID)
	assert.Equal(t, second.ReportID, rep.ID)
	assert.Contains(t, rep.ReportText, "- none")
}

func TestServer_Reports(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	_, err := c.Reports().Get(ctx, 42)
	require.True(t, transport.IsNotFound(err))

	resp, err := http.Get(c.Reports().PDFURL(42))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Collect(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	bare := seedProject(t, c, &api.ProjectCreate{Name: "bare"})
	wired := seedProject(t, c, &api.ProjectCreate{
		Name:           "wired",
		GrafanaSources: []api.GrafanaSource{{Name: "main", URL: "http://grafana:3000", Token: "t"}},
		K8sConfig:      &api.K8sConfig{Server: "https://k8s:6443", Token: "t"},
	})

	bareTest := seedTest(t, c, bare.ID)
	wiredTest := seedTest(t, c, wired.ID)

	from := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	grafanaCases := []struct {
		name    string
		testID  int64
		index   int
		wantErr int
	}{
		{name: "project without sources", testID: bareTest.ID, wantErr: http.StatusBadRequest},
		{name: "index out of range", testID: wiredTest.ID, index: 3, wantErr: http.StatusBadRequest},
		{name: "missing test", testID: 999, wantErr: http.StatusNotFound},
		{name: "recorded", testID: wiredTest.ID},
	}

	for _, tt := range grafanaCases {
		t.Run("grafana "+tt.name, func(t *testing.T) {
			res, err := c.Collect().Grafana(ctx, tt.testID, &api.GrafanaCollectParams{
				From:         from,
				To:           to,
				DashboardUID: "jvm",
				SourceIndex:  tt.index,
			})
			if tt.wantErr != 0 {
				assert.True(t, transport.HasStatusCode(err, tt.wantErr), "got %v", err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, 1, res.Collected)
		})
	}

	_, err := c.Collect().Kubernetes(ctx, bareTest.ID, &api.K8sCollectParams{From: from, To: to})
	assert.True(t, transport.HasStatusCode(err, http.StatusBadRequest))

	k8s, err := c.Collect().Kubernetes(ctx, wiredTest.ID, &api.K8sCollectParams{From: from, To: to, Namespace: "perf"})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("artifacts/%d/pods_list.json", wiredTest.ID), k8s.PodsFile)

	arts, err := c.Artifacts().List(ctx, wiredTest.ID)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, api.ArtifactGrafanaSlice, arts[0].Kind)
	assert.Equal(t, api.ArtifactK8sPods, arts[1].Kind)

	var slice api.GrafanaSliceMetadata
	require.NoError(t, arts[0].DecodeMetadata(&slice))
	assert.Equal(t, "jvm", slice.DashboardUID)

	var pods api.K8sPodsMetadata
	require.NoError(t, arts[1].DecodeMetadata(&pods))
	assert.Equal(t, "perf", pods.Namespace)
}

func TestServer_RateLimit(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.ServerConfig) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	})
	c := newClient(t, ts)
	ctx := context.Background()

	_, err := c.Projects().List(ctx)
	require.NoError(t, err)

	_, err = c.Projects().List(ctx)
	assert.True(t, transport.HasStatusCode(err, http.StatusTooManyRequests))

	_, err = c.Health().Check(ctx)
	assert.NoError(t, err, "health is not rate limited")
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "10.0.0.1:5123", want: "10.0.0.1"},
		{name: "forwarded chain", xff: "203.0.113.7, 10.0.0.1", remote: "10.0.0.1:5123", want: "203.0.113.7"},
		{name: "unparsable remote", remote: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote

			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, clientAddr(r))
		})
	}
}

func TestStoredName(t *testing.T) {
	assert.Equal(t, "gc.log", storedName(api.ArtifactCustomGC, "gc.log"))
	assert.Equal(t, "heap.hprof", storedName(api.ArtifactCustomHeapDump, "heap"))
	assert.Equal(t, "blob.bin", storedName("custom_unknown", "blob"))
}
