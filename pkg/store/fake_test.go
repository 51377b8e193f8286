package store

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/transport"
	"github.com/sirupsen/logrus"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func ptr[T any](v T) *T { return &v }

var (
	errNotFound = &transport.Error{
		Kind:       transport.KindNotFound,
		StatusCode: http.StatusNotFound,
		Message:    "not found",
	}
	errUnavailable = &transport.Error{
		Kind:    transport.KindTransport,
		Message: "connection refused",
	}
)

type fakeProjects struct {
	listFn   func(ctx context.Context) ([]api.Project, error)
	getFn    func(ctx context.Context, id int64) (*api.Project, error)
	createFn func(ctx context.Context, in *api.ProjectCreate) (*api.Project, error)
	updateFn func(ctx context.Context, id int64, in *api.ProjectUpdate) (*api.Project, error)
	deleteFn func(ctx context.Context, id int64) error
}

var _ api.ProjectsAPI = (*fakeProjects)(nil)

func (f *fakeProjects) List(ctx context.Context) ([]api.Project, error) { return f.listFn(ctx) }

func (f *fakeProjects) Get(ctx context.Context, id int64) (*api.Project, error) {
	return f.getFn(ctx, id)
}

func (f *fakeProjects) Create(ctx context.Context, in *api.ProjectCreate) (*api.Project, error) {
	return f.createFn(ctx, in)
}

func (f *fakeProjects) Update(ctx context.Context, id int64, in *api.ProjectUpdate) (*api.Project, error) {
	return f.updateFn(ctx, id, in)
}

func (f *fakeProjects) Delete(ctx context.Context, id int64) error { return f.deleteFn(ctx, id) }

type fakeTests struct {
	listFn    func(ctx context.Context, opts ...api.ListOption) ([]api.Test, error)
	getFn     func(ctx context.Context, id int64) (*api.Test, error)
	createFn  func(ctx context.Context, in *api.TestCreate) (*api.Test, error)
	deleteFn  func(ctx context.Context, id int64) error
	analyzeFn func(ctx context.Context, id int64) (*api.AnalysisResult, error)

	getCalls     atomic.Int32
	analyzeCalls atomic.Int32
}

var _ api.TestsAPI = (*fakeTests)(nil)

func (f *fakeTests) List(ctx context.Context, opts ...api.ListOption) ([]api.Test, error) {
	return f.listFn(ctx, opts...)
}

func (f *fakeTests) Get(ctx context.Context, id int64) (*api.Test, error) {
	f.getCalls.Add(1)

	return f.getFn(ctx, id)
}

func (f *fakeTests) Create(ctx context.Context, in *api.TestCreate) (*api.Test, error) {
	return f.createFn(ctx, in)
}

func (f *fakeTests) Delete(ctx context.Context, id int64) error { return f.deleteFn(ctx, id) }

func (f *fakeTests) RunAnalysis(ctx context.Context, id int64) (*api.AnalysisResult, error) {
	f.analyzeCalls.Add(1)

	return f.analyzeFn(ctx, id)
}

type fakeArtifacts struct {
	listFn      func(ctx context.Context, testID int64) ([]api.Artifact, error)
	uploadFn    func(ctx context.Context, testID int64, in *api.Upload) (*api.Artifact, error)
	downloadFn  func(ctx context.Context, testID int64) ([]byte, error)
	deleteAllFn func(ctx context.Context, testID int64) error

	listCalls atomic.Int32
}

var _ api.ArtifactsAPI = (*fakeArtifacts)(nil)

func (f *fakeArtifacts) List(ctx context.Context, testID int64) ([]api.Artifact, error) {
	f.listCalls.Add(1)

	return f.listFn(ctx, testID)
}

func (f *fakeArtifacts) Upload(ctx context.Context, testID int64, in *api.Upload) (*api.Artifact, error) {
	return f.uploadFn(ctx, testID, in)
}

func (f *fakeArtifacts) DownloadAll(ctx context.Context, testID int64) ([]byte, error) {
	return f.downloadFn(ctx, testID)
}

func (f *fakeArtifacts) DeleteAll(ctx context.Context, testID int64) error {
	return f.deleteAllFn(ctx, testID)
}

type fakeCollect struct {
	grafanaFn func(ctx context.Context, testID int64, p *api.GrafanaCollectParams) (*api.GrafanaCollectResult, error)
	k8sFn     func(ctx context.Context, testID int64, p *api.K8sCollectParams) (*api.K8sCollectResult, error)
}

var _ api.CollectAPI = (*fakeCollect)(nil)

func (f *fakeCollect) Grafana(
	ctx context.Context,
	testID int64,
	p *api.GrafanaCollectParams,
) (*api.GrafanaCollectResult, error) {
	return f.grafanaFn(ctx, testID, p)
}

func (f *fakeCollect) Kubernetes(
	ctx context.Context,
	testID int64,
	p *api.K8sCollectParams,
) (*api.K8sCollectResult, error) {
	return f.k8sFn(ctx, testID, p)
}

type fakeReports struct {
	getFn  func(ctx context.Context, testID int64) (*api.Report, error)
	textFn func(ctx context.Context, testID int64) (string, error)
}

var _ api.ReportsAPI = (*fakeReports)(nil)

func (f *fakeReports) Get(ctx context.Context, testID int64) (*api.Report, error) {
	return f.getFn(ctx, testID)
}

func (f *fakeReports) GetText(ctx context.Context, testID int64) (string, error) {
	return f.textFn(ctx, testID)
}

func (f *fakeReports) PDFURL(testID int64) string  { return "/pdf" }
func (f *fakeReports) TextURL(testID int64) string { return "/text" }

var created = api.NewTimestamp(time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC))

func project(id int64, name string) api.Project {
	return api.Project{ID: id, Name: name, LLMType: api.DefaultLLMType, LLMModel: api.DefaultLLMModel, CreatedAt: created}
}

func test(id int64, status string) api.Test {
	return api.Test{
		ID:        id,
		ProjectID: 1,
		TestType:  api.TestTypeReliability,
		Status:    status,
		CreatedAt: created,
	}
}

func artifact(id int64, kind api.ArtifactKind) api.Artifact {
	return api.Artifact{ID: id, TestID: 5, Kind: kind, CreatedAt: created}
}

func ids[T Entity](items []T) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.Identity())
	}

	return out
}
