package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// ListOption adds a filter to a list request.
type ListOption func(url.Values)

// WithProjectID restricts a test listing to one project.
func WithProjectID(id int64) ListOption {
	return func(v url.Values) {
		v.Set("project_id", strconv.FormatInt(id, 10))
	}
}

// TestsAPI is the remote test resource.
type TestsAPI interface {
	List(ctx context.Context, opts ...ListOption) ([]Test, error)
	Get(ctx context.Context, id int64) (*Test, error)
	Create(ctx context.Context, in *TestCreate) (*Test, error)
	Delete(ctx context.Context, id int64) error
	// RunAnalysis triggers report generation for the test. The reply is
	// an acknowledgement; the test itself must be refetched to observe
	// its new status.
	RunAnalysis(ctx context.Context, id int64) (*AnalysisResult, error)
}

type testsClient struct {
	r transport.Requester
}

// Ensure interface compliance.
var _ TestsAPI = (*testsClient)(nil)

func testPath(id int64) string {
	return fmt.Sprintf("/api/tests/%d", id)
}

func (c *testsClient) List(ctx context.Context, opts ...ListOption) ([]Test, error) {
	var query url.Values

	if len(opts) > 0 {
		query = url.Values{}
		for _, opt := range opts {
			opt(query)
		}
	}

	var out []Test

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "list tests",
		Method:    http.MethodGet,
		Path:      "/api/tests/",
		Query:     query,
	}, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *testsClient) Get(ctx context.Context, id int64) (*Test, error) {
	var out Test

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "get test",
		Method:    http.MethodGet,
		Path:      testPath(id),
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *testsClient) Create(ctx context.Context, in *TestCreate) (*Test, error) {
	var out Test

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "create test",
		Method:    http.MethodPost,
		Path:      "/api/tests/",
		JSON:      in,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *testsClient) Delete(ctx context.Context, id int64) error {
	return doJSON(ctx, c.r, &transport.Request{
		Operation: "delete test",
		Method:    http.MethodDelete,
		Path:      testPath(id),
	}, nil)
}

func (c *testsClient) RunAnalysis(ctx context.Context, id int64) (*AnalysisResult, error) {
	var out AnalysisResult

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "run analysis",
		Method:    http.MethodPost,
		Path:      testPath(id) + "/run-analysis",
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}
