package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// CollectAPI triggers collection jobs. A job has no client-visible entity:
// its effect is observed by listing the test's artifacts afterwards.
type CollectAPI interface {
	Grafana(ctx context.Context, testID int64, p *GrafanaCollectParams) (*GrafanaCollectResult, error)
	Kubernetes(ctx context.Context, testID int64, p *K8sCollectParams) (*K8sCollectResult, error)
}

type collectClient struct {
	r transport.Requester
}

// Ensure interface compliance.
var _ CollectAPI = (*collectClient)(nil)

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (c *collectClient) Grafana(
	ctx context.Context,
	testID int64,
	p *GrafanaCollectParams,
) (*GrafanaCollectResult, error) {
	query := url.Values{}
	query.Set("from_ts", formatTS(p.From))
	query.Set("to_ts", formatTS(p.To))
	query.Set("dashboard_uid", p.DashboardUID)
	query.Set("grafana_source_index", strconv.Itoa(p.SourceIndex))

	var out GrafanaCollectResult

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "collect grafana",
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/api/collect/test/%d/grafana", testID),
		Query:     query,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *collectClient) Kubernetes(
	ctx context.Context,
	testID int64,
	p *K8sCollectParams,
) (*K8sCollectResult, error) {
	query := url.Values{}
	query.Set("from_ts", formatTS(p.From))
	query.Set("to_ts", formatTS(p.To))

	if p.Namespace != "" {
		query.Set("namespace", p.Namespace)
	}

	var out K8sCollectResult

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "collect kubernetes",
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/api/collect/test/%d/kubernetes", testID),
		Query:     query,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}
