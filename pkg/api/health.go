package api

import (
	"context"
	"net/http"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// HealthAPI reports service liveness.
type HealthAPI interface {
	Check(ctx context.Context) (*Health, error)
}

type healthClient struct {
	r transport.Requester
}

// Ensure interface compliance.
var _ HealthAPI = (*healthClient)(nil)

func (c *healthClient) Check(ctx context.Context) (*Health, error) {
	var out Health

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "health check",
		Method:    http.MethodGet,
		Path:      "/health",
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}
