package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// ProjectsAPI is the remote project resource.
type ProjectsAPI interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id int64) (*Project, error)
	Create(ctx context.Context, in *ProjectCreate) (*Project, error)
	Update(ctx context.Context, id int64, in *ProjectUpdate) (*Project, error)
	Delete(ctx context.Context, id int64) error
}

type projectsClient struct {
	r transport.Requester
}

// Ensure interface compliance.
var _ ProjectsAPI = (*projectsClient)(nil)

func projectPath(id int64) string {
	return fmt.Sprintf("/api/projects/%d", id)
}

func (c *projectsClient) List(ctx context.Context) ([]Project, error) {
	var out []Project

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "list projects",
		Method:    http.MethodGet,
		Path:      "/api/projects/",
	}, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *projectsClient) Get(ctx context.Context, id int64) (*Project, error) {
	var out Project

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "get project",
		Method:    http.MethodGet,
		Path:      projectPath(id),
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *projectsClient) Create(ctx context.Context, in *ProjectCreate) (*Project, error) {
	var out Project

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "create project",
		Method:    http.MethodPost,
		Path:      "/api/projects/",
		JSON:      in,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *projectsClient) Update(ctx context.Context, id int64, in *ProjectUpdate) (*Project, error) {
	var out Project

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "update project",
		Method:    http.MethodPatch,
		Path:      projectPath(id),
		JSON:      in,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *projectsClient) Delete(ctx context.Context, id int64) error {
	return doJSON(ctx, c.r, &transport.Request{
		Operation: "delete project",
		Method:    http.MethodDelete,
		Path:      projectPath(id),
	}, nil)
}
