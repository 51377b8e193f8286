// Package api maps each remote operation of the NT view service onto
// exactly one transport call. Clients hold no state and return transport
// failures unchanged.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL sets the base used by URL builders such as
// ReportsAPI.PDFURL. Requests are unaffected.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// Client bundles the resource clients of every entity family.
type Client struct {
	baseURL string

	projects  ProjectsAPI
	tests     TestsAPI
	artifacts ArtifactsAPI
	reports   ReportsAPI
	collect   CollectAPI
	health    HealthAPI
}

// New creates a Client on top of r.
func New(r transport.Requester, opts ...Option) *Client {
	c := &Client{}

	for _, opt := range opts {
		opt(c)
	}

	c.projects = &projectsClient{r: r}
	c.tests = &testsClient{r: r}
	c.artifacts = &artifactsClient{r: r}
	c.reports = &reportsClient{r: r, baseURL: c.baseURL}
	c.collect = &collectClient{r: r}
	c.health = &healthClient{r: r}

	return c
}

// Projects returns the project client.
func (c *Client) Projects() ProjectsAPI { return c.projects }

// Tests returns the test client.
func (c *Client) Tests() TestsAPI { return c.tests }

// Artifacts returns the artifact client.
func (c *Client) Artifacts() ArtifactsAPI { return c.artifacts }

// Reports returns the report client.
func (c *Client) Reports() ReportsAPI { return c.reports }

// Collect returns the collection-job client.
func (c *Client) Collect() CollectAPI { return c.collect }

// Health returns the health client.
func (c *Client) Health() HealthAPI { return c.health }

// doJSON issues req and decodes the JSON reply into dst when dst is set.
func doJSON(ctx context.Context, r transport.Requester, req *transport.Request, dst any) error {
	resp, err := r.Do(ctx, req)
	if err != nil {
		return err
	}

	if dst == nil {
		return nil
	}

	if err := resp.Decode(dst); err != nil {
		return fmt.Errorf("%s: %w", req.Operation, err)
	}

	return nil
}
