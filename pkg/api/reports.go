package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// ReportsAPI is the remote report resource, addressed by test id.
type ReportsAPI interface {
	Get(ctx context.Context, testID int64) (*Report, error)
	GetText(ctx context.Context, testID int64) (string, error)
	PDFURL(testID int64) string
	TextURL(testID int64) string
}

type reportsClient struct {
	r       transport.Requester
	baseURL string
}

// Ensure interface compliance.
var _ ReportsAPI = (*reportsClient)(nil)

func reportPath(testID int64) string {
	return fmt.Sprintf("/api/reports/test/%d", testID)
}

func (c *reportsClient) Get(ctx context.Context, testID int64) (*Report, error) {
	var out Report

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "get report",
		Method:    http.MethodGet,
		Path:      reportPath(testID),
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *reportsClient) GetText(ctx context.Context, testID int64) (string, error) {
	resp, err := c.r.Do(ctx, &transport.Request{
		Operation:    "get report text",
		Method:       http.MethodGet,
		Path:         reportPath(testID) + "/text",
		ResponseType: transport.ResponseText,
	})
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

// PDFURL returns the address of the generated PDF without fetching it.
func (c *reportsClient) PDFURL(testID int64) string {
	return c.baseURL + reportPath(testID) + "/pdf"
}

// TextURL returns the address of the plain-text report without fetching it.
func (c *reportsClient) TextURL(testID int64) string {
	return c.baseURL + reportPath(testID) + "/text"
}
