package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethpandaops/ntview/pkg/transport"
)

// ArtifactsAPI is the remote artifact resource, always scoped to a test.
type ArtifactsAPI interface {
	List(ctx context.Context, testID int64) ([]Artifact, error)
	Upload(ctx context.Context, testID int64, in *Upload) (*Artifact, error)
	// DownloadAll returns a zip archive of every artifact file of the test.
	DownloadAll(ctx context.Context, testID int64) ([]byte, error)
	DeleteAll(ctx context.Context, testID int64) error
}

type artifactsClient struct {
	r transport.Requester
}

// Ensure interface compliance.
var _ ArtifactsAPI = (*artifactsClient)(nil)

func (c *artifactsClient) List(ctx context.Context, testID int64) ([]Artifact, error) {
	var out []Artifact

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "list artifacts",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/api/artifacts/test/%d", testID),
	}, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *artifactsClient) Upload(ctx context.Context, testID int64, in *Upload) (*Artifact, error) {
	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.FileName
	}

	var out Artifact

	err := doJSON(ctx, c.r, &transport.Request{
		Operation: "upload artifact",
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/api/artifacts/test/%d/upload", testID),
		Multipart: &transport.Multipart{
			Fields: map[string]string{
				"kind":         string(in.Kind),
				"display_name": displayName,
			},
			FileField: "file",
			FileName:  in.FileName,
			File:      in.Content,
		},
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *artifactsClient) DownloadAll(ctx context.Context, testID int64) ([]byte, error) {
	resp, err := c.r.Do(ctx, &transport.Request{
		Operation:    "download artifacts",
		Method:       http.MethodGet,
		Path:         fmt.Sprintf("/api/artifacts/download-all/%d", testID),
		ResponseType: transport.ResponseBlob,
	})
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

func (c *artifactsClient) DeleteAll(ctx context.Context, testID int64) error {
	return doJSON(ctx, c.r, &transport.Request{
		Operation: "delete artifacts",
		Method:    http.MethodDelete,
		Path:      fmt.Sprintf("/api/artifacts/test/%d/artifacts", testID),
	}, nil)
}
