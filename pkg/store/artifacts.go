package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/sirupsen/logrus"
)

// ArtifactStore holds the artifacts of one test. Collection jobs are
// submitted here and observed by refetching the list.
type ArtifactStore struct {
	*Resource[api.Artifact]

	artifacts api.ArtifactsAPI
	collect   api.CollectAPI

	// testID is the test whose artifacts the collection holds, 0 before
	// the first fetch or upload.
	testID atomic.Int64
}

// NewArtifactStore creates an artifact store.
func NewArtifactStore(
	log logrus.FieldLogger,
	artifacts api.ArtifactsAPI,
	collect api.CollectAPI,
	opts ...Option,
) *ArtifactStore {
	return &ArtifactStore{
		Resource:  NewResource[api.Artifact](log, Names{Singular: "artifact", Plural: "artifacts"}, Append, opts...),
		artifacts: artifacts,
		collect:   collect,
	}
}

// FetchArtifacts replaces the collection with the artifacts of testID.
func (s *ArtifactStore) FetchArtifacts(ctx context.Context, testID int64) Read[[]api.Artifact] {
	s.testID.Store(testID)

	return s.FetchAll(ctx, func(ctx context.Context) ([]api.Artifact, error) {
		return s.artifacts.List(ctx, testID)
	})
}

// TestID returns the test the collection holds artifacts of.
func (s *ArtifactStore) TestID() int64 {
	return s.testID.Load()
}

// UploadArtifact uploads a file. The new artifact is appended only when
// it belongs to the test the collection holds.
func (s *ArtifactStore) UploadArtifact(ctx context.Context, testID int64, in *api.Upload) (api.Artifact, error) {
	s.testID.CompareAndSwap(0, testID)

	if s.testID.Load() == testID {
		return s.Add(ctx, CategoryUpload, func(ctx context.Context) (api.Artifact, error) {
			return deref(s.artifacts.Upload(ctx, testID, in))
		})
	}

	var a api.Artifact

	err := s.Perform(ctx, CategoryUpload, func(ctx context.Context) error {
		var err error

		a, err = deref(s.artifacts.Upload(ctx, testID, in))

		return err
	})

	return a, err
}

// DeleteAllArtifacts deletes every artifact of testID and drops them from
// the collection. Entries of other tests are kept.
func (s *ArtifactStore) DeleteAllArtifacts(ctx context.Context, testID int64) error {
	return s.DeleteWhere(ctx, func(ctx context.Context) error {
		return s.artifacts.DeleteAll(ctx, testID)
	}, func(a api.Artifact) bool {
		return a.TestID == testID
	})
}

// DownloadAll writes the zip archive of every artifact of testID to w and
// returns the number of bytes written.
func (s *ArtifactStore) DownloadAll(ctx context.Context, testID int64, w io.Writer) (int64, error) {
	var n int64

	err := s.Perform(ctx, CategoryDownload, func(ctx context.Context) error {
		data, err := s.artifacts.DownloadAll(ctx, testID)
		if err != nil {
			return err
		}

		n, err = io.Copy(w, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}

		return nil
	})

	return n, err
}

// CollectGrafana submits a Grafana collection job and then refetches the
// artifacts of testID. The refetch is skipped when the submit fails.
func (s *ArtifactStore) CollectGrafana(
	ctx context.Context,
	testID int64,
	p *api.GrafanaCollectParams,
) (*api.GrafanaCollectResult, error) {
	var res *api.GrafanaCollectResult

	err := s.Perform(ctx, CategoryCollect, func(ctx context.Context) error {
		var err error

		res, err = s.collect.Grafana(ctx, testID, p)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.FetchArtifacts(ctx, testID)

	return res, nil
}

// CollectKubernetes submits a Kubernetes collection job and then refetches
// the artifacts of testID. The refetch is skipped when the submit fails.
func (s *ArtifactStore) CollectKubernetes(
	ctx context.Context,
	testID int64,
	p *api.K8sCollectParams,
) (*api.K8sCollectResult, error) {
	var res *api.K8sCollectResult

	err := s.Perform(ctx, CategoryCollect, func(ctx context.Context) error {
		var err error

		res, err = s.collect.Kubernetes(ctx, testID, p)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.FetchArtifacts(ctx, testID)

	return res, nil
}
