package store

import (
	"context"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Stores bundles one store per entity family over a shared client.
type Stores struct {
	Projects  *ProjectStore
	Tests     *TestStore
	Artifacts *ArtifactStore
	Reports   *ReportStore

	log logrus.FieldLogger
}

// New creates every store on top of client.
func New(log logrus.FieldLogger, client *api.Client, opts ...Option) *Stores {
	log = log.WithField("component", "stores")

	return &Stores{
		Projects:  NewProjectStore(log, client.Projects(), opts...),
		Tests:     NewTestStore(log, client.Tests(), opts...),
		Artifacts: NewArtifactStore(log, client.Artifacts(), client.Collect(), opts...),
		Reports:   NewReportStore(log, client.Reports(), opts...),
		log:       log,
	}
}

// LoadTestDetail refreshes a test, its artifacts and its report
// concurrently. Each store records its own failure; the returned error
// combines them. A missing report is not a failure.
func (s *Stores) LoadTestDetail(ctx context.Context, testID int64) error {
	var g multierror.Group

	g.Go(func() error {
		return asError(s.Tests.FetchTest(ctx, testID).Failure)
	})

	g.Go(func() error {
		return asError(s.Artifacts.FetchArtifacts(ctx, testID).Failure)
	})

	g.Go(func() error {
		f := s.Reports.FetchReport(ctx, testID).Failure
		if f != nil && f.Op == CategoryNotFound {
			return nil
		}

		return asError(f)
	})

	if err := g.Wait().ErrorOrNil(); err != nil {
		s.log.WithField("test_id", testID).WithError(err).Debug("Test detail partially loaded")

		return err
	}

	return nil
}

// asError returns f as an error, or nil when f is nil.
func asError(f *Failure) error {
	if f == nil {
		return nil
	}

	return f
}
