package store

import (
	"context"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/sirupsen/logrus"
)

// TestStore holds the test list, newest first, and tracks analysis runs.
type TestStore struct {
	*Resource[api.Test]

	tests api.TestsAPI
	log   logrus.FieldLogger
}

// AnalysisRun is the outcome of RunAnalysis.
type AnalysisRun struct {
	// Ack is the trigger acknowledgement.
	Ack *api.AnalysisResult
	// Test is the result of the single follow-up fetch.
	Test Read[api.Test]
}

// NewTestStore creates a test store backed by tests.
func NewTestStore(log logrus.FieldLogger, tests api.TestsAPI, opts ...Option) *TestStore {
	return &TestStore{
		Resource: NewResource[api.Test](log, Names{Singular: "test", Plural: "tests"}, Prepend, opts...),
		tests:    tests,
		log:      log.WithField("component", "test_store"),
	}
}

// FetchTests replaces the collection with the remote list.
func (s *TestStore) FetchTests(ctx context.Context, opts ...api.ListOption) Read[[]api.Test] {
	return s.FetchAll(ctx, func(ctx context.Context) ([]api.Test, error) {
		return s.tests.List(ctx, opts...)
	})
}

// FetchTest loads one test into the current slot.
func (s *TestStore) FetchTest(ctx context.Context, id int64) Read[api.Test] {
	return s.FetchOne(ctx, id, s.get(id))
}

// CreateTest creates a test and prepends it to the collection.
func (s *TestStore) CreateTest(ctx context.Context, in *api.TestCreate) (api.Test, error) {
	return s.Create(ctx, func(ctx context.Context) (api.Test, error) {
		return deref(s.tests.Create(ctx, in))
	})
}

// DeleteTest deletes a test and removes it from the collection.
func (s *TestStore) DeleteTest(ctx context.Context, id int64) error {
	return s.Delete(ctx, id, func(ctx context.Context) error {
		return s.tests.Delete(ctx, id)
	})
}

// SubmitAnalysis triggers analysis for a test. It changes no local state
// besides the error indicator.
func (s *TestStore) SubmitAnalysis(ctx context.Context, id int64) (*api.AnalysisResult, error) {
	var ack *api.AnalysisResult

	err := s.Perform(ctx, CategoryRunAnalysis, func(ctx context.Context) error {
		var err error

		ack, err = s.tests.RunAnalysis(ctx, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return ack, nil
}

// ReconcileAnalysis fetches the test once to pull its post-trigger status
// into the current slot and the collection.
func (s *TestStore) ReconcileAnalysis(ctx context.Context, id int64) Read[api.Test] {
	return s.Reconcile(ctx, id, s.get(id))
}

// RunAnalysis submits analysis and, if the trigger succeeded, reconciles
// the test exactly once regardless of the acknowledged status. It does not
// poll: a still-running job needs a later ReconcileAnalysis.
func (s *TestStore) RunAnalysis(ctx context.Context, id int64) (*AnalysisRun, error) {
	ack, err := s.SubmitAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.WithField("test_id", id).WithField("status", ack.Status).Debug("Analysis submitted")

	return &AnalysisRun{
		Ack:  ack,
		Test: s.ReconcileAnalysis(ctx, id),
	}, nil
}

func (s *TestStore) get(id int64) func(context.Context) (api.Test, error) {
	return func(ctx context.Context) (api.Test, error) {
		return deref(s.tests.Get(ctx, id))
	}
}
