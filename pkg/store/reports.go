package store

import (
	"context"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/sirupsen/logrus"
)

// ReportStore holds the report of the test being viewed in its current
// slot. Reports are read-only and addressed by test id.
type ReportStore struct {
	*Resource[api.Report]

	reports api.ReportsAPI
}

// NewReportStore creates a report store.
func NewReportStore(log logrus.FieldLogger, reports api.ReportsAPI, opts ...Option) *ReportStore {
	return &ReportStore{
		Resource: NewResource[api.Report](log, Names{Singular: "report", Plural: "reports"}, Append, opts...),
		reports:  reports,
	}
}

// FetchReport loads the report of testID into the current slot.
func (s *ReportStore) FetchReport(ctx context.Context, testID int64) Read[api.Report] {
	return s.FetchOne(ctx, testID, func(ctx context.Context) (api.Report, error) {
		return deref(s.reports.Get(ctx, testID))
	})
}

// FetchReportText loads the plain-text rendering of the report of testID.
func (s *ReportStore) FetchReportText(ctx context.Context, testID int64) Read[string] {
	return Fetch(ctx, s.Resource, CategoryLoad, func(ctx context.Context) (string, error) {
		return s.reports.GetText(ctx, testID)
	})
}

// PDFURL returns the address of the PDF rendering of the report of testID.
func (s *ReportStore) PDFURL(testID int64) string {
	return s.reports.PDFURL(testID)
}
