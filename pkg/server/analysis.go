package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/server/db"
	"github.com/sirupsen/logrus"
)

const analysisTimeLayout = "2006-01-02 15:04:05"

// runAnalysis summarizes the artifacts of a test into its report and marks
// the test completed. A failure after the test was found marks it failed.
func (s *server) runAnalysis(ctx context.Context, testID int64) (*api.AnalysisResult, error) {
	t, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetTestStatus(ctx, testID, api.TestStatusAnalyzing, nil); err != nil {
		return nil, err
	}

	result, err := s.buildReport(ctx, t)
	if err != nil {
		msg := err.Error()
		if serr := s.store.SetTestStatus(ctx, testID, api.TestStatusFailed, &msg); serr != nil {
			s.log.WithError(serr).Warn("Failed to mark analysis as failed")
		}

		return nil, err
	}

	if err := s.store.SetTestStatus(ctx, testID, api.TestStatusCompleted, nil); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"test_id":   testID,
		"report_id": result.ReportID,
		"artifacts": len(result.ArtifactsUsed),
	}).Info("Analysis finished")

	return result, nil
}

func (s *server) buildReport(ctx context.Context, t *db.Test) (*api.AnalysisResult, error) {
	arts, err := s.store.ListArtifacts(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	projectName := "unknown"
	if p, err := s.store.GetProject(ctx, t.ProjectID); err == nil {
		projectName = p.Name
	}

	refs := convertAll(arts, toArtifactRef)

	report := &db.Report{
		TestID:                t.ID,
		ReportText:            reportText(t, projectName, refs),
		ArtifactsUsedSnapshot: refs,
	}

	if err := s.store.SaveReport(ctx, report); err != nil {
		return nil, err
	}

	return &api.AnalysisResult{
		Status:        "done",
		ReportID:      report.ID,
		ArtifactsUsed: refs,
	}, nil
}

// reportText renders a plain-text summary. The output depends only on its
// inputs so repeated runs produce the same report.
func reportText(t *db.Test, projectName string, refs []api.ArtifactRef) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analysis report for test #%d\n", t.ID)
	fmt.Fprintf(&b, "Project: %s\n", projectName)
	fmt.Fprintf(&b, "Test type: %s\n", api.TestType(t.TestType).Label())
	fmt.Fprintf(&b, "Time range: %s\n", timeRange(t))

	if t.SystemPrompt != nil && *t.SystemPrompt != "" {
		fmt.Fprintf(&b, "Focus: %s\n", *t.SystemPrompt)
	}

	fmt.Fprintf(&b, "\nArtifacts used (%d):\n", len(refs))

	if len(refs) == 0 {
		b.WriteString("- none\n")
	}

	for _, ref := range refs {
		name := string(ref.Kind)
		if ref.DisplayName != nil && *ref.DisplayName != "" {
			name = *ref.DisplayName
		}

		fmt.Fprintf(&b, "- [%s] %s\n", ref.Kind.Label(), name)
	}

	return b.String()
}

func timeRange(t *db.Test) string {
	if t.StartedAt == nil && t.EndedAt == nil {
		return "not specified"
	}

	return formatTime(t.StartedAt) + " - " + formatTime(t.EndedAt)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "?"
	}

	return t.UTC().Format(analysisTimeLayout)
}
