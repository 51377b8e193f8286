package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var testsCmd = &cobra.Command{
	Use:     "tests",
	Aliases: []string{"test"},
	Short:   "Manage load tests and run their analysis",
}

var listProjectID int64

var testsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tests, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		var opts []api.ListOption
		if cmd.Flags().Changed("project-id") {
			opts = append(opts, api.WithProjectID(listProjectID))
		}

		tests, err := result(s.stores.Tests.FetchTests(cmd.Context(), opts...))
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), tests, testTable(tests...))
	},
}

var testsGetCmd = &cobra.Command{
	Use:   "get <test-id>",
	Short: "Show a test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		tst, err := result(s.stores.Tests.FetchTest(cmd.Context(), id))
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), tst, testTable(tst))
	},
}

var createTest struct {
	projectID int64
	testType  string
	startedAt string
	endedAt   string
	prompt    string
}

var testsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a load test",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := &api.TestCreate{
			ProjectID: createTest.projectID,
			TestType:  api.TestType(createTest.testType),
		}

		now := time.Now()

		if createTest.startedAt != "" {
			t, err := parseTime(createTest.startedAt, now)
			if err != nil {
				return err
			}

			ts := api.NewTimestamp(t)
			in.StartedAt = &ts
		}

		if createTest.endedAt != "" {
			t, err := parseTime(createTest.endedAt, now)
			if err != nil {
				return err
			}

			ts := api.NewTimestamp(t)
			in.EndedAt = &ts
		}

		if createTest.prompt != "" {
			in.SystemPrompt = &createTest.prompt
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		tst, err := s.stores.Tests.CreateTest(cmd.Context(), in)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), tst, testTable(tst))
	},
}

var testsDeleteCmd = &cobra.Command{
	Use:   "delete <test-id>",
	Short: "Delete a test with its artifacts and report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		if err := s.stores.Tests.DeleteTest(cmd.Context(), id); err != nil {
			return err
		}

		log.WithField("test_id", id).Info("Test deleted")

		return nil
	},
}

var testsRunAnalysisCmd = &cobra.Command{
	Use:   "run-analysis <test-id>",
	Short: "Trigger the analysis of a test and show its refreshed state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		run, err := s.stores.Tests.RunAnalysis(cmd.Context(), id)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"test_id":   id,
			"report_id": run.Ack.ReportID,
			"status":    run.Ack.Status,
		}).Info("Analysis triggered")

		tst, err := result(run.Test)
		if err != nil {
			return fmt.Errorf("analysis submitted but refreshing the test failed: %w", err)
		}

		out := analysisOutput{Analysis: run.Ack, Test: tst}

		return render(cmd.OutOrStdout(), out, testTable(tst))
	},
}

type analysisOutput struct {
	Analysis *api.AnalysisResult `json:"analysis" yaml:"analysis"`
	Test     api.Test            `json:"test" yaml:"test"`
}

func testTypeNames() string {
	names := make([]string, 0, len(api.TestTypes()))
	for _, t := range api.TestTypes() {
		names = append(names, string(t))
	}

	return strings.Join(names, ", ")
}

func init() {
	testsListCmd.Flags().Int64Var(&listProjectID, "project-id", 0, "only list tests of this project")

	testsCreateCmd.Flags().Int64Var(&createTest.projectID, "project-id", 0, "owning project")
	testsCreateCmd.Flags().StringVar(&createTest.testType, "type", string(api.TestTypeMaxSearch),
		"test type ("+testTypeNames()+")")
	testsCreateCmd.Flags().StringVar(&createTest.startedAt, "started-at", "", "start time (RFC3339 or relative, e.g. -2h)")
	testsCreateCmd.Flags().StringVar(&createTest.endedAt, "ended-at", "", "end time (RFC3339 or relative)")
	testsCreateCmd.Flags().StringVar(&createTest.prompt, "prompt", "", "system prompt for the analysis")
	_ = testsCreateCmd.MarkFlagRequired("project-id")

	testsCmd.AddCommand(
		testsListCmd,
		testsGetCmd,
		testsCreateCmd,
		testsDeleteCmd,
		testsRunAnalysisCmd,
	)
	rootCmd.AddCommand(testsCmd)
}
