package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportText bool

var reportsCmd = &cobra.Command{
	Use:     "reports",
	Aliases: []string{"report"},
	Short:   "Read analysis reports",
}

var reportsGetCmd = &cobra.Command{
	Use:   "get <test-id>",
	Short: "Show the report of a test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testID, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		if reportText {
			text, err := result(s.stores.Reports.FetchReportText(cmd.Context(), testID))
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), text)

			return err
		}

		r, err := result(s.stores.Reports.FetchReport(cmd.Context(), testID))
		if err != nil {
			return err
		}

		if outputFormat != outputTable {
			return render(cmd.OutOrStdout(), r, nil)
		}

		if err := render(cmd.OutOrStdout(), r, reportTable(r)); err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "\n%s", r.ReportText)

		return err
	},
}

var reportsURLCmd = &cobra.Command{
	Use:   "url <test-id>",
	Short: "Print the download links of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testID, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		links := map[string]string{
			"pdf":  s.stores.Reports.PDFURL(testID),
			"text": s.client.Reports().TextURL(testID),
		}

		return render(cmd.OutOrStdout(), links, keyValueTable(
			[2]any{"PDF", links["pdf"]},
			[2]any{"Text", links["text"]},
		))
	},
}

func init() {
	reportsGetCmd.Flags().BoolVar(&reportText, "text", false, "print only the plain-text report")

	reportsCmd.AddCommand(reportsGetCmd, reportsURLCmd)
	rootCmd.AddCommand(reportsCmd)
}
