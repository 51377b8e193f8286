package main

import (
	"encoding/json"
	"io"

	"github.com/docker/go-units"
	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"

	timeLayout = "2006-01-02 15:04:05"
)

// render writes v in the selected output format. fill populates the table
// for the table format.
func render(w io.Writer, v any, fill func(table.Writer)) error {
	switch outputFormat {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		defer func() { _ = enc.Close() }()

		return enc.Encode(v)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		fill(t)
		t.Render()

		return nil
	}
}

func projectTable(projects ...api.Project) func(table.Writer) {
	return func(t table.Writer) {
		t.AppendHeader(table.Row{"ID", "Name", "LLM", "Grafana", "K8s", "Created"})
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})

		for _, p := range projects {
			t.AppendRow(table.Row{
				p.ID,
				p.Name,
				p.LLMType + "/" + p.LLMModel,
				len(p.GrafanaSources),
				yesNo(p.K8sConfig != nil),
				formatTimestamp(&p.CreatedAt),
			})
		}
	}
}

func testTable(tests ...api.Test) func(table.Writer) {
	return func(t table.Writer) {
		t.AppendHeader(table.Row{"ID", "Project", "Type", "Status", "Started", "Ended"})
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})

		for _, tst := range tests {
			t.AppendRow(table.Row{
				tst.ID,
				tst.ProjectID,
				tst.TestType.Label(),
				tst.Status,
				formatTimestamp(tst.StartedAt),
				formatTimestamp(tst.EndedAt),
			})
		}
	}
}

func artifactTable(arts ...api.Artifact) func(table.Writer) {
	return func(t table.Writer) {
		t.AppendHeader(table.Row{"ID", "Kind", "Name", "Size", "Created"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
		})

		for _, a := range arts {
			size := "-"

			var meta api.UploadMetadata
			if err := a.DecodeMetadata(&meta); err == nil && meta.Size > 0 {
				size = units.HumanSize(float64(meta.Size))
			}

			t.AppendRow(table.Row{a.ID, a.Kind.Label(), a.Name(), size, formatTimestamp(&a.CreatedAt)})
		}
	}
}

func reportTable(r api.Report) func(table.Writer) {
	return func(t table.Writer) {
		t.AppendHeader(table.Row{"Report", "Test", "Artifacts", "Created"})
		t.AppendRow(table.Row{r.ID, r.TestID, len(r.ArtifactsUsedSnapshot), formatTimestamp(&r.CreatedAt)})
	}
}

func keyValueTable(rows ...[2]any) func(table.Writer) {
	return func(t table.Writer) {
		for _, r := range rows {
			t.AppendRow(table.Row{r[0], r[1]})
		}
	}
}

func formatTimestamp(ts *api.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}

	return ts.UTC().Format(timeLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}
