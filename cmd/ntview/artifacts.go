package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/export"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var artifactsCmd = &cobra.Command{
	Use:     "artifacts",
	Aliases: []string{"artifact"},
	Short:   "Manage test artifacts",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list <test-id>",
	Short: "List artifacts of a test",
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

		arts, err := result(s.stores.Artifacts.FetchArtifacts(cmd.Context(), testID))
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), arts, artifactTable(arts...))
	},
}

var upload struct {
	kind string
	name string
}

var artifactsUploadCmd = &cobra.Command{
	Use:   "upload <test-id> <file>",
	Short: "Upload a custom artifact file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		testID, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		kind := api.ArtifactKind(upload.kind)
		if !kind.IsCustom() {
			return fmt.Errorf("artifact kind %q cannot be uploaded, use a custom_* kind", kind)
		}

		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[1], err)
		}

		defer func() { _ = f.Close() }()

		s, err := newSession()
		if err != nil {
			return err
		}

		a, err := s.stores.Artifacts.UploadArtifact(cmd.Context(), testID, &api.Upload{
			Kind:        kind,
			DisplayName: upload.name,
			FileName:    filepath.Base(args[1]),
			Content:     f,
		})
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), a, artifactTable(a))
	},
}

var download struct {
	out    string
	export bool
}

var artifactsDownloadCmd = &cobra.Command{
	Use:   "download <test-id>",
	Short: "Download all artifacts of a test as a zip archive",
	Long: `Download all artifacts of a test as a zip archive. With --export the
archive is also stored in the configured S3 bucket.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testID, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		var (
			exporter export.Exporter
			buf      bytes.Buffer
		)

		if download.export {
			exporter, err = newExporter(s)
			if err != nil {
				return err
			}
		}

		// The S3 preflight runs alongside the download; either failure
		// cancels the other.
		g, gctx := errgroup.WithContext(cmd.Context())

		if exporter != nil {
			g.Go(func() error {
				if err := exporter.Preflight(gctx); err != nil {
					return fmt.Errorf("s3 preflight: %w", err)
				}

				return nil
			})
		}

		g.Go(func() error {
			_, err := s.stores.Artifacts.DownloadAll(gctx, testID, &buf)

			return err
		})

		if err := g.Wait(); err != nil {
			return err
		}

		out := download.out
		if out == "" {
			out = fmt.Sprintf("test_%d_artifacts.zip", testID)
		}

		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil { //nolint:gosec // user chosen path
			return fmt.Errorf("writing %s: %w", out, err)
		}

		log.WithFields(logrus.Fields{
			"file": out,
			"size": units.HumanSize(float64(buf.Len())),
		}).Info("Archive downloaded")

		if exporter == nil {
			return nil
		}

		key, err := exporter.Export(cmd.Context(), testID, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return fmt.Errorf("exporting archive: %w", err)
		}

		log.WithFields(logrus.Fields{
			"bucket": s.cfg.Export.S3.Bucket,
			"key":    key,
		}).Info("Archive exported")

		return nil
	},
}

var artifactsExportsCmd = &cobra.Command{
	Use:   "exports <test-id>",
	Short: "List archives of a test exported to S3",
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

		exporter, err := newExporter(s)
		if err != nil {
			return err
		}

		objects, err := exporter.List(cmd.Context(), testID)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), objects, func(t table.Writer) {
			t.AppendHeader(table.Row{"Key", "Size", "Last modified"})

			for _, o := range objects {
				t.AppendRow(table.Row{o.Key, units.HumanSize(float64(o.Size)), o.LastModified.UTC().Format(timeLayout)})
			}
		})
	},
}

func newExporter(s *session) (export.Exporter, error) {
	if !s.cfg.Export.S3.Enabled {
		return nil, fmt.Errorf("S3 export is not configured or not enabled in config")
	}

	exporter, err := export.NewS3Exporter(log, &s.cfg.Export.S3)
	if err != nil {
		return nil, fmt.Errorf("creating S3 exporter: %w", err)
	}

	return exporter, nil
}

var artifactsDeleteAllCmd = &cobra.Command{
	Use:   "delete-all <test-id>",
	Short: "Delete every artifact of a test",
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

		if err := s.stores.Artifacts.DeleteAllArtifacts(cmd.Context(), testID); err != nil {
			return err
		}

		log.WithField("test_id", testID).Info("Artifacts deleted")

		return nil
	},
}

// timeWindow is the --from/--to pair of the collect commands.
type timeWindow struct {
	from string
	to   string
}

func (w *timeWindow) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.from, "from", "-1h", "window start (RFC3339 or relative, e.g. -2h)")
	cmd.Flags().StringVar(&w.to, "to", "0s", "window end (RFC3339 or relative)")
}

func (w *timeWindow) parse() (time.Time, time.Time, error) {
	now := time.Now()

	from, err := parseTime(w.from, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to, err := parseTime(w.to, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", w.to, w.from)
	}

	return from, to, nil
}

var artifactsCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect artifacts from the project's data sources",
}

var collectGrafana struct {
	window      timeWindow
	dashboard   string
	sourceIndex int
}

var collectGrafanaCmd = &cobra.Command{
	Use:   "grafana <test-id>",
	Short: "Slice a Grafana dashboard for the test window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testID, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		from, to, err := collectGrafana.window.parse()
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		res, err := s.stores.Artifacts.CollectGrafana(cmd.Context(), testID, &api.GrafanaCollectParams{
			From:         from,
			To:           to,
			DashboardUID: collectGrafana.dashboard,
			SourceIndex:  collectGrafana.sourceIndex,
		})
		if err != nil {
			return err
		}

		log.WithField("collected", res.Collected).Info("Grafana panels collected")

		arts := s.stores.Artifacts.Items()

		return render(cmd.OutOrStdout(), res, artifactTable(arts...))
	},
}

var collectK8s struct {
	window    timeWindow
	namespace string
}

var collectK8sCmd = &cobra.Command{
	Use:     "kubernetes <test-id>",
	Aliases: []string{"k8s"},
	Short:   "Save pod listings and logs for the test window",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testID, err := parseID(args[0], "test")
		if err != nil {
			return err
		}

		from, to, err := collectK8s.window.parse()
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		res, err := s.stores.Artifacts.CollectKubernetes(cmd.Context(), testID, &api.K8sCollectParams{
			From:      from,
			To:        to,
			Namespace: collectK8s.namespace,
		})
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"pods_file":  res.PodsFile,
			"logs_count": res.LogsCount,
		}).Info("Kubernetes data collected")

		arts := s.stores.Artifacts.Items()

		return render(cmd.OutOrStdout(), res, artifactTable(arts...))
	},
}

func init() {
	artifactsUploadCmd.Flags().StringVar(&upload.kind, "kind", string(api.ArtifactCustomOther), "artifact kind (custom_*)")
	artifactsUploadCmd.Flags().StringVar(&upload.name, "name", "", "display name (defaults to the file name)")

	artifactsDownloadCmd.Flags().StringVar(&download.out, "out", "", "output file (default test_<id>_artifacts.zip)")
	artifactsDownloadCmd.Flags().BoolVar(&download.export, "export", false, "also export the archive to S3")

	collectGrafana.window.register(collectGrafanaCmd)
	collectGrafanaCmd.Flags().StringVar(&collectGrafana.dashboard, "dashboard", "", "Grafana dashboard UID")
	collectGrafanaCmd.Flags().IntVar(&collectGrafana.sourceIndex, "source-index", 0, "index into the project's Grafana sources")
	_ = collectGrafanaCmd.MarkFlagRequired("dashboard")

	collectK8s.window.register(collectK8sCmd)
	collectK8sCmd.Flags().StringVar(&collectK8s.namespace, "namespace", "", "limit to a namespace")

	artifactsCollectCmd.AddCommand(collectGrafanaCmd, collectK8sCmd)

	artifactsCmd.AddCommand(
		artifactsListCmd,
		artifactsUploadCmd,
		artifactsDownloadCmd,
		artifactsExportsCmd,
		artifactsDeleteAllCmd,
		artifactsCollectCmd,
	)
	rootCmd.AddCommand(artifactsCmd)
}
