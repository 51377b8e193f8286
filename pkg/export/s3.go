package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/sirupsen/logrus"
)

const archiveContentType = "application/zip"

// s3Exporter implements Exporter for S3-compatible storage.
type s3Exporter struct {
	log    logrus.FieldLogger
	cfg    *config.S3ExportConfig
	client *s3.Client
	now    func() time.Time
}

// Ensure interface compliance.
var _ Exporter = (*s3Exporter)(nil)

// NewS3Exporter creates an exporter from the given configuration.
func NewS3Exporter(
	log logrus.FieldLogger,
	cfg *config.S3ExportConfig,
) (Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	return &s3Exporter{
		log:    log.WithField("component", "s3-exporter"),
		cfg:    cfg,
		client: newS3Client(cfg),
		now:    time.Now,
	}, nil
}

func newS3Client(cfg *config.S3ExportConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Preflight verifies S3 connectivity by writing a small test object.
func (e *s3Exporter) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("ntview write test: %s", e.now().UTC().Format(time.RFC3339))

	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Bucket),
		Key:         aws.String(e.prefix() + "/.ntview-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", e.cfg.Bucket, err)
	}

	return nil
}

// Export uploads archive under <prefix>/test-<id>/<timestamp>.zip.
func (e *s3Exporter) Export(ctx context.Context, testID int64, archive io.ReadSeeker) (string, error) {
	key := e.archiveKey(testID, e.now())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Bucket),
		Key:         aws.String(key),
		Body:        archive,
		ContentType: aws.String(archiveContentType),
	}

	if e.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(e.cfg.StorageClass)
	}

	e.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": e.cfg.Bucket,
	}).Debug("Exporting archive")

	if _, err := e.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("PutObject %s: %w", key, err)
	}

	e.log.WithFields(logrus.Fields{
		"test_id": testID,
		"bucket":  e.cfg.Bucket,
		"key":     key,
	}).Info("Archive exported")

	return key, nil
}

// List returns the archives exported for testID, newest first.
func (e *s3Exporter) List(ctx context.Context, testID int64) ([]Object, error) {
	prefix := e.testPrefix(testID) + "/"

	var (
		objects []Object
		token   *string
	)

	for {
		out, err := e.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(e.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", e.cfg.Bucket, prefix, err)
		}

		for _, obj := range out.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}

		token = out.NextContinuationToken
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key > objects[j].Key
	})

	return objects, nil
}

func (e *s3Exporter) prefix() string {
	prefix := e.cfg.Prefix
	if prefix == "" {
		prefix = config.DefaultExportPrefix
	}

	return strings.TrimRight(prefix, "/")
}

func (e *s3Exporter) testPrefix(testID int64) string {
	return fmt.Sprintf("%s/test-%d", e.prefix(), testID)
}

// archiveKey builds a sortable key for an archive exported at t.
func (e *s3Exporter) archiveKey(testID int64, t time.Time) string {
	return fmt.Sprintf("%s/%s.zip", e.testPrefix(testID), t.UTC().Format("20060102T150405Z"))
}
