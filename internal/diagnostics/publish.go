package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"

	"github.com/imamik/harvester-e2e/internal/config"
	"github.com/imamik/harvester-e2e/internal/metrics"
	"github.com/imamik/harvester-e2e/internal/platform/s3"
)

// File names inside the run directory.
const (
	ReportFile  = "report.yaml"
	MetricsFile = "metrics.prom"
)

// Uploader stores artifacts remotely.
type Uploader interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// NewUploader returns an S3 uploader for the configured artifact store, or
// nil when no bucket is configured.
func NewUploader(ctx context.Context, opts *config.Options) (Uploader, error) {
	if opts.ArtifactBucket == "" {
		return nil, nil
	}
	c, err := s3.NewClient(ctx, s3.Config{
		Endpoint:  opts.ArtifactEndpoint,
		Region:    opts.ArtifactRegion,
		AccessKey: opts.ArtifactAccessKey,
		SecretKey: opts.ArtifactSecretKey,
		PathStyle: opts.ArtifactEndpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact uploader: %w", err)
	}
	return c, nil
}

// Target describes where Publish puts artifacts.
type Target struct {
	Dir      string // Local artifact directory; a run subdirectory is created
	Bucket   string
	Uploader Uploader // May be nil
	// MetricsTextfile is an extra path for the node-exporter textfile
	// collector.
	MetricsTextfile string
}

// TargetFromOptions builds a Target from the suite options.
func TargetFromOptions(opts *config.Options, up Uploader) Target {
	return Target{
		Dir:             opts.ArtifactDir,
		Bucket:          opts.ArtifactBucket,
		Uploader:        up,
		MetricsTextfile: opts.MetricsTextfile,
	}
}

// Publish writes the report and metrics of a run. Local files are written
// first so that an upload failure still leaves them behind. It returns the
// run directory.
func Publish(ctx context.Context, log logr.Logger, rep Report, t Target) (string, error) {
	if rep.RunID == "" {
		return "", fmt.Errorf("report has no run id")
	}

	data, err := yaml.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	dir := filepath.Join(t.Dir, rep.RunID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	reportPath := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(reportPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	metricsPath := filepath.Join(dir, MetricsFile)
	if err := metrics.WriteTextfile(metricsPath); err != nil {
		return "", err
	}
	if t.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(t.MetricsTextfile); err != nil {
			return "", err
		}
	}
	log.Info("Wrote artifacts", "dir", dir, "failures", len(rep.Failures))

	if t.Uploader == nil || t.Bucket == "" {
		return dir, nil
	}

	if err := t.Uploader.EnsureBucket(ctx, t.Bucket); err != nil {
		return dir, err
	}
	uploads := []struct {
		file, contentType string
	}{
		{ReportFile, "application/yaml"},
		{MetricsFile, "text/plain; version=0.0.4"},
	}
	for _, u := range uploads {
		// #nosec G304
		body, err := os.ReadFile(filepath.Join(dir, u.file))
		if err != nil {
			return dir, fmt.Errorf("read %s: %w", u.file, err)
		}
		key := path.Join(rep.RunID, u.file)
		if err := t.Uploader.PutObject(ctx, t.Bucket, key, u.contentType, body); err != nil {
			return dir, err
		}
		log.Info("Uploaded artifact", "bucket", t.Bucket, "key", key)
	}
	return dir, nil
}
