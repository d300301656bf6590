package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oks-citadel/apply-sla/config"
	"github.com/oks-citadel/apply-sla/model"
)

// ReportArchive stores violation analysis reports in object storage so
// support staff and the dashboard can pull the full detection snapshot
// after the fact.
type ReportArchive struct {
	client *minio.Client
	bucket string
	config *config.ReportsConfig
}

func NewReportArchive(cfg *config.ReportsConfig) (*ReportArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ReportArchive{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the report bucket if it doesn't exist
func (a *ReportArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// violationReport is the archived document: the violation plus the contract
// state it was detected against.
type violationReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Violation   *model.SLAViolation `json:"violation"`
	Contract    *model.SLAContract  `json:"contract"`
	Severity    string              `json:"severity"`
	RootCauses  []string            `json:"root_causes"`
}

// UploadViolationReport marshals and stores the analysis report, returning
// the object name.
func (a *ReportArchive) UploadViolationReport(ctx context.Context, v *model.SLAViolation, c *model.SLAContract) (string, error) {
	report := violationReport{
		GeneratedAt: time.Now(),
		Violation:   v,
		Contract:    c,
		Severity:    v.Severity(),
		RootCauses:  v.RootCauses.Tags(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	objectName := fmt.Sprintf("violations/%s/%s.json", v.DetectedAt.Format("2006-01-02"), v.ID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return objectName, nil
}

// PresignedReportURL generates a presigned URL for a stored report with the
// configured expiry.
func (a *ReportArchive) PresignedReportURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(a.config.ExpireDays) * 24 * time.Hour
	url, err := a.client.PresignedGetObject(ctx, a.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}
