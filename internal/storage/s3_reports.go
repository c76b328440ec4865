package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"greendrake/dunning/internal/config"
)

// IReportStore archives run summaries.
type IReportStore interface {
	PutRunReport(ctx context.Context, runID string, startedAt time.Time, report []byte) (string, error)
}

// ObjectPutter is the slice of the S3 API the report store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3ReportStore implements IReportStore.
type s3ReportStore struct {
	bucket string
	client ObjectPutter
}

// NewS3ReportStore creates a report store from the AWS settings in cfg.
// It returns nil, nil when REPORTS_S3_BUCKET is not set.
func NewS3ReportStore(cfg *config.Config) (IReportStore, error) {
	if cfg.ReportsS3Bucket == "" {
		return nil, nil
	}
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewReportStore(cfg.ReportsS3Bucket, s3.NewFromConfig(awsCfg)), nil
}

// NewReportStore wraps an existing S3 client.
func NewReportStore(bucket string, client ObjectPutter) IReportStore {
	return &s3ReportStore{bucket: bucket, client: client}
}

// ReportKey is the object key for a run: reports/dunning/{YYYY-MM-DD}/{runID}.json.
func ReportKey(runID string, startedAt time.Time) string {
	return fmt.Sprintf("reports/dunning/%s/%s.json", startedAt.Format("2006-01-02"), runID)
}

func (s *s3ReportStore) PutRunReport(ctx context.Context, runID string, startedAt time.Time, report []byte) (string, error) {
	key := ReportKey(runID, startedAt)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(report),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload run report %s: %w", key, err)
	}
	return key, nil
}
