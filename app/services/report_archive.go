package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportArchive keeps a durable copy of generated reports
type ReportArchive interface {
	// Archive stores data and returns the object key
	Archive(ctx context.Context, fileName string, data []byte, at time.Time) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// S3ArchiveConfig configures the S3 compatible archive
type S3ArchiveConfig struct {
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PresignTTL time.Duration
}

// S3ReportArchive stores reports under reports/yyyy/mm/dd/
type S3ReportArchive struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

func NewS3ReportArchive(ctx context.Context, c S3ArchiveConfig) (*S3ReportArchive, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := c.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3ReportArchive{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  c.Bucket,
		ttl:     ttl,
	}, nil
}

// ArchiveKey returns the object key for a report file
func ArchiveKey(fileName string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("reports/%04d/%02d/%02d/%s", at.Year(), at.Month(), at.Day(), fileName)
}

func (a *S3ReportArchive) Archive(ctx context.Context, fileName string, data []byte, at time.Time) (string, error) {
	key := ArchiveKey(fileName, at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

func (a *S3ReportArchive) PresignedURL(ctx context.Context, key string) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
