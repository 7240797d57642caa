package delivery

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

const defaultS3Region = "us-east-1"

// s3Backend stores screenshots as <bucket>/<title>/<file> in any
// S3-compatible object store.
type s3Backend struct {
	noAuthorize

	bucket string
	client *s3.Client
	titles TitleResolver
}

func newS3(cfg config.S3Config, deps Deps) (*s3Backend, error) {
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: endpoint and bucket are required")
	}

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		HTTPClient:   deps.httpClient(),
		// Most self-hosted S3 implementations reject the default
		// flexible-checksum trailers.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &s3Backend{bucket: cfg.Bucket, client: client, titles: deps.Titles}, nil
}

func (*s3Backend) Name() string { return "S3" }

func (b *s3Backend) Deliver(ctx context.Context, s screenshot.Screenshot) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("s3: open screenshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("s3: stat screenshot: %w", err)
	}

	key := s.RemoteName(b.titles.Resolve(ctx, s.AppID))
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}
