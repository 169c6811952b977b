package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Archiver uploads result artifacts to a bucket, optionally encrypting them
// client-side with a password.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an archiver using the default AWS credential chain.
func NewS3(ctx context.Context, bucket string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 archive bucket not configured")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Archiver{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Upload stores data at key. When password is non-empty the payload is sealed
// with AES-GCM before upload and the stored content type becomes binary.
func (a *S3Archiver) Upload(ctx context.Context, key string, data []byte, contentType, password string) error {
	encrypted := false
	if password != "" {
		var err error
		data, err = Encrypt(data, password)
		if err != nil {
			return err
		}
		contentType = "application/octet-stream"
		encrypted = true
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}

	log.Info().
		Str("bucket", a.bucket).
		Str("key", key).
		Int("size", len(data)).
		Bool("encrypted", encrypted).
		Msg("archived result to s3")
	return nil
}
