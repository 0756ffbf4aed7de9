package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ReceiptArchive stores raw receipt validation responses in an S3-compatible
// bucket for audit.
type ReceiptArchive struct {
	client *s3.S3
	bucket string
	folder string
}

// NewReceiptArchiveFromEnv reads S3_ENDPOINT, S3_REGION, S3_BUCKET,
// S3_ACCESS_KEY and S3_SECRET_KEY. Returns an error when the bucket is not
// configured so callers can treat archiving as optional.
func NewReceiptArchiveFromEnv() (*ReceiptArchive, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, errors.New("S3_BUCKET is not set")
	}
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cfg := &aws.Config{
		Region: aws.String(region),
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if key := os.Getenv("S3_ACCESS_KEY"); key != "" {
		cfg.Credentials = credentials.NewStaticCredentials(key, os.Getenv("S3_SECRET_KEY"), "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return &ReceiptArchive{
		client: s3.New(sess),
		bucket: bucket,
		folder: "receipts",
	}, nil
}

// ArchiveReceipt uploads one validation response and returns its object key.
func (a *ReceiptArchive) ArchiveReceipt(data []byte, name string) (string, error) {
	key := fmt.Sprintf("%s/%s", a.folder, name)

	_, err := a.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
		ACL:           aws.String("private"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload receipt to S3: %v", err)
	}
	return key, nil
}
