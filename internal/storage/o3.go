// Package storage archives audit records to Akave O3 or any other
// S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/Aincrad-Flux/TWIN/internal/audit"
	"github.com/Aincrad-Flux/TWIN/internal/config"
)

// O3Client uploads audit records to a bucket of an S3-compatible API.
type O3Client struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewO3Client builds an S3-compatible client for the given O3 config.
// Returns nil if endpoint or bucket are empty.
func NewO3Client(cfg config.O3Config) (*O3Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("o3: access key and secret key are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: aws.NewCredentialsCache(creds),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return &O3Client{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist (HeadBucket fails → CreateBucket).
func (c *O3Client) EnsureBucket(ctx context.Context) error {
	if c == nil {
		return nil
	}
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	_, createErr := c.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if createErr != nil {
		var apiErr smithy.APIError
		if errors.As(createErr, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return createErr
	}
	return nil
}

// PutObject uploads data to key.
func (c *O3Client) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if c == nil {
		return fmt.Errorf("o3 client not configured")
	}
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// KeyFor maps a stored path ("2026-03-14/webhook-....json") onto its object key.
func (c *O3Client) KeyFor(storedPath string) string {
	return KeyForRecord(c.keyPrefix, storedPath)
}

// KeyForRecord joins prefix and the stored path, dropping any attempt to climb
// out of the prefix.
func KeyForRecord(prefix, storedPath string) string {
	clean := strings.TrimPrefix(path.Clean("/"+storedPath), "/")
	if prefix == "" {
		return clean
	}
	return path.Join(prefix, clean)
}

// Prefix is the key prefix every archived record lives under, with a trailing slash.
func (c *O3Client) Prefix() string {
	if c == nil || c.keyPrefix == "" {
		return ""
	}
	return c.keyPrefix + "/"
}

// Name implements audit.Sink.
func (c *O3Client) Name() string { return "o3" }

// Ship implements audit.Sink: the record is uploaded as the same pretty JSON
// that was written to disk.
func (c *O3Client) Ship(ctx context.Context, storedPath string, rec *audit.Record) error {
	data, err := audit.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := c.PutObject(ctx, c.KeyFor(storedPath), data, "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", storedPath, err)
	}
	return nil
}

// ObjectInfo describes an object in O3 (for list response).
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// maxListed caps ListObjects so a large bucket cannot produce an unbounded response.
const maxListed = 1000

// ListObjects lists up to maxListed objects under prefix, following
// continuation tokens. Returns nil, nil if client is nil.
func (c *O3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if c == nil {
		return nil, nil
	}
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	var result []ObjectInfo
	for p.HasMorePages() && len(result) < maxListed {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, o := range page.Contents {
			if len(result) == maxListed {
				break
			}
			info := ObjectInfo{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)}
			if o.LastModified != nil {
				info.LastModified = *o.LastModified
			}
			result = append(result, info)
		}
	}
	return result, nil
}
