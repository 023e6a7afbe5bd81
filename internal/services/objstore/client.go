// Package objstore stages audio files in S3-compatible object storage so the
// recognition API can fetch them by URL.
package objstore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"callscribe/internal/config"
)

// Client wraps a bucket-scoped object storage connection.
type Client struct {
	api      *minio.Client
	endpoint string
	bucket   string
}

// New builds a client for the configured bucket.
func New(cfg config.Storage) (*Client, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: true,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore new: %w", err)
	}
	return &Client{api: api, endpoint: cfg.Endpoint, bucket: cfg.Bucket}, nil
}

// Upload stores a local file under objectName and returns its public URL.
func (c *Client) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	_, err := c.api.FPutObject(ctx, c.bucket, objectName, localPath, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("objstore upload %s: %w", objectName, err)
	}
	return c.ObjectURL(objectName), nil
}

// Delete removes a single object. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, objectName string) error {
	if err := c.api.RemoveObject(ctx, c.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("objstore delete %s: %w", objectName, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix. The first failure aborts
// the sweep so the caller can retry later.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	objects := c.api.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			return removed, fmt.Errorf("objstore list %s: %w", prefix, object.Err)
		}
		if err := c.api.RemoveObject(ctx, c.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("objstore delete %s: %w", object.Key, err)
		}
		removed++
	}
	return removed, nil
}

// ObjectURL returns the public HTTPS URL for an object in the bucket.
func (c *Client) ObjectURL(objectName string) string {
	u := url.URL{Scheme: "https", Host: c.endpoint, Path: "/" + c.bucket + "/" + objectName}
	return u.String()
}
