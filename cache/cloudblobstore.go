// CloudBlobStore implementation using Go Cloud Development Kit (CDK) blob
// storage for cloud-agnostic response body storage.
//
// Supports any gocloud.dev blob driver:
//   - Amazon S3 (gocloud.dev/blob/s3blob)
//   - Google Cloud Storage (gocloud.dev/blob/gcsblob)
//   - Azure Blob Storage (gocloud.dev/blob/azureblob)
//   - In-memory (gocloud.dev/blob/memblob)
//   - Local filesystem (gocloud.dev/blob/fileblob)
//
// Example usage with S3:
//
//	import (
//	    "context"
//	    _ "gocloud.dev/blob/s3blob"
//	    "github.com/sandrolain/nfhttp/cache"
//	)
//
//	ctx := context.Background()
//	store, err := cache.NewCloudBlobStore(ctx, cache.CloudBlobStoreConfig{
//	    BucketURL: "s3://my-bucket?region=us-west-2",
//	    KeyPrefix: "nfhttp/",
//	})
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// CloudBlobStoreConfig holds the configuration for CloudBlobStore.
type CloudBlobStoreConfig struct {
	// BucketURL is the Go Cloud blob URL (e.g., "s3://bucket?region=us-west-2").
	BucketURL string

	// KeyPrefix is prepended to all blob keys (default: "blob/").
	KeyPrefix string

	// Timeout bounds each blob operation (default: 30s).
	Timeout time.Duration

	// Bucket is an optional pre-opened bucket; if set, BucketURL is ignored.
	Bucket *blob.Bucket
}

// DefaultCloudBlobStoreConfig returns a CloudBlobStoreConfig with default values.
func DefaultCloudBlobStoreConfig() CloudBlobStoreConfig {
	return CloudBlobStoreConfig{
		KeyPrefix: "blob/",
		Timeout:   30 * time.Second,
	}
}

// CloudBlobStore implements BlobStore using Go Cloud blob storage.
type CloudBlobStore struct {
	bucket     *blob.Bucket
	keyPrefix  string
	timeout    time.Duration
	ownsBucket bool
}

// NewCloudBlobStore opens the bucket named by config.BucketURL and returns a
// CloudBlobStore backed by it. Call Close when done.
func NewCloudBlobStore(ctx context.Context, config CloudBlobStoreConfig) (*CloudBlobStore, error) {
	if config.BucketURL == "" && config.Bucket == nil {
		return nil, fmt.Errorf("cloudblobstore: either BucketURL or Bucket must be provided")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultCloudBlobStoreConfig().KeyPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultCloudBlobStoreConfig().Timeout
	}

	var bucket *blob.Bucket
	var ownsBucket bool
	var err error

	if config.Bucket != nil {
		bucket = config.Bucket
		ownsBucket = false
	} else {
		bucket, err = blob.OpenBucket(ctx, config.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("cloudblobstore: failed to open bucket: %w", err)
		}
		ownsBucket = true
	}

	return &CloudBlobStore{
		bucket:     bucket,
		keyPrefix:  config.KeyPrefix,
		timeout:    config.Timeout,
		ownsBucket: ownsBucket,
	}, nil
}

// NewCloudBlobStoreWithBucket wraps an already-opened bucket. The caller
// remains responsible for closing it.
func NewCloudBlobStoreWithBucket(bucket *blob.Bucket, keyPrefix string, timeout time.Duration) *CloudBlobStore {
	if keyPrefix == "" {
		keyPrefix = DefaultCloudBlobStoreConfig().KeyPrefix
	}
	if timeout == 0 {
		timeout = DefaultCloudBlobStoreConfig().Timeout
	}

	return &CloudBlobStore{
		bucket:    bucket,
		keyPrefix: keyPrefix,
		timeout:   timeout,
	}
}

// blobKey hashes key to avoid issues with special characters in cloud
// storage key namespaces.
func (c *CloudBlobStore) blobKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

func (c *CloudBlobStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *CloudBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reader, err := c.bucket.NewReader(ctx, c.blobKey(key), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cloudblobstore get failed for key %q: %w", key, err)
	}
	defer reader.Close() //nolint:errcheck // best effort cleanup

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("cloudblobstore read failed for key %q: %w", key, err)
	}

	return data, true, nil
}

func (c *CloudBlobStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	writer, err := c.bucket.NewWriter(ctx, c.blobKey(key), nil)
	if err != nil {
		return fmt.Errorf("cloudblobstore set failed to create writer for key %q: %w", key, err)
	}

	_, writeErr := writer.Write(value)
	closeErr := writer.Close()

	if writeErr != nil {
		return fmt.Errorf("cloudblobstore set failed to write for key %q: %w", key, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("cloudblobstore set failed to close writer for key %q: %w", key, closeErr)
	}
	return nil
}

func (c *CloudBlobStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.bucket.Delete(ctx, c.blobKey(key))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("cloudblobstore delete failed for key %q: %w", key, err)
	}
	return nil
}

// Close closes the bucket if it was opened by NewCloudBlobStore. A bucket
// supplied via NewCloudBlobStoreWithBucket is left open for the caller.
func (c *CloudBlobStore) Close() error {
	if c.ownsBucket {
		if err := c.bucket.Close(); err != nil {
			return fmt.Errorf("cloudblobstore: failed to close bucket: %w", err)
		}
	}
	return nil
}
