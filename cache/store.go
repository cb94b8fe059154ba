// Package cache implements the persistent, RFC-9111-flavored caching layer
// of the pipeline: freshness evaluation, conditional revalidation, Vary
// handling, pinning, and pluggable metadata/blob storage backends.
package cache

import "context"

// MetadataStore persists the small, frequently-read cache metadata record
// for a fingerprint: serialized headers, status line, and bookkeeping
// fields. The body itself lives in a BlobStore. Implementations live under
// cache/leveldbstore (the default, embedded) and cache/backend/*.
type MetadataStore interface {
	// Get returns the stored bytes for key. ok is false if key is absent;
	// err is non-nil only for a genuine backend failure.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value against key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// BlobStore persists response bodies, keyed by the same fingerprint used
// for the MetadataStore record. Kept separate from MetadataStore so a large
// body can live in cheaper, higher-latency storage (disk, S3) while small
// metadata stays in a fast KV store.
type BlobStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
