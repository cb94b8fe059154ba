package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/peterbourgon/diskv"
)

// DiskBlobStore is the default BlobStore: response bodies as files under a
// base directory, fronted by diskv's in-memory cache of recently touched
// values.
type DiskBlobStore struct {
	d *diskv.Diskv
}

func (c *DiskBlobStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	resp, err := c.d.Read(keyToFilename(key))
	if err != nil {
		return nil, false, nil
	}
	return resp, true, nil
}

func (c *DiskBlobStore) Set(_ context.Context, key string, value []byte) error {
	if err := c.d.WriteStream(keyToFilename(key), bytes.NewReader(value), true); err != nil {
		return fmt.Errorf("diskblobstore set failed for key: %w", err)
	}
	return nil
}

func (c *DiskBlobStore) Delete(_ context.Context, key string) error {
	_ = c.d.Erase(keyToFilename(key)) //nolint:errcheck // file not found is acceptable
	return nil
}

func keyToFilename(key string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
}

// NewDiskBlobStore returns a DiskBlobStore rooted at basePath, capping its
// in-memory hot-value cache at 100MB.
func NewDiskBlobStore(basePath string) *DiskBlobStore {
	return &DiskBlobStore{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 100 * 1024 * 1024,
		}),
	}
}

// NewDiskBlobStoreWithDiskv wraps an already-configured diskv.Diskv.
func NewDiskBlobStoreWithDiskv(d *diskv.Diskv) *DiskBlobStore {
	return &DiskBlobStore{d: d}
}
