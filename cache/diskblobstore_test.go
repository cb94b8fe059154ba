package cache_test

import (
	"os"
	"testing"

	"github.com/sandrolain/nfhttp/cache"
	"github.com/sandrolain/nfhttp/cache/storetest"
)

func TestDiskBlobStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "nfhttp-diskblobstore")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer func() {
		_ = os.RemoveAll(tempDir)
	}()

	storetest.Store(t, cache.NewDiskBlobStore(tempDir))
}
