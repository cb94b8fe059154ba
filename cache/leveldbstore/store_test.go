package leveldbstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sandrolain/nfhttp/cache/storetest"
)

func TestLevelDBStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "nfhttp-leveldbstore")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer func() {
		_ = os.RemoveAll(tempDir)
	}()

	store, err := New(filepath.Join(tempDir, "db"))
	if err != nil {
		t.Fatalf("New leveldb: %v", err)
	}

	storetest.Store(t, store)
}

func TestLevelDBStoreStale(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "nfhttp-leveldbstore")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer func() {
		_ = os.RemoveAll(tempDir)
	}()

	store, err := New(filepath.Join(tempDir, "db"))
	if err != nil {
		t.Fatalf("New leveldb: %v", err)
	}

	storetest.StoreStale(t, store)
}
