// Package storetest exercises a cache.MetadataStore implementation with a
// shared conformance suite so every backend is held to the same contract.
package storetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/sandrolain/nfhttp/cache"
)

// Store exercises a cache.MetadataStore implementation's Get/Set/Delete contract.
func Store(t *testing.T, store cache.MetadataStore) {
	t.Helper()
	ctx := context.Background()
	key := "testKey"
	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before adding it")
	}

	val := []byte("some bytes")
	if err := store.Set(ctx, key, val); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	retVal, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve an element we just added")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("retrieved a different value than what we put in")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("error deleting key: %v", err)
	}

	_, ok, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}
}

// staleCapable is implemented by backends (postgresstore, leveldbstore) that
// support marking an entry stale in place instead of deleting it. The Cache
// itself does not call these methods.
type staleCapable interface {
	MarkStale(ctx context.Context, key string) error
	IsStale(ctx context.Context, key string) (bool, error)
	GetStale(ctx context.Context, key string) ([]byte, bool, error)
}

// StoreStale exercises the optional MarkStale/IsStale/GetStale trio on
// backends that implement staleCapable; it is a no-op skip otherwise.
func StoreStale(t *testing.T, store cache.MetadataStore) {
	t.Helper()
	sc, ok := store.(staleCapable)
	if !ok {
		t.Skip("store does not implement staleCapable")
	}

	ctx := context.Background()
	key := "staleKey"
	val := []byte("stale-capable value")
	if err := store.Set(ctx, key, val); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	if stale, err := sc.IsStale(ctx, key); err != nil || stale {
		t.Fatalf("freshly set key reported stale=%v err=%v", stale, err)
	}

	if err := sc.MarkStale(ctx, key); err != nil {
		t.Fatalf("error marking stale: %v", err)
	}

	stale, err := sc.IsStale(ctx, key)
	if err != nil {
		t.Fatalf("error checking stale: %v", err)
	}
	if !stale {
		t.Fatal("key was not marked stale")
	}

	retVal, ok, err := sc.GetStale(ctx, key)
	if err != nil {
		t.Fatalf("error getting stale value: %v", err)
	}
	if !ok {
		t.Fatal("expected stale value present")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("stale value did not match what was stored")
	}

	_ = store.Delete(ctx, key)
}
