package storetest_test

import (
	"testing"

	"github.com/sandrolain/nfhttp/cache"
	"github.com/sandrolain/nfhttp/cache/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Store(t, cache.NewMemoryStore())
}
