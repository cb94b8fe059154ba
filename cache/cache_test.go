package cache_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/cache"
)

// fakeInner is a controllable nfhttp.Capability standing in for the
// Transport, so Cache behavior can be exercised without a real server.
type fakeInner struct {
	calls   int32
	perform func(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken
}

func (f *fakeInner) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	atomic.AddInt32(&f.calls, 1)
	return f.perform(ctx, request, callback)
}
func (f *fakeInner) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	ch := make(chan *nfhttp.Response, 1)
	f.Perform(ctx, request, func(resp *nfhttp.Response) { ch <- resp })
	return <-ch, nil
}
func (f *fakeInner) Pin(request *nfhttp.Request, label string) error      { return nil }
func (f *fakeInner) Unpin(request *nfhttp.Request, label string) error    { return nil }
func (f *fakeInner) RemovePinned(label string) error                     { return nil }
func (f *fakeInner) PinnedFor(request *nfhttp.Request) ([]string, error) { return nil, nil }
func (f *fakeInner) PinLabels() ([]string, error)                        { return nil, nil }

func newTestCache(inner nfhttp.Capability, opts ...cache.Option) *cache.Cache {
	return cache.New(inner, cache.NewMemoryStore(), cache.NewMemoryStore(), opts...)
}

func mustGetRequest(t *testing.T, url string) *nfhttp.Request {
	t.Helper()
	req, err := nfhttp.NewRequest(nfhttp.MethodGet, url, make(http.Header), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestCacheServesFreshEntryWithoutRefetch(t *testing.T) {
	inner := &fakeInner{perform: func(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
		h := make(http.Header)
		h.Set("Cache-Control", "max-age=60")
		callback(nfhttp.NewResponse(request, http.StatusOK, h, []byte("body")))
		return nfhttp.NewRequestToken()
	}}
	c := newTestCache(inner)
	req := mustGetRequest(t, "http://example.test/a")

	resp1, err := c.PerformSync(context.Background(), req)
	if err != nil {
		t.Fatalf("first PerformSync: %v", err)
	}
	if string(resp1.Body()) != "body" {
		t.Fatalf("unexpected body: %q", resp1.Body())
	}

	resp2, err := c.PerformSync(context.Background(), req)
	if err != nil {
		t.Fatalf("second PerformSync: %v", err)
	}
	if string(resp2.Body()) != "body" {
		t.Fatalf("unexpected cached body: %q", resp2.Body())
	}
	if resp2.Header().Get(cache.XFromCache) != "1" {
		t.Error("expected second response to be served from cache")
	}
	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Fatalf("expected exactly 1 inner call, got %d", got)
	}
}

func TestCacheRevalidatesStaleEntryWith304(t *testing.T) {
	var calls int32
	inner := &fakeInner{perform: func(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			h := make(http.Header)
			h.Set("Cache-Control", "max-age=0")
			h.Set("ETag", `"v1"`)
			callback(nfhttp.NewResponse(request, http.StatusOK, h, []byte("original")))
			return nfhttp.NewRequestToken()
		}
		if request.Header().Get("If-None-Match") != `"v1"` {
			t.Errorf("expected revalidation request to carry If-None-Match, got %q", request.Header().Get("If-None-Match"))
		}
		h := make(http.Header)
		h.Set("ETag", `"v1"`)
		callback(nfhttp.NewResponse(request, http.StatusNotModified, h, nil))
		return nfhttp.NewRequestToken()
	}}
	c := newTestCache(inner)
	req := mustGetRequest(t, "http://example.test/b")

	resp1, err := c.PerformSync(context.Background(), req)
	if err != nil {
		t.Fatalf("first PerformSync: %v", err)
	}
	if string(resp1.Body()) != "original" {
		t.Fatalf("unexpected body: %q", resp1.Body())
	}

	resp2, err := c.PerformSync(context.Background(), req)
	if err != nil {
		t.Fatalf("second PerformSync: %v", err)
	}
	if string(resp2.Body()) != "original" {
		t.Fatalf("expected revalidated body to be merged from the stored entry, got %q", resp2.Body())
	}
	if resp2.Header().Get(cache.XRevalidated) != "1" {
		t.Error("expected second response to be marked revalidated")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected exactly 2 inner calls, got %d", got)
	}
}

func TestCacheInvalidatesOnSuccessfulUnsafeMethod(t *testing.T) {
	var getCalls int32
	inner := &fakeInner{perform: func(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
		if request.Method() == nfhttp.MethodGet {
			atomic.AddInt32(&getCalls, 1)
			h := make(http.Header)
			h.Set("Cache-Control", "max-age=60")
			callback(nfhttp.NewResponse(request, http.StatusOK, h, []byte("body")))
			return nfhttp.NewRequestToken()
		}
		callback(nfhttp.NewResponse(request, http.StatusOK, make(http.Header), nil))
		return nfhttp.NewRequestToken()
	}}
	c := newTestCache(inner)
	getReq := mustGetRequest(t, "http://example.test/c")

	if _, err := c.PerformSync(context.Background(), getReq); err != nil {
		t.Fatalf("initial GET: %v", err)
	}

	postReq, err := nfhttp.NewRequest(nfhttp.MethodPost, "http://example.test/c", make(http.Header), nil)
	if err != nil {
		t.Fatalf("NewRequest POST: %v", err)
	}
	if _, err := c.PerformSync(context.Background(), postReq); err != nil {
		t.Fatalf("POST: %v", err)
	}

	if _, err := c.PerformSync(context.Background(), getReq); err != nil {
		t.Fatalf("GET after invalidation: %v", err)
	}
	if got := atomic.LoadInt32(&getCalls); got != 2 {
		t.Fatalf("expected the GET entry to be invalidated by the POST, got %d origin GET calls", got)
	}
}

func TestCacheOnlyIfCachedMissReturnsCancelledResponse(t *testing.T) {
	inner := &fakeInner{perform: func(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
		t.Fatal("inner should never be reached for an only-if-cached miss")
		return nil
	}}
	c := newTestCache(inner)
	req := mustGetRequest(t, "http://example.test/d")
	req = req.WithHeader("Cache-Control", "only-if-cached")

	resp, err := c.PerformSync(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error for a cancelled-response PerformSync")
	}
	if resp != nil {
		t.Fatal("expected a nil response alongside the cancellation error")
	}
}
