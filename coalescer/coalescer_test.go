package coalescer_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/coalescer"
)

// fakeInner is a minimal nfhttp.Capability that counts Perform calls and
// lets the test control when each one completes.
type fakeInner struct {
	mu        sync.Mutex
	callCount int32
	release   chan struct{}
	lastToken *nfhttp.RequestToken
}

func newFakeInner() *fakeInner {
	return &fakeInner{release: make(chan struct{})}
}

func (f *fakeInner) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	atomic.AddInt32(&f.callCount, 1)
	token := nfhttp.NewRequestToken()
	f.mu.Lock()
	f.lastToken = token
	f.mu.Unlock()
	go func() {
		<-f.release
		callback(nfhttp.NewResponse(request, http.StatusOK, make(http.Header), []byte("ok")))
	}()
	return token
}

func (f *fakeInner) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	return nil, nil
}
func (f *fakeInner) Pin(request *nfhttp.Request, label string) error      { return nil }
func (f *fakeInner) Unpin(request *nfhttp.Request, label string) error    { return nil }
func (f *fakeInner) RemovePinned(label string) error                     { return nil }
func (f *fakeInner) PinnedFor(request *nfhttp.Request) ([]string, error) { return nil, nil }
func (f *fakeInner) PinLabels() ([]string, error)                        { return nil, nil }

func mustRequest(t *testing.T) *nfhttp.Request {
	t.Helper()
	req, err := nfhttp.NewRequest(nfhttp.MethodGet, "http://example.test/resource", make(http.Header), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestCoalescerMergesConcurrentRequests(t *testing.T) {
	inner := newFakeInner()
	c := coalescer.New(inner, nil)

	var wg sync.WaitGroup
	results := make([]*nfhttp.Response, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			c.Perform(context.Background(), mustRequest(t), func(resp *nfhttp.Response) {
				results[i] = resp
				wg.Done()
			})
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if got := atomic.LoadInt32(&inner.callCount); got != 1 {
		t.Fatalf("expected exactly one inner call, got %d", got)
	}
	for i, resp := range results {
		if resp == nil {
			t.Fatalf("waiter %d never received a response", i)
		}
		if v, _ := resp.Metadata("multicasted"); v != "1" {
			t.Errorf("waiter %d: expected multicasted=1, got %q", i, v)
		}
	}
}

func TestCoalescerSingleWaiterNotMulticasted(t *testing.T) {
	inner := newFakeInner()
	c := coalescer.New(inner, nil)

	var resp *nfhttp.Response
	done := make(chan struct{})
	c.Perform(context.Background(), mustRequest(t), func(r *nfhttp.Response) {
		resp = r
		close(done)
	})

	close(inner.release)
	<-done

	if v, ok := resp.Metadata("multicasted"); ok {
		t.Errorf("expected no multicasted metadata for a single waiter, got %q", v)
	}
}

func TestCoalescerCancelLastWaiterCancelsInner(t *testing.T) {
	inner := newFakeInner()
	c := coalescer.New(inner, nil)

	var got *nfhttp.Response
	token := c.Perform(context.Background(), mustRequest(t), func(resp *nfhttp.Response) {
		got = resp
	})

	token.Cancel()
	if !token.Cancelled() {
		t.Fatal("expected token to report cancelled")
	}
	if got == nil || !got.Cancelled() {
		t.Fatal("expected the cancelled waiter to receive a synthetic cancelled response")
	}
	inner.mu.Lock()
	innerToken := inner.lastToken
	inner.mu.Unlock()
	if innerToken == nil || !innerToken.Cancelled() {
		t.Error("expected cancelling the last waiter to cancel the inner call")
	}
	close(inner.release)
}
