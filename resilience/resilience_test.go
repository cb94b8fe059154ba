package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/resilience"
)

// fakeInner is a minimal nfhttp.Capability whose PerformSync behavior is
// controlled per test, for exercising the retry/circuit-breaker wiring
// without a real Transport.
type fakeInner struct {
	performSync func(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error)
}

func (f *fakeInner) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	resp, _ := f.performSync(ctx, request)
	callback(resp)
	return nfhttp.NewRequestToken()
}

func (f *fakeInner) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	return f.performSync(ctx, request)
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

func TestRetryPolicyBuilderRetriesOnError(t *testing.T) {
	policy := resilience.RetryPolicyBuilder().
		WithBackoff(time.Millisecond, 10*time.Millisecond).
		Build()

	attempts := 0
	fn := func() (*nfhttp.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		return nfhttp.NewResponse(nil, http.StatusOK, make(http.Header), nil), nil
	}

	resp, err := failsafe.With(policy).Get(fn)
	if err != nil {
		t.Fatalf("expected no error after retries, got %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode())
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestCircuitBreakerBuilderOpensOnFailures(t *testing.T) {
	cb := resilience.CircuitBreakerBuilder().
		WithFailureThreshold(2).
		WithDelay(time.Hour).
		Build()

	if !cb.IsClosed() {
		t.Fatal("expected circuit closed initially")
	}

	cb.RecordError(errors.New("boom"))
	cb.RecordError(errors.New("boom"))

	if !cb.IsOpen() {
		t.Fatal("expected circuit open after reaching failure threshold")
	}
}

func TestResiliencePerformRetriesThroughCapability(t *testing.T) {
	var attempts int32
	inner := &fakeInner{performSync: func(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, errors.New("transient")
		}
		return nfhttp.NewResponse(request, http.StatusOK, make(http.Header), nil), nil
	}}

	retryPolicy := resilience.RetryPolicyBuilder().
		WithBackoff(time.Millisecond, 10*time.Millisecond).
		Build()

	r := resilience.New(inner, resilience.Config{RetryPolicy: retryPolicy})

	resp, err := r.PerformSync(context.Background(), mustRequest(t))
	if err != nil {
		t.Fatalf("PerformSync: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode())
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestResilienceNoPoliciesPassesThrough(t *testing.T) {
	var called bool
	inner := &fakeInner{performSync: func(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
		called = true
		return nfhttp.NewResponse(request, http.StatusOK, make(http.Header), nil), nil
	}}

	r := resilience.New(inner, resilience.Config{})
	done := make(chan *nfhttp.Response, 1)
	r.Perform(context.Background(), mustRequest(t), func(resp *nfhttp.Response) { done <- resp })

	resp := <-done
	if !called {
		t.Fatal("expected inner to be called")
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode())
	}
}
