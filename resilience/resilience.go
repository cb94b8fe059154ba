// Package resilience layers an optional retry policy and circuit breaker
// around an nfhttp.Capability, strictly outside whatever mandatory retry
// behavior that capability already implements (e.g. the Transport's single
// silent retry on a reused-connection EOF). Disabled by default: a
// Resilience with no policies configured is a transparent pass-through.
package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/sandrolain/nfhttp"
)

// Config holds the resilience policies applied around a Perform call. Both
// are nil (disabled) by default.
type Config struct {
	// RetryPolicy configures retry behavior using failsafe-go. If nil,
	// retry is disabled.
	RetryPolicy retrypolicy.RetryPolicy[*nfhttp.Response]

	// CircuitBreaker configures circuit breaker behavior using failsafe-go.
	// If nil, circuit breaking is disabled.
	CircuitBreaker circuitbreaker.CircuitBreaker[*nfhttp.Response]
}

// RetryPolicyBuilder returns a pre-configured retry policy builder: retry on
// errors or 5xx status codes, up to 3 retries, exponential backoff from
// 100ms to 10s. Callers can further customize the builder before Build().
func RetryPolicyBuilder() retrypolicy.Builder[*nfhttp.Response] {
	return retrypolicy.NewBuilder[*nfhttp.Response]().
		HandleIf(func(r *nfhttp.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode() >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker builder:
// opens on errors or 5xx status codes, 5 consecutive failures to open, 2
// consecutive successes to close, 60s half-open delay.
func CircuitBreakerBuilder() circuitbreaker.Builder[*nfhttp.Response] {
	return circuitbreaker.NewBuilder[*nfhttp.Response]().
		HandleIf(func(r *nfhttp.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode() >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// Resilience implements nfhttp.Capability by wrapping inner with the
// configured retry/circuit-breaker policies.
type Resilience struct {
	inner  nfhttp.Capability
	config Config
	logger *slog.Logger
}

// Option configures a Resilience.
type Option func(*Resilience)

// WithLogger sets the logger used to report execution failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resilience) { r.logger = logger }
}

// New wraps inner with the policies in config.
func New(inner nfhttp.Capability, config Config, opts ...Option) *Resilience {
	r := &Resilience{inner: inner, config: config}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// policies returns the configured policies in innermost-to-outermost order:
// retry first (so the circuit breaker counts whole retry sequences, not
// individual attempts), then the circuit breaker.
func (r *Resilience) policies() []failsafe.Policy[*nfhttp.Response] {
	var policies []failsafe.Policy[*nfhttp.Response]
	if r.config.RetryPolicy != nil {
		policies = append(policies, r.config.RetryPolicy)
	}
	if r.config.CircuitBreaker != nil {
		policies = append(policies, r.config.CircuitBreaker)
	}
	return policies
}

// execute runs fn directly if no policy is configured, or through the
// failsafe-go executor otherwise.
func (r *Resilience) execute(fn func() (*nfhttp.Response, error)) (*nfhttp.Response, error) {
	policies := r.policies()
	if len(policies) == 0 {
		return fn()
	}
	return failsafe.With(policies...).Get(fn)
}

// Perform implements nfhttp.Capability. It dispatches on a goroutine since
// failsafe-go's executor blocks for the duration of any configured retries,
// and Perform must return its token immediately.
func (r *Resilience) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	outer := nfhttp.NewRequestToken()
	childCtx, cancel := context.WithCancel(ctx)
	outer.OnCancel(cancel)

	go func() {
		defer cancel()
		resp, err := r.execute(func() (*nfhttp.Response, error) {
			return r.inner.PerformSync(childCtx, request)
		})
		if err != nil {
			r.logger.Warn("resilient perform failed", "url", request.URL().String(), "error", err)
			callback(r.errorResponse(request, err))
			return
		}
		callback(resp)
	}()

	return outer
}

// errorResponse synthesizes a Response carrying err's description in its
// metadata, for the case where every retry (and any circuit-breaker open
// rejection) exhausts without ever producing an inner Response.
func (r *Resilience) errorResponse(request *nfhttp.Request, err error) *nfhttp.Response {
	resp := nfhttp.NewResponse(request, nfhttp.StatusInvalid, nil, nil)
	resp.SetMetadata("error", err.Error())
	return resp
}

// PerformSync implements nfhttp.Capability.
func (r *Resilience) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	return r.execute(func() (*nfhttp.Response, error) {
		return r.inner.PerformSync(ctx, request)
	})
}

// Pin forwards to inner.
func (r *Resilience) Pin(request *nfhttp.Request, label string) error { return r.inner.Pin(request, label) }

// Unpin forwards to inner.
func (r *Resilience) Unpin(request *nfhttp.Request, label string) error {
	return r.inner.Unpin(request, label)
}

// RemovePinned forwards to inner.
func (r *Resilience) RemovePinned(label string) error { return r.inner.RemovePinned(label) }

// PinnedFor forwards to inner.
func (r *Resilience) PinnedFor(request *nfhttp.Request) ([]string, error) { return r.inner.PinnedFor(request) }

// PinLabels forwards to inner.
func (r *Resilience) PinLabels() ([]string, error) { return r.inner.PinLabels() }

var _ nfhttp.Capability = (*Resilience)(nil)
