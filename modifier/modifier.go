// Package modifier wraps an nfhttp.Capability with user-supplied hooks that
// rewrite the outbound request before it is sent and rewrite or retry the
// inbound response after it arrives.
package modifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sandrolain/nfhttp"
)

// RequestModifierFunc transforms req and must eventually call done with the
// request to actually send. done must be called at most once.
type RequestModifierFunc func(done func(*nfhttp.Request), req *nfhttp.Request)

// ResponseModifierFunc transforms resp and must eventually call done with
// the response to deliver (or keep). If retry is true, the Modifier reruns
// perform with newResp.Request() under the same outer token. done must be
// called at most once.
type ResponseModifierFunc func(done func(newResp *nfhttp.Response, retry bool), resp *nfhttp.Response)

// passthroughRequest is the default RequestModifierFunc: forward req
// unchanged.
func passthroughRequest(done func(*nfhttp.Request), req *nfhttp.Request) { done(req) }

// passthroughResponse is the default ResponseModifierFunc: deliver resp
// unchanged, no retry.
func passthroughResponse(done func(*nfhttp.Response, bool), resp *nfhttp.Response) { done(resp, false) }

// Modifier implements nfhttp.Capability by wrapping inner with a request
// modifier and a response modifier.
type Modifier struct {
	inner            nfhttp.Capability
	requestModifier  RequestModifierFunc
	responseModifier ResponseModifierFunc
	logger           *slog.Logger
}

// Option configures a Modifier.
type Option func(*Modifier)

// WithRequestModifier sets the request modifier hook.
func WithRequestModifier(fn RequestModifierFunc) Option {
	return func(m *Modifier) { m.requestModifier = fn }
}

// WithResponseModifier sets the response modifier hook.
func WithResponseModifier(fn ResponseModifierFunc) Option {
	return func(m *Modifier) { m.responseModifier = fn }
}

// WithLogger sets the logger used to report a dropped modifier callback.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Modifier) { m.logger = logger }
}

// New wraps inner, applying opts. A Modifier with no modifier hooks set is a
// transparent pass-through.
func New(inner nfhttp.Capability, opts ...Option) *Modifier {
	m := &Modifier{
		inner:            inner,
		requestModifier:  passthroughRequest,
		responseModifier: passthroughResponse,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// callState tracks which inner token is currently active for one outer
// Perform call, across any number of response-modifier-triggered retries,
// so an external cancel on the outer token always reaches the right place.
type callState struct {
	mu      sync.Mutex
	current *nfhttp.RequestToken
}

func (s *callState) setCurrent(token *nfhttp.RequestToken) {
	s.mu.Lock()
	s.current = token
	s.mu.Unlock()
}

func (s *callState) cancelCurrent() {
	s.mu.Lock()
	token := s.current
	s.mu.Unlock()
	if token != nil {
		token.Cancel()
	}
}

// Perform implements nfhttp.Capability.
func (m *Modifier) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	outer := nfhttp.NewRequestToken()
	state := &callState{}
	outer.OnCancel(state.cancelCurrent)

	m.attempt(ctx, request, outer, state, callback)
	return outer
}

// attempt runs the request modifier, dispatches through inner, and wires
// the response modifier's retry path back into another attempt.
func (m *Modifier) attempt(ctx context.Context, request *nfhttp.Request, outer *nfhttp.RequestToken, state *callState, callback nfhttp.PerformCallback) {
	if outer.Cancelled() {
		callback(nfhttp.NewCancelledResponse(request))
		return
	}

	var invoked bool
	m.requestModifier(func(modified *nfhttp.Request) {
		if invoked {
			m.logger.Warn("request modifier called done more than once")
			return
		}
		invoked = true

		innerToken := m.inner.Perform(ctx, modified, func(resp *nfhttp.Response) {
			m.handleResponse(ctx, outer, state, callback, resp)
		})
		state.setCurrent(innerToken)
		if outer.Cancelled() {
			innerToken.Cancel()
		}
	}, request)

	if !invoked {
		m.dropRequest(request, callback)
	}
}

// handleResponse runs the response modifier and either delivers the result
// or, on retry, starts another attempt under the same outer token.
func (m *Modifier) handleResponse(ctx context.Context, outer *nfhttp.RequestToken, state *callState, callback nfhttp.PerformCallback, resp *nfhttp.Response) {
	var invoked bool
	m.responseModifier(func(newResp *nfhttp.Response, retry bool) {
		if invoked {
			m.logger.Warn("response modifier called done more than once")
			return
		}
		invoked = true

		if retry {
			m.attempt(ctx, newResp.Request(), outer, state, callback)
			return
		}
		callback(newResp)
	}, resp)

	if !invoked {
		m.dropRequest(resp.Request(), callback)
	}
}

// dropRequest reports a modifier that returned without invoking its done
// callback. There is no inner Response to deliver, so the caller receives a
// synthetic one carrying the error in its metadata, mirroring how a
// cancelled-before-dispatch request is reported.
func (m *Modifier) dropRequest(request *nfhttp.Request, callback nfhttp.PerformCallback) {
	err := nfhttp.NewError("Modifier.Perform", nfhttp.ErrModifierDroppedRequest, nil)
	m.logger.Error("modifier dropped request without calling done", "error", err)

	resp := nfhttp.NewResponse(request, nfhttp.StatusInvalid, nil, nil)
	resp.SetMetadata("error", err.Error())
	callback(resp)
}

// PerformSync implements nfhttp.Capability.
func (m *Modifier) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	done := make(chan *nfhttp.Response, 1)
	token := m.Perform(ctx, request, func(resp *nfhttp.Response) { done <- resp })

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		token.Cancel()
		return nil, nfhttp.NewError("PerformSync", nfhttp.ErrCanceled, ctx.Err())
	}
}

// Pin forwards to inner.
func (m *Modifier) Pin(request *nfhttp.Request, label string) error { return m.inner.Pin(request, label) }

// Unpin forwards to inner.
func (m *Modifier) Unpin(request *nfhttp.Request, label string) error {
	return m.inner.Unpin(request, label)
}

// RemovePinned forwards to inner.
func (m *Modifier) RemovePinned(label string) error { return m.inner.RemovePinned(label) }

// PinnedFor forwards to inner.
func (m *Modifier) PinnedFor(request *nfhttp.Request) ([]string, error) { return m.inner.PinnedFor(request) }

// PinLabels forwards to inner.
func (m *Modifier) PinLabels() ([]string, error) { return m.inner.PinLabels() }

var _ nfhttp.Capability = (*Modifier)(nil)
