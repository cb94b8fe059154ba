// Package coalescer wraps an nfhttp.Capability and merges concurrent
// requests that share the same fingerprint into a single inner call, so a
// thundering herd against the same cacheable URL produces one outbound
// request instead of N.
package coalescer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sandrolain/nfhttp"
)

// waiter is one caller's (request, callback, outer token) triple attached
// to a group. request is kept so a waiter cancelled before dispatch can
// still be delivered a synthetic cancelled Response built against its own
// request rather than the group's shared inner request.
type waiter struct {
	request  *nfhttp.Request
	callback nfhttp.PerformCallback
	token    *nfhttp.RequestToken
}

// group is the bookkeeping for one in-flight fingerprint: the single inner
// token shared by every waiter, plus the waiters themselves.
type group struct {
	innerToken *nfhttp.RequestToken
	waiters    []*waiter
}

// Coalescer implements nfhttp.Capability by forwarding to inner, merging
// concurrent Perform calls that share a fingerprint into one inner call.
type Coalescer struct {
	inner  nfhttp.Capability
	logger *slog.Logger

	mu     sync.Mutex
	groups map[string]*group
}

// New wraps inner with request coalescing.
func New(inner nfhttp.Capability, logger *slog.Logger) *Coalescer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coalescer{
		inner:  inner,
		logger: logger,
		groups: make(map[string]*group),
	}
}

// Perform implements nfhttp.Capability. If a request with the same
// fingerprint is already in flight, it joins that group and waits on the
// same inner Response instead of starting a new one.
func (c *Coalescer) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	fp := request.Fingerprint()
	outer := nfhttp.NewRequestToken()

	c.mu.Lock()
	g, exists := c.groups[fp]
	if exists {
		w := &waiter{request: request, callback: callback, token: outer}
		g.waiters = append(g.waiters, w)
		c.mu.Unlock()

		outer.OnCancel(func() { c.detachWaiter(fp, g, w) })
		return outer
	}

	g = &group{}
	first := &waiter{request: request, callback: callback, token: outer}
	g.waiters = append(g.waiters, first)
	c.groups[fp] = g
	c.mu.Unlock()

	outer.OnCancel(func() { c.detachWaiter(fp, g, first) })

	innerToken := c.inner.Perform(ctx, request, func(resp *nfhttp.Response) {
		c.complete(fp, g, resp)
	})

	c.mu.Lock()
	g.innerToken = innerToken
	c.mu.Unlock()

	return outer
}

// detachWaiter removes w from g while g is still in flight and delivers w a
// synthetic cancelled Response. If w was the group's last waiter, the
// inner call is cancelled and the group forgotten: the transport layer
// sees exactly one cancel regardless of how many waiters came and went.
// Once complete has taken g out of the table, w is left to complete.
func (c *Coalescer) detachWaiter(fp string, g *group, w *waiter) {
	c.mu.Lock()
	removed := false
	if c.groups[fp] == g {
		for i, existing := range g.waiters {
			if existing == w {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				removed = true
				break
			}
		}
	}
	var inner *nfhttp.RequestToken
	if removed && len(g.waiters) == 0 {
		inner = g.innerToken
		delete(c.groups, fp)
	}
	c.mu.Unlock()

	if inner != nil {
		inner.Cancel()
	}
	if removed {
		w.callback(nfhttp.NewCancelledResponse(w.request))
	}
}

// complete fires once the inner call finishes: it detaches the group from
// the table, then — outside the table lock — delivers resp to every
// waiter, annotating "multicasted"="1" when more than one waiter shared it.
func (c *Coalescer) complete(fp string, g *group, resp *nfhttp.Response) {
	c.mu.Lock()
	if c.groups[fp] == g {
		delete(c.groups, fp)
	}
	waiters := g.waiters
	c.mu.Unlock()

	if len(waiters) > 1 {
		resp.SetMetadata("multicasted", "1")
	}
	for _, w := range waiters {
		if w.token.Cancelled() {
			// A waiter cancelled before the group completed still gets a
			// callback, just with a cancelled response of its own rather
			// than the (possibly shared) inner result.
			w.callback(nfhttp.NewCancelledResponse(w.request))
			continue
		}
		w.callback(resp)
	}
}

// PerformSync implements nfhttp.Capability.
func (c *Coalescer) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	done := make(chan *nfhttp.Response, 1)
	token := c.Perform(ctx, request, func(resp *nfhttp.Response) { done <- resp })

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		token.Cancel()
		return nil, nfhttp.NewError("PerformSync", nfhttp.ErrCanceled, ctx.Err())
	}
}

// Pin forwards to inner; the coalescer has no pinning state of its own.
func (c *Coalescer) Pin(request *nfhttp.Request, label string) error { return c.inner.Pin(request, label) }

// Unpin forwards to inner.
func (c *Coalescer) Unpin(request *nfhttp.Request, label string) error {
	return c.inner.Unpin(request, label)
}

// RemovePinned forwards to inner.
func (c *Coalescer) RemovePinned(label string) error { return c.inner.RemovePinned(label) }

// PinnedFor forwards to inner.
func (c *Coalescer) PinnedFor(request *nfhttp.Request) ([]string, error) { return c.inner.PinnedFor(request) }

// PinLabels forwards to inner.
func (c *Coalescer) PinLabels() ([]string, error) { return c.inner.PinLabels() }

var _ nfhttp.Capability = (*Coalescer)(nil)
