package nfhttp

import "sync"

// RequestToken represents one in-flight Perform call. Cancel is idempotent
// and safe to call from any goroutine; Cancelled reflects whether Cancel has
// been called. A token created via CreateDependent keeps its parent's
// Cancelled() reporting false while the dependent is still outstanding, even
// if the parent itself has been cancelled — this lets an outer layer cancel
// its own bookkeeping token without tearing down a dependent the caller
// still holds.
type RequestToken struct {
	mu        sync.Mutex
	cancelled bool
	onCancel  []func()

	parent       *RequestToken
	dependents   int
}

// NewRequestToken returns a fresh, uncancelled root token.
func NewRequestToken() *RequestToken {
	return &RequestToken{}
}

// Cancel marks the token cancelled and runs any callbacks registered via
// OnCancel, each exactly once. Calling Cancel more than once is a no-op
// after the first call.
func (t *RequestToken) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	callbacks := t.onCancel
	t.onCancel = nil
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Cancelled reports whether the token has been cancelled. A token with
// outstanding dependents never reports cancelled, even after Cancel has been
// called on it directly, so callers holding only a dependent are insulated
// from a parent-side cancel triggered by internal bookkeeping.
func (t *RequestToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dependents > 0 {
		return false
	}
	return t.cancelled
}

// OnCancel registers fn to run when the token is cancelled. If the token is
// already cancelled, fn runs synchronously before OnCancel returns.
func (t *RequestToken) OnCancel(fn func()) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		fn()
		return
	}
	t.onCancel = append(t.onCancel, fn)
	t.mu.Unlock()
}

// CreateDependent returns a new token whose lifetime is tracked against t:
// while the dependent exists, t.Cancelled() reports false regardless of
// whether Cancel was called on t. The caller must call Release on the
// dependent once it is done with it (normally via the dependent's own
// OnCancel, or explicitly after its Perform completes) to decrement the
// parent's outstanding count.
func (t *RequestToken) CreateDependent() *RequestToken {
	t.mu.Lock()
	t.dependents++
	t.mu.Unlock()

	dep := &RequestToken{parent: t}
	dep.OnCancel(func() {
		dep.release()
	})
	return dep
}

// release decrements the parent's outstanding-dependent count. It is called
// automatically when the dependent is cancelled; a dependent that completes
// without ever being cancelled should call it directly.
func (t *RequestToken) release() {
	if t.parent == nil {
		return
	}
	t.parent.mu.Lock()
	if t.parent.dependents > 0 {
		t.parent.dependents--
	}
	t.parent.mu.Unlock()
}

// Release detaches a dependent token from its parent without cancelling it,
// for callers that finish normally rather than via cancellation.
func (t *RequestToken) Release() {
	t.release()
}
