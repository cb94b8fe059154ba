package nfhttp

import "context"

// PerformCallback receives the Response for a Perform call. It may be
// invoked from any goroutine, including the caller's own, and is always
// invoked exactly once per Perform call unless the token is released with
// no callback ever fired (only possible if a Modifier drops the request,
// which surfaces as ErrModifierDroppedRequest instead).
type PerformCallback func(*Response)

// Capability is the interface implemented identically by every layer of the
// pipeline (Transport, Cache, Coalescer, Modifier) and by the assembled
// Client CreateClient returns. Each layer wraps an inner Capability and
// delegates to it, so the stack composes by simple embedding.
type Capability interface {
	// Perform dispatches request asynchronously, invoking callback with the
	// Response once available. It returns a token the caller can use to
	// cancel the in-flight operation.
	Perform(ctx context.Context, request *Request, callback PerformCallback) *RequestToken

	// PerformSync is a blocking convenience wrapper around Perform.
	PerformSync(ctx context.Context, request *Request) (*Response, error)

	// Pin marks the cache entry for request so it survives eviction, tagged
	// with label. Layers above the cache pass this straight through; the
	// cache is the only layer that acts on it.
	Pin(request *Request, label string) error

	// Unpin removes label from request's pinned entry, if present.
	Unpin(request *Request, label string) error

	// RemovePinned removes label from every entry it pins. The entries stay
	// cached and become evictable once no other label pins them.
	RemovePinned(label string) error

	// PinnedFor returns the labels currently pinning request's cache entry.
	PinnedFor(request *Request) ([]string, error)

	// PinLabels returns every label currently in use across the cache.
	PinLabels() ([]string, error)
}
