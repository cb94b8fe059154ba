package nfhttp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// StatusInvalid is the synthetic status code used for a Response delivered
// when a request never reached the network, e.g. because it was cancelled
// before dispatch.
const StatusInvalid = 0

// Response carries the originating Request, a status code, a body, a header
// map, a cancellation flag, and an auxiliary metadata map that inner layers
// use to annotate data flowing back up the stack (e.g. "cached"="1").
type Response struct {
	request   *Request
	status    int
	header    http.Header
	body      []byte
	cancelled bool

	mu       sync.RWMutex
	metadata map[string]string
}

// NewResponse builds a Response for request.
func NewResponse(request *Request, status int, header http.Header, body []byte) *Response {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	return &Response{
		request:  request,
		status:   status,
		header:   h,
		body:     body,
		metadata: make(map[string]string),
	}
}

// NewCancelledResponse builds the synthetic Response delivered when a token
// is cancelled before its request dispatches: StatusInvalid, cancelled=true,
// empty body.
func NewCancelledResponse(request *Request) *Response {
	return &Response{
		request:   request,
		status:    StatusInvalid,
		header:    make(http.Header),
		cancelled: true,
		metadata:  make(map[string]string),
	}
}

// Request returns the originating Request.
func (r *Response) Request() *Request { return r.request }

// StatusCode returns the HTTP status code, or StatusInvalid for a
// synthetic cancelled response.
func (r *Response) StatusCode() int { return r.status }

// Cancelled reports whether this Response is the synthetic result of a
// cancel that pre-empted dispatch.
func (r *Response) Cancelled() bool { return r.cancelled }

// Header returns a copy of the response's header map.
func (r *Response) Header() http.Header { return r.header.Clone() }

// Body returns the response body bytes.
func (r *Response) Body() []byte { return r.body }

// Clone returns a deep copy of r, including a copy of its metadata map.
func (r *Response) Clone() *Response {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Response{
		request:   r.request,
		status:    r.status,
		header:    r.header.Clone(),
		cancelled: r.cancelled,
		metadata:  make(map[string]string, len(r.metadata)),
	}
	if r.body != nil {
		c.body = append([]byte(nil), r.body...)
	}
	for k, v := range r.metadata {
		c.metadata[k] = v
	}
	return c
}

// SetMetadata annotates the response with a key/value pair. Used by inner
// layers to signal e.g. "cached"="1" or "multicasted"="1" to callers without
// disturbing the wire headers.
func (r *Response) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[key] = value
}

// Metadata returns the value set for key, and whether it was present.
func (r *Response) Metadata(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.metadata[key]
	return v, ok
}

// serializedResponse is the wire shape of Response.Serialize.
type serializedResponse struct {
	StatusCode int                `json:"status_code"`
	Request    serializedRequest  `json:"request"`
	Headers    http.Header        `json:"headers"`
}

// Serialize returns the JSON representation {status_code, request, headers};
// the body is persisted separately by the cache as a blob.
func (r *Response) Serialize() ([]byte, error) {
	return json.Marshal(serializedResponse{
		StatusCode: r.status,
		Request: serializedRequest{
			URL:     r.request.url.String(),
			Headers: r.request.header,
			Method:  r.request.method,
		},
		Headers: r.header,
	})
}

// ResponseCacheControl is the parsed view of a response's Cache-Control
// directives. Like RequestCacheControl, it is the single representation the
// whole pipeline shares; nothing downstream re-parses the raw header.
type ResponseCacheControl struct {
	MustRevalidate  bool
	NoCache         bool
	NoStore         bool
	NoTransform     bool
	Public          bool
	Private         bool
	ProxyRevalidate bool
	MaxAge          int
	HasMaxAge       bool
	SMaxAge         int
	HasSMaxAge      bool
	// MustUnderstand implements RFC 9111 §5.2.2.3: a cache may only honor
	// no-store's absence here if it also understands the response's status
	// code (see the cache package's understoodStatusCodes).
	MustUnderstand bool
	// StaleWhileRevalidate/HasStaleWhileRevalidate carry RFC 5861's
	// extension window during which a cache may serve the stale entry while
	// it revalidates in the background.
	StaleWhileRevalidate    int
	HasStaleWhileRevalidate bool
	// StaleIfError/HasStaleIfError/StaleIfErrorAcceptAny carry RFC 5861's
	// extension window during which a cache may serve the stale entry in
	// place of a 5xx or transport error from the origin.
	StaleIfError          int
	HasStaleIfError       bool
	StaleIfErrorAcceptAny bool
}

// CacheControl parses the response's Cache-Control header.
func (r *Response) CacheControl() ResponseCacheControl {
	return ParseResponseCacheControl(r.header)
}

// ParseResponseCacheControl parses the Cache-Control header out of an
// arbitrary header map. It underlies Response.CacheControl, and is exported
// so callers holding only a stored header map (e.g. a cache entry with no
// live Response wrapper) can parse it the same way.
func ParseResponseCacheControl(header http.Header) ResponseCacheControl {
	cc := ResponseCacheControl{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(header.Get("Cache-Control"), ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case "must-revalidate":
			cc.MustRevalidate = true
		case "no-cache":
			cc.NoCache = true
		case "no-store":
			cc.NoStore = true
		case "no-transform":
			cc.NoTransform = true
		case "public":
			cc.Public = true
		case "private":
			cc.Private = true
		case "proxy-revalidate":
			cc.ProxyRevalidate = true
		case "must-understand":
			cc.MustUnderstand = true
		case "max-age":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				cc.MaxAge = n
				cc.HasMaxAge = true
			}
		case "s-maxage":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				cc.SMaxAge = n
				cc.HasSMaxAge = true
			}
		case "stale-while-revalidate":
			if value == "" {
				cc.HasStaleWhileRevalidate = true
			} else if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				cc.StaleWhileRevalidate = n
				cc.HasStaleWhileRevalidate = true
			}
		case "stale-if-error":
			cc.HasStaleIfError = true
			if value == "" {
				cc.StaleIfErrorAcceptAny = true
			} else if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				cc.StaleIfError = n
			} else {
				cc.StaleIfErrorAcceptAny = true
			}
		}
	}
	return cc
}
