package cache

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sandrolain/nfhttp"
)

// Config configures a Cache layer.
type Config struct {
	// IsPublicCache switches must-store/must-not-store rules to the shared
	// (public/CDN) variant of RFC 9111 instead of the private-cache default.
	IsPublicCache bool
	// EnableVarySeparation stores a distinct entry per Vary-header variant
	// instead of letting the most recent variant overwrite the default
	// fingerprint entry.
	EnableVarySeparation bool
	// EmitWarningHeader adds the deprecated RFC 7234 Warning header to
	// responses served stale. Off by default since RFC 9111 obsoletes it.
	EmitWarningHeader bool
	// DisableAutoPrune stops every store from triggering a background prune
	// check; callers must invoke Prune themselves.
	DisableAutoPrune bool
	// PruneThresholdBytes is the total payload size above which Prune starts
	// evicting entries. Default: 500 MiB.
	PruneThresholdBytes int64
	// Encryption, if non-nil, is applied to metadata-store values at rest.
	// Set via WithEncryption.
	Encryption *securityConfig
	// Logger receives cache diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the reference 500 MiB prune threshold.
func DefaultConfig() Config {
	return Config{PruneThresholdBytes: 500 * 1024 * 1024}
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithPublicCache enables shared/public cache rules (RFC 9111 §3.5).
func WithPublicCache() Option {
	return func(c *Cache) { c.config.IsPublicCache = true }
}

// WithVarySeparation enables per-variant entries instead of last-write-wins.
func WithVarySeparation() Option {
	return func(c *Cache) { c.config.EnableVarySeparation = true }
}

// WithWarningHeader opts back into the RFC 7234 Warning header.
func WithWarningHeader() Option {
	return func(c *Cache) { c.config.EmitWarningHeader = true }
}

// WithDisableAutoPrune stops automatic prune checks after every store.
func WithDisableAutoPrune() Option {
	return func(c *Cache) { c.config.DisableAutoPrune = true }
}

// WithPruneThreshold overrides the default 500 MiB prune threshold.
func WithPruneThreshold(bytes int64) Option {
	return func(c *Cache) { c.config.PruneThresholdBytes = bytes }
}

// WithLogger overrides the cache's diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.config.Logger = l }
}

// WithEncryption derives an AES-256-GCM key from passphrase via scrypt and
// transparently encrypts/decrypts metadata-store values. Purely additive;
// fingerprinting and the blob store are unaffected.
func WithEncryption(passphrase string) Option {
	return func(c *Cache) {
		gcm, err := initEncryption(passphrase)
		if err != nil {
			c.logger().Error("failed to initialize cache encryption", "error", err)
			return
		}
		c.config.Encryption = &securityConfig{gcm: gcm, passphrase: passphrase}
	}
}

// Cache is the persistent, RFC-9111-flavored caching layer of the pipeline.
// It wraps an inner nfhttp.Capability and satisfies nfhttp.Capability
// itself, so it composes transparently with the Coalescer and Modifier
// layers above it.
type Cache struct {
	inner  nfhttp.Capability
	meta   MetadataStore
	blobs  BlobStore
	config Config

	locker  *fplocker
	indexMu sync.Mutex
}

// New builds a Cache in front of inner, persisting metadata to meta and
// bodies to blobs.
func New(inner nfhttp.Capability, meta MetadataStore, blobs BlobStore, opts ...Option) *Cache {
	c := &Cache{
		inner:  inner,
		meta:   meta,
		blobs:  blobs,
		config: DefaultConfig(),
		locker: newFPLocker(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) logger() *slog.Logger {
	if c.config.Logger == nil {
		c.config.Logger = slog.Default()
	}
	return c.config.Logger
}

// Perform implements nfhttp.Capability.
func (c *Cache) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	if c.bypass(request) {
		if isUnsafeMethod(request.Method()) {
			fp := request.Fingerprint()
			return c.inner.Perform(ctx, request, func(resp *nfhttp.Response) {
				if resp != nil && !resp.Cancelled() && resp.StatusCode() >= 200 && resp.StatusCode() < 400 {
					if err := c.delete(ctx, fp); err != nil {
						c.logger().Warn("cache invalidation failed", "error", err)
					}
				}
				callback(resp)
			})
		}
		return c.inner.Perform(ctx, request, callback)
	}

	baseFP, key := c.cacheKeyFor(ctx, request)
	ent, body, found := c.load(ctx, key)
	if found && !varyMatches(ent.Header, request.Header()) {
		found = false
	}

	reqCC := request.CacheControl()

	if found {
		if reqCC.OnlyIfCached {
			return c.deliverAsync(callback, func() *nfhttp.Response {
				return c.deliverFromEntry(ctx, request, ent, body, false)
			})
		}

		freshness := getFreshness(ent.Header, request.Header(), c.logger())
		switch freshness {
		case fresh:
			return c.deliverAsync(callback, func() *nfhttp.Response {
				return c.deliverFromEntry(ctx, request, ent, body, false)
			})
		case staleWhileRevalidate:
			token := c.deliverAsync(callback, func() *nfhttp.Response {
				return c.deliverFromEntry(ctx, request, ent, body, true)
			})
			c.asyncRevalidate(request, baseFP, key)
			return token
		default: // stale, transparent
			revalReq := c.addValidators(request, ent.Header)
			return c.inner.Perform(ctx, revalReq, func(resp *nfhttp.Response) {
				callback(c.handleInnerResponse(ctx, baseFP, key, request, resp, ent))
			})
		}
	}

	if reqCC.OnlyIfCached {
		return c.deliverAsync(callback, func() *nfhttp.Response {
			return nfhttp.NewCancelledResponse(request)
		})
	}

	return c.inner.Perform(ctx, request, func(resp *nfhttp.Response) {
		callback(c.handleInnerResponse(ctx, baseFP, key, request, resp, nil))
	})
}

// deliverAsync schedules build on a worker goroutine and hands its result to
// callback there, returning a token immediately so a cache hit never runs
// its callback chain on the caller's own goroutine — the same contract
// transport.Perform gives every request, hit or miss.
func (c *Cache) deliverAsync(callback nfhttp.PerformCallback, build func() *nfhttp.Response) *nfhttp.RequestToken {
	token := nfhttp.NewRequestToken()
	go callback(build())
	return token
}

// PerformSync implements nfhttp.Capability as a blocking wrapper around
// Perform.
func (c *Cache) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	ch := make(chan *nfhttp.Response, 1)
	c.Perform(ctx, request, func(resp *nfhttp.Response) { ch <- resp })

	select {
	case resp := <-ch:
		if resp.Cancelled() {
			return nil, nfhttp.NewError("PerformSync", nfhttp.ErrCanceled, nil)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, nfhttp.NewError("PerformSync", nfhttp.ErrCanceled, ctx.Err())
	}
}

// bypass reports whether request must skip the cache entirely: a write
// method, or a request-side directive that forbids reading/writing cache
// state (no-cache, no-store, legacy Pragma: no-cache).
func (c *Cache) bypass(request *nfhttp.Request) bool {
	if isUnsafeMethod(request.Method()) {
		return true
	}

	cc := request.CacheControl()
	if cc.NoCache || cc.NoStore {
		return true
	}

	header := request.Header()
	if len(header.Values("Cache-Control")) == 0 && strings.EqualFold(header.Get(headerPragma), pragmaNoCache) {
		return true
	}
	return false
}

// isUnsafeMethod reports whether method can modify the resource it targets,
// per RFC 9110 §9.2.1: such requests bypass the cache for reads and, on a
// successful response, invalidate any existing entry for the same
// fingerprint (RFC 9111 §4.4).
func isUnsafeMethod(method nfhttp.Method) bool {
	switch method {
	case nfhttp.MethodPost, nfhttp.MethodPut, nfhttp.MethodDelete:
		return true
	}
	return false
}

// cacheKeyFor returns the request's base fingerprint and the key actually
// used for this lookup. They differ only when vary separation is enabled
// and a prior response for this fingerprint declared a Vary header.
func (c *Cache) cacheKeyFor(ctx context.Context, request *nfhttp.Request) (baseFP, key string) {
	baseFP = request.Fingerprint()
	if !c.config.EnableVarySeparation {
		return baseFP, baseFP
	}
	names := c.knownVaryHeaders(ctx, baseFP)
	if len(names) == 0 {
		return baseFP, baseFP
	}
	return baseFP, cacheKeyWithVary(baseFP, request.Header(), names)
}

// addValidators promotes request to a conditional request using the stored
// entry's ETag (preferred) or Last-Modified.
func (c *Cache) addValidators(request *nfhttp.Request, storedHeader http.Header) *nfhttp.Request {
	etag := storedHeader.Get(headerETag)
	lastModified := storedHeader.Get(headerLastModified)
	reqHeader := request.Header()

	if etag != "" && reqHeader.Get("If-None-Match") == "" {
		return request.WithHeader("If-None-Match", etag)
	}
	if lastModified != "" && reqHeader.Get("If-Modified-Since") == "" {
		return request.WithHeader("If-Modified-Since", lastModified)
	}
	return request
}

// deliverFromEntry synthesizes a Response from a stored entry, marking it
// as cache-served and refreshing its Age header, and bumps last_accessed.
func (c *Cache) deliverFromEntry(ctx context.Context, request *nfhttp.Request, ent *entry, body []byte, stale bool) *nfhttp.Response {
	header := ent.Header.Clone()
	header.Set(XFromCache, "1")

	freshnessState := fresh
	if stale {
		freshnessState = staleWhileRevalidate
		header.Set(XStale, "1")
		if c.config.EmitWarningHeader {
			addStaleWarning(header)
		}
	}
	header.Set(XFreshness, freshnessString(freshnessState))

	if age, err := calculateAge(header, c.logger()); err == nil {
		header.Set(headerAge, formatAge(age))
	}

	resp := nfhttp.NewResponse(request, ent.Status, header, body)
	resp.SetMetadata("cached", "1")

	c.touch(ctx, ent.Fingerprint)
	return resp
}

// asyncRevalidate issues a background no-cache request to refresh a stale-
// while-revalidate entry; its result is persisted but never delivered to a
// caller (the stale copy was already delivered).
func (c *Cache) asyncRevalidate(request *nfhttp.Request, baseFP, key string) {
	go func() {
		ctx := context.Background()
		noCacheReq := request.WithHeader("Cache-Control", "no-cache")
		ent, _, ok := c.load(ctx, key)
		var stored *entry
		if ok {
			stored = ent
		}
		c.inner.Perform(ctx, noCacheReq, func(resp *nfhttp.Response) {
			c.handleInnerResponse(ctx, baseFP, key, request, resp, stored)
		})
	}()
}

// handleInnerResponse applies the on-response rules to a response that came
// back from the inner capability, persisting or merging as appropriate, and
// returns the Response that should actually reach the caller.
func (c *Cache) handleInnerResponse(ctx context.Context, baseFP, key string, request *nfhttp.Request, resp *nfhttp.Response, staleEntry *entry) *nfhttp.Response {
	if resp.Cancelled() {
		return resp
	}

	if staleEntry != nil && isErrorResponse(resp) {
		if stale, ok := c.staleOnError(ctx, request, key, staleEntry); ok {
			return stale
		}
	}

	reqCC := request.CacheControl()
	respCC := resp.CacheControl()
	if !canStore(request, reqCC, respCC, c.config.IsPublicCache, resp.StatusCode(), c.logger()) {
		return resp
	}

	switch {
	case resp.StatusCode() == http.StatusNotModified && staleEntry != nil:
		return c.mergeNotModified(ctx, key, request, resp, staleEntry)
	case isCacheableStatus(resp.StatusCode()):
		c.store(ctx, baseFP, key, request, resp)
		return resp
	default:
		return resp
	}
}

// isErrorResponse reports whether resp represents an origin-side failure a
// stale-if-error entry may stand in for: a 5xx status, or the synthetic
// StatusInvalid response the transport layer builds when the request never
// completed at all.
func isErrorResponse(resp *nfhttp.Response) bool {
	if resp.StatusCode() == nfhttp.StatusInvalid {
		_, hasErr := resp.Metadata("error")
		return hasErr
	}
	return resp.StatusCode() >= http.StatusInternalServerError
}

// staleOnError serves staleEntry transparently when its stored Cache-Control
// carries stale-if-error (RFC 5861) and request still allows it, in place of
// propagating a 5xx/transport error to the caller.
func (c *Cache) staleOnError(ctx context.Context, request *nfhttp.Request, key string, staleEntry *entry) (*nfhttp.Response, bool) {
	if !canStaleOnError(staleEntry.Header, request.Header(), c.logger()) {
		return nil, false
	}
	body, ok, err := c.blobs.Get(ctx, c.blobKeyFor(key))
	if err != nil || !ok {
		return nil, false
	}
	resp := c.deliverFromEntry(ctx, request, staleEntry, body, true)
	resp.SetMetadata("stale_if_error", "1")
	return resp, true
}

// store persists a fresh cacheable response, extending the storage key to a
// Vary variant when vary separation is enabled and the response declares one.
func (c *Cache) store(ctx context.Context, baseFP, key string, request *nfhttp.Request, resp *nfhttp.Response) {
	header := resp.Header()
	reqHeader := request.Header()
	storeVaryHeaders(header, reqHeader)

	now := time.Now()
	if header.Get("Date") == "" {
		header.Set("Date", now.Format(http.TimeFormat))
	}
	header.Set(XResponseTime, now.Format(time.RFC3339))

	storeKey := key
	if c.config.EnableVarySeparation {
		varyNames := headerAllCommaSepValues(header, "vary")
		if len(varyNames) > 0 {
			c.setKnownVaryHeaders(ctx, baseFP, varyNames)
			storeKey = cacheKeyWithVary(baseFP, reqHeader, varyNames)
		}
	}

	body := resp.Body()
	ent := &entry{
		Fingerprint:   storeKey,
		RequestURL:    request.URL().String(),
		RequestMethod: string(request.Method()),
		Status:        resp.StatusCode(),
		Header:        header,
		StoredAt:      now,
		LastAccessed:  now,
		PayloadSize:   len(body),
	}

	unlock := c.locker.lock(storeKey)
	defer unlock()
	if err := c.persist(ctx, storeKey, ent, body); err != nil {
		c.logger().Warn("failed to persist cache entry", "fingerprint", storeKey, "error", err)
		return
	}

	if !c.config.DisableAutoPrune {
		go c.maybePrune(context.Background())
	}
}

// mergeNotModified merges a 304 response's headers into the stored entry
// and returns a Response synthesized from the refreshed entry.
func (c *Cache) mergeNotModified(ctx context.Context, key string, request *nfhttp.Request, resp *nfhttp.Response, staleEntry *entry) *nfhttp.Response {
	merged := staleEntry.Header.Clone()
	for name, values := range resp.Header() {
		merged[name] = values
	}
	merged.Set(XRevalidated, "1")

	now := time.Now()
	ent := &entry{
		Fingerprint:   key,
		RequestURL:    staleEntry.RequestURL,
		RequestMethod: staleEntry.RequestMethod,
		Status:        staleEntry.Status,
		Header:        merged,
		StoredAt:      staleEntry.StoredAt,
		LastAccessed:  now,
		PayloadSize:   staleEntry.PayloadSize,
	}

	unlock := c.locker.lock(key)
	if err := c.persistMeta(ctx, key, ent); err != nil {
		c.logger().Warn("failed to persist revalidated cache entry", "fingerprint", key, "error", err)
	}
	unlock()

	body, _, _ := c.blobs.Get(ctx, c.blobKeyFor(key))
	return c.deliverFromEntry(ctx, request, ent, body, false)
}

// touch refreshes an entry's last_accessed timestamp on a cache hit.
func (c *Cache) touch(ctx context.Context, fp string) {
	unlock := c.locker.lock(fp)
	defer unlock()

	raw, ok, err := c.meta.Get(ctx, c.metaKey(fp))
	if err != nil || !ok {
		return
	}
	ent, err := c.decodeEntry(raw)
	if err != nil {
		return
	}
	ent.LastAccessed = time.Now()
	if err := c.persistMeta(ctx, fp, ent); err != nil {
		c.logger().Warn("failed to refresh cache entry access time", "fingerprint", fp, "error", err)
	}
}

func isCacheableStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted,
		http.StatusNonAuthoritativeInfo, http.StatusNoContent,
		http.StatusResetContent, http.StatusPartialContent:
		return true
	default:
		return false
	}
}
