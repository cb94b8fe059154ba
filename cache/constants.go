package cache

// freshness values returned by getFreshness.
const (
	stale = iota
	fresh
	transparent
	staleWhileRevalidate
)

// Headers the cache layer reads, writes, or uses as bookkeeping shadow
// fields alongside the blob it persists.
const (
	// XFromCache marks a response served without a network round trip.
	XFromCache = "X-From-Cache"
	// XRevalidated marks a response that was revalidated against the origin.
	XRevalidated = "X-Revalidated"
	// XStale marks a response served stale (stale-while-revalidate/stale-if-error).
	XStale = "X-Stale"
	// XFreshness carries the freshness state string for diagnostics.
	XFreshness = "X-Cache-Freshness"
	// XCachedTime records when an entry was written to the cache.
	XCachedTime = "X-Cached-Time"
	// XRequestTime records when the request that produced a cached entry began.
	XRequestTime = "X-Request-Time"
	// XResponseTime records when the response that produced a cached entry arrived.
	XResponseTime = "X-Response-Time"

	headerXVariedPrefix   = "X-Varied-"
	headerLastModified    = "last-modified"
	headerETag            = "etag"
	headerAge             = "Age"
	headerWarning         = "Warning"
	headerLocation        = "Location"
	headerContentLocation = "Content-Location"

	cacheControlOnlyIfCached         = "only-if-cached"
	cacheControlNoCache              = "no-cache"
	cacheControlStaleWhileRevalidate = "stale-while-revalidate"
	cacheControlMaxAge               = "max-age"
	cacheControlNoStore              = "no-store"
	cacheControlPrivate              = "private"
	cacheControlMustUnderstand       = "must-understand"
	cacheControlPublic               = "public"
	cacheControlMustRevalidate       = "must-revalidate"
	cacheControlSMaxAge              = "s-maxage"

	headerPragma  = "Pragma"
	pragmaNoCache = "no-cache"

	logConflictingDirectives = "conflicting Cache-Control directives detected"

	// RFC 7234 Section 5.5 Warning header codes, emitted only when
	// Config.EmitWarningHeader opts in.
	warningResponseIsStale    = `110 - "Response is Stale"`
	warningRevalidationFailed = `111 - "Revalidation Failed"`

	freshnessStringFresh                = "fresh"
	freshnessStringStale                = "stale"
	freshnessStringStaleWhileRevalidate = "stale-while-revalidate"
	freshnessStringTransparent          = "transparent"
	freshnessStringUnknown              = "unknown"
)

// understoodStatusCodes lists the status codes this cache understands for
// RFC 9111 Section 5.2.2.3 must-understand handling.
var understoodStatusCodes = map[int]bool{
	200: true,
	203: true,
	204: true,
	206: true,
	300: true,
	301: true,
	404: true,
	405: true,
	410: true,
	414: true,
	501: true,
}
