package cache

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sandrolain/nfhttp"
)

// timer is an interface for time-related operations, allowing for testing.
type timer interface {
	since(d time.Time) time.Duration
}

type realClock struct{}

func (c *realClock) since(d time.Time) time.Duration {
	return time.Since(d)
}

var clock timer = &realClock{}

// getFreshness will return one of fresh/stale/transparent/staleWhileRevalidate
// based on the Cache-Control directives of the stored response and the
// incoming request.
//
// fresh indicates the response can be returned
// stale indicates that the response needs validating before it is returned
// transparent indicates the response should not be used to fulfil the request
//
// RFC 9111 Note: this is a private cache implementation.
//   - Cache-Control: private — allowed (private caches CAN store these responses)
//   - Cache-Control: public — ignored (has no additional effect in private caches)
//   - s-maxage — ignored (only applies to shared caches)
func getFreshness(respHeaders, reqHeaders http.Header, log *slog.Logger) (freshness int) {
	respCC := nfhttp.ParseResponseCacheControl(respHeaders)
	reqCC := nfhttp.ParseRequestCacheControl(reqHeaders)

	if result, done := checkCacheControl(respCC, reqCC, reqHeaders); done {
		return result
	}

	date, err := Date(respHeaders)
	if err != nil {
		return stale
	}
	currentAge := clock.since(date)

	lifetime := calculateLifetime(respCC, respHeaders, date)

	var returnFresh bool
	currentAge, lifetime, returnFresh = adjustAgeForRequestControls(respCC, reqCC, currentAge, lifetime)
	if returnFresh {
		return fresh
	}

	if lifetime > currentAge {
		return fresh
	}

	if respCC.HasStaleWhileRevalidate {
		window := time.Duration(respCC.StaleWhileRevalidate) * time.Second
		if lifetime+window > currentAge {
			return staleWhileRevalidate
		}
	}

	return stale
}

// checkCacheControl checks for no-cache directives, Pragma: no-cache, and
// only-if-cached.
// RFC 7234 Section 5.4: Pragma: no-cache is treated as Cache-Control:
// no-cache for HTTP/1.0 compatibility.
func checkCacheControl(respCC nfhttp.ResponseCacheControl, reqCC nfhttp.RequestCacheControl, reqHeaders http.Header) (int, bool) {
	if reqCC.NoCache {
		return transparent, true
	}
	// RFC 7234 Section 5.4: "When the Cache-Control header field is not
	// present in a request, caches MUST consider the no-cache request
	// pragma-directive as having the same effect as if
	// "Cache-Control: no-cache" were present".
	if len(reqHeaders.Values("Cache-Control")) == 0 {
		if strings.EqualFold(reqHeaders.Get(headerPragma), pragmaNoCache) {
			return transparent, true
		}
	}
	if respCC.NoCache {
		return stale, true
	}
	if reqCC.OnlyIfCached {
		return fresh, true
	}
	return 0, false
}

// calculateLifetime calculates the response lifetime based on max-age or
// the Expires header.
func calculateLifetime(respCC nfhttp.ResponseCacheControl, respHeaders http.Header, date time.Time) time.Duration {
	// If a response includes both an Expires header and a max-age
	// directive, the max-age directive overrides the Expires header, even
	// if the Expires header is more restrictive.
	if respCC.HasMaxAge {
		return time.Duration(respCC.MaxAge) * time.Second
	}

	expiresHeader := respHeaders.Get("Expires")
	if expiresHeader == "" {
		return 0
	}
	expires, err := time.Parse(time.RFC1123, expiresHeader)
	if err != nil {
		return 0
	}
	return expires.Sub(date)
}

// adjustAgeForRequestControls adjusts the current age based on request
// Cache-Control directives and enforces the response's must-revalidate
// directive.
func adjustAgeForRequestControls(respCC nfhttp.ResponseCacheControl, reqCC nfhttp.RequestCacheControl, currentAge, lifetime time.Duration) (time.Duration, time.Duration, bool) {
	if reqCC.HasMaxAge {
		// The client is willing to accept a response whose age is no
		// greater than the specified time in seconds.
		lifetime = time.Duration(reqCC.MaxAge) * time.Second
	}

	if reqCC.HasMinFresh {
		// The client wants a response that will still be fresh for at
		// least the specified number of seconds.
		currentAge += time.Duration(reqCC.MinFresh) * time.Second
	}

	// RFC 7234 Section 5.2.2.1: must-revalidate.
	// "once it has become stale, a cache MUST NOT use the response to
	// satisfy subsequent requests without successful validation on the
	// origin server". This overrides max-stale from the request.
	if respCC.MustRevalidate {
		return currentAge, lifetime, false
	}

	if reqCC.HasMaxStale {
		// Indicates that the client is willing to accept a response that
		// has exceeded its expiration time.
		if reqCC.MaxStale == int(^uint(0)>>1) {
			return currentAge, lifetime, true // accept any stale response
		}
		currentAge -= time.Duration(reqCC.MaxStale) * time.Second
	}

	return currentAge, lifetime, false
}

// freshnessString converts a freshness int to its string representation.
func freshnessString(freshness int) string {
	switch freshness {
	case fresh:
		return freshnessStringFresh
	case stale:
		return freshnessStringStale
	case staleWhileRevalidate:
		return freshnessStringStaleWhileRevalidate
	case transparent:
		return freshnessStringTransparent
	default:
		return freshnessStringUnknown
	}
}

// staleIfErrorWindow reports the stale-if-error window found on either side
// of the exchange. When both sides give a bound, the request's bound replaces
// the response's, whether wider or narrower; "accept any" on either side wins.
// cache-control extension: https://tools.ietf.org/html/rfc5861
func staleIfErrorWindow(respCC nfhttp.ResponseCacheControl, reqCC nfhttp.RequestCacheControl) (lifetime time.Duration, acceptAny, found bool) {
	if respCC.HasStaleIfError {
		found = true
		if respCC.StaleIfErrorAcceptAny {
			return 0, true, true
		}
		lifetime = time.Duration(respCC.StaleIfError) * time.Second
	}
	if reqCC.HasStaleIfError {
		found = true
		if reqCC.StaleIfErrorAcceptAny {
			return 0, true, true
		}
		lifetime = time.Duration(reqCC.StaleIfError) * time.Second
	}
	return lifetime, false, found
}

// canStaleOnError determines whether a stored stale response may be served
// in place of a 5xx or transport error, per the stale-if-error extension.
func canStaleOnError(respHeaders, reqHeaders http.Header, log *slog.Logger) bool {
	respCC := nfhttp.ParseResponseCacheControl(respHeaders)
	reqCC := nfhttp.ParseRequestCacheControl(reqHeaders)

	lifetime, acceptAny, found := staleIfErrorWindow(respCC, reqCC)
	if !found {
		return false
	}
	if acceptAny {
		return true
	}

	date, err := Date(respHeaders)
	if err != nil {
		log.Debug("stale-if-error entry has no Date header, refusing to serve stale")
		return false
	}
	return lifetime > clock.since(date)
}
