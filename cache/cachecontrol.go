package cache

import (
	"log/slog"

	"github.com/sandrolain/nfhttp"
)

// logCacheControlConflicts surfaces the RFC 9111 §4.2.1 directive conflicts
// this cache cares about. Parsing itself (including first-occurrence-wins
// for duplicates) lives in nfhttp.ParseRequestCacheControl/
// ParseResponseCacheControl; this only diagnoses combinations that are
// still contradictory once parsed.
func logCacheControlConflicts(reqCC nfhttp.RequestCacheControl, respCC nfhttp.ResponseCacheControl, log *slog.Logger) {
	if respCC.NoCache && respCC.HasMaxAge {
		log.Warn(logConflictingDirectives,
			"conflict", "no-cache + max-age",
			"resolution", "no-cache takes precedence (requires revalidation)")
	}
	if respCC.Private && respCC.Public {
		log.Warn(logConflictingDirectives,
			"conflict", "public + private",
			"resolution", "private takes precedence (more restrictive)")
	}
	if respCC.NoStore && respCC.HasMaxAge {
		log.Warn(logConflictingDirectives,
			"conflict", "no-store + max-age",
			"resolution", "no-store takes precedence (prevents caching)")
	}
	if respCC.NoStore && respCC.MustRevalidate {
		log.Warn(logConflictingDirectives,
			"conflict", "no-store + must-revalidate",
			"resolution", "no-store takes precedence (prevents caching)")
	}
}

// canStore determines if a response can be stored in the cache based on
// Cache-Control directives.
// isPublicCache: true if this is a shared/public cache, false for private
// cache (default).
// RFC 9111 Section 3: Storing Responses in Caches
// RFC 9111 Section 5.2.2.3: must-understand directive
// RFC 9111 Section 3.5: Storing Responses to Authenticated Requests
func canStore(request *nfhttp.Request, reqCC nfhttp.RequestCacheControl, respCC nfhttp.ResponseCacheControl, isPublicCache bool, statusCode int, log *slog.Logger) (canStore bool) {
	logCacheControlConflicts(reqCC, respCC, log)

	// RFC 9111 Section 5.2.2.3: must-understand directive.
	// When must-understand is present, the cache can only store the
	// response if the status code is one it understands; if it is, presence
	// of must-understand effectively overrides no-store.
	if respCC.MustUnderstand {
		if !understoodStatusCodes[statusCode] {
			return false
		}
	} else {
		if respCC.NoStore || reqCC.NoStore {
			return false
		}
	}

	// RFC 9111 Section 3.5: Storing Responses to Authenticated Requests.
	// A shared cache MUST NOT use a cached response to a request with an
	// Authorization header field unless the response contains a
	// Cache-Control field with the "public", "must-revalidate", or
	// "s-maxage" response directive.
	if isPublicCache && request.Header().Get("Authorization") != "" {
		if !respCC.Public && !respCC.MustRevalidate && !respCC.HasSMaxAge {
			log.Debug("refusing to cache Authorization request in shared cache",
				"url", request.URL().String(),
				"reason", "no public/must-revalidate/s-maxage directive")
			return false
		}
	}

	// RFC 9111: Cache-Control: private — public/shared caches MUST NOT
	// store; private caches may.
	if respCC.Private && isPublicCache {
		return false
	}

	return true
}
