package cache

import (
	"net/http"
	"sort"
	"strings"
)

// varyMatches returns false unless every header named by the cached
// response's Vary header matches the value stored against the new
// request's fingerprint (in the X-Varied-* shadow headers).
//
// RFC 9111 Section 4.1: A stored response with "Vary: *" always fails to match.
func varyMatches(cachedHeader, reqHeader http.Header) bool {
	varyHeaders := headerAllCommaSepValues(cachedHeader, "vary")

	for _, header := range varyHeaders {
		if strings.TrimSpace(header) == "*" {
			return false
		}
	}

	for _, header := range varyHeaders {
		header = http.CanonicalHeaderKey(strings.TrimSpace(header))
		if header == "" || header == "*" {
			continue
		}

		reqValue := reqHeader.Get(header)
		storedValue := cachedHeader.Get(headerXVariedPrefix + header)

		if !normalizedHeaderValuesMatch(reqValue, storedValue) {
			return false
		}
	}
	return true
}

// normalizedHeaderValuesMatch implements RFC 9111 Section 4.1 header field
// matching: values match if they can be transformed to be identical by
// whitespace normalization.
func normalizedHeaderValuesMatch(value1, value2 string) bool {
	if value1 == value2 {
		return true
	}
	return normalizeHeaderValue(value1) == normalizeHeaderValue(value2)
}

// normalizeHeaderValue collapses whitespace runs to a single space and
// removes the space after list-separating commas.
func normalizeHeaderValue(value string) string {
	value = strings.TrimSpace(value)

	var normalized strings.Builder
	prevSpace := false
	for _, r := range value {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !prevSpace {
				normalized.WriteRune(' ')
				prevSpace = true
			}
		} else {
			normalized.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.ReplaceAll(normalized.String(), ", ", ",")
}

// storeVaryHeaders copies the request's value for each header named by the
// response's Vary header into an X-Varied-* shadow header, so a later
// lookup can tell whether this cache entry applies to a new request.
func storeVaryHeaders(respHeader, reqHeader http.Header) {
	for _, varyKey := range headerAllCommaSepValues(respHeader, "vary") {
		varyKey = http.CanonicalHeaderKey(strings.TrimSpace(varyKey))
		if varyKey == "" || varyKey == "*" {
			continue
		}
		respHeader.Set(headerXVariedPrefix+varyKey, normalizeHeaderValue(reqHeader.Get(varyKey)))
	}
}

// cacheKeyWithVary extends a fingerprint with the request's values for a set
// of Vary header names, producing a distinct key per variant. This is the
// opt-in full-separation mode; the default fingerprint already excludes
// Vary-named headers entirely rather than branching on their value.
func cacheKeyWithVary(fingerprint string, reqHeader http.Header, varyHeaders []string) string {
	if len(varyHeaders) == 0 {
		return fingerprint
	}

	var varyParts []string
	for _, header := range varyHeaders {
		canonicalHeader := http.CanonicalHeaderKey(strings.TrimSpace(header))
		if canonicalHeader == "" || canonicalHeader == "*" {
			continue
		}
		value := normalizeHeaderValue(reqHeader.Get(canonicalHeader))
		varyParts = append(varyParts, canonicalHeader+":"+value)
	}

	if len(varyParts) == 0 {
		return fingerprint
	}
	sort.Strings(varyParts)
	return fingerprint + "|vary:" + strings.Join(varyParts, "|")
}

// headerAllCommaSepValues splits every value of header name (there may be
// several Vary header lines) on commas and trims whitespace.
func headerAllCommaSepValues(h http.Header, name string) []string {
	var out []string
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
