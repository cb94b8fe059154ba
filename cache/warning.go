package cache

import "net/http"

// addWarningHeader adds a Warning header per RFC 7234 Section 5.5. Warning
// headers stack, so this always appends rather than replacing.
//
// Note: RFC 9111 obsoletes the Warning header field; emitting it is an
// opt-in compatibility knob, default off (see Config.EmitWarningHeader).
func addWarningHeader(header http.Header, warningCode string) {
	header.Add(headerWarning, warningCode)
}

func addStaleWarning(header http.Header) {
	addWarningHeader(header, warningResponseIsStale)
}

func addRevalidationFailedWarning(header http.Header) {
	addWarningHeader(header, warningRevalidationFailed)
}
