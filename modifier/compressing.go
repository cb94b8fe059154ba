package modifier

import (
	"strconv"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/modifier/compress"
)

// NewRecompressingResponseModifier returns a ResponseModifierFunc that
// re-encodes a response body with codec and sets Content-Encoding/
// Content-Length accordingly, for callers who want cache storage
// efficiency beyond whatever the origin sent. It never retries.
func NewRecompressingResponseModifier(codec compress.CompressionCodec) ResponseModifierFunc {
	return func(done func(*nfhttp.Response, bool), resp *nfhttp.Response) {
		body := resp.Body()
		if len(body) == 0 {
			done(resp, false)
			return
		}

		compressed, err := codec.Compress(body)
		if err != nil {
			done(resp, false)
			return
		}

		header := resp.Header()
		header.Set("Content-Encoding", codec.Name())
		header.Set("Content-Length", strconv.Itoa(len(compressed)))
		rewritten := nfhttp.NewResponse(resp.Request(), resp.StatusCode(), header, compressed)
		done(rewritten, false)
	}
}

// NewDecompressingResponseModifier returns a ResponseModifierFunc that
// decodes a response whose Content-Encoding the Transport's mandatory
// gzip/deflate handling declined (e.g. br, snappy), using a codec looked up
// from registry. Responses with no matching codec pass through unchanged.
func NewDecompressingResponseModifier(registry compress.Registry) ResponseModifierFunc {
	return func(done func(*nfhttp.Response, bool), resp *nfhttp.Response) {
		encoding := resp.Header().Get("Content-Encoding")
		if encoding == "" {
			done(resp, false)
			return
		}
		codec, ok := registry.Lookup(encoding)
		if !ok {
			done(resp, false)
			return
		}

		decoded, err := codec.Decompress(resp.Body())
		if err != nil {
			done(resp, false)
			return
		}

		header := resp.Header()
		header.Del("Content-Encoding")
		rewritten := nfhttp.NewResponse(resp.Request(), resp.StatusCode(), header, decoded)
		done(rewritten, false)
	}
}
