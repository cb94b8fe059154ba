// Package compress provides compression codecs usable by a modifier
// ResponseModifier to re-encode a cached payload for storage efficiency, or
// decode an encoding the Transport declined to handle itself. This sits at
// the Modifier layer, separate from the Transport's mandatory gzip/deflate
// decompression of the wire response.
package compress

import "fmt"

// CompressionCodec compresses and decompresses byte payloads under one
// algorithm, identified by the Content-Encoding token it corresponds to.
type CompressionCodec interface {
	// Name is the Content-Encoding token this codec implements, e.g. "gzip".
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Registry looks up a CompressionCodec by its Content-Encoding token.
type Registry map[string]CompressionCodec

// NewRegistry builds a Registry from codecs, keyed by each codec's Name().
func NewRegistry(codecs ...CompressionCodec) Registry {
	r := make(Registry, len(codecs))
	for _, c := range codecs {
		r[c.Name()] = c
	}
	return r
}

// Lookup returns the codec registered for encoding, and whether one exists.
func (r Registry) Lookup(encoding string) (CompressionCodec, bool) {
	c, ok := r[encoding]
	return c, ok
}

func errUnsupportedLevel(name string, level int) error {
	return fmt.Errorf("compress: invalid %s compression level: %d", name, level)
}
