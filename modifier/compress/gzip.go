package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// GzipCodec implements CompressionCodec via the standard library's gzip
// package.
type GzipCodec struct {
	level int
}

// NewGzip returns a GzipCodec at level, or gzip.DefaultCompression if level
// is zero.
func NewGzip(level int) (*GzipCodec, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, errUnsupportedLevel("gzip", level)
	}
	return &GzipCodec{level: level}, nil
}

func (c *GzipCodec) Name() string { return "gzip" }

func (c *GzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *GzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return decoded, nil
}

var _ CompressionCodec = (*GzipCodec)(nil)
