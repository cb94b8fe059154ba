package compress

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
)

// DeflateCodec implements CompressionCodec via the standard library's flate
// package (raw DEFLATE, as sent with Content-Encoding: deflate).
type DeflateCodec struct {
	level int
}

// NewDeflate returns a DeflateCodec at level, or flate.DefaultCompression
// if level is zero.
func NewDeflate(level int) (*DeflateCodec, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, errUnsupportedLevel("deflate", level)
	}
	return &DeflateCodec{level: level}, nil
}

func (c *DeflateCodec) Name() string { return "deflate" }

func (c *DeflateCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("flate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *DeflateCodec) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("flate read: %w", err)
	}
	return decoded, nil
}

var _ CompressionCodec = (*DeflateCodec)(nil)
