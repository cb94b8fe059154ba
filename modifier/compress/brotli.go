package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCodec implements CompressionCodec via andybalholm/brotli.
type BrotliCodec struct {
	level int
}

// NewBrotli returns a BrotliCodec at level (0-11), defaulting to 6.
func NewBrotli(level int) (*BrotliCodec, error) {
	if level == 0 {
		level = 6
	}
	if level < 0 || level > 11 {
		return nil, errUnsupportedLevel("brotli", level)
	}
	return &BrotliCodec{level: level}, nil
}

func (c *BrotliCodec) Name() string { return "br" }

func (c *BrotliCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.level)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *BrotliCodec) Decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("brotli read: %w", err)
	}
	return decoded, nil
}

var _ CompressionCodec = (*BrotliCodec)(nil)
