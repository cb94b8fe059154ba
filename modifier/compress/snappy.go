package compress

import (
	"fmt"

	"github.com/golang/snappy"
)

// SnappyCodec implements CompressionCodec via golang/snappy.
type SnappyCodec struct{}

// NewSnappy returns a SnappyCodec.
func NewSnappy() *SnappyCodec { return &SnappyCodec{} }

func (c *SnappyCodec) Name() string { return "snappy" }

func (c *SnappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCodec) Decompress(data []byte) ([]byte, error) {
	decoded, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return decoded, nil
}

var _ CompressionCodec = (*SnappyCodec)(nil)
