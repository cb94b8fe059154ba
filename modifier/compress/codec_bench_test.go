package compress_test

import (
	"strings"
	"testing"

	"github.com/sandrolain/nfhttp/modifier/compress"
)

func BenchmarkGzipCompress(b *testing.B) {
	codec, _ := compress.NewGzip(0)
	data := []byte(strings.Repeat("benchmark data ", 100))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = codec.Compress(data)
	}
}

func BenchmarkGzipDecompress(b *testing.B) {
	codec, _ := compress.NewGzip(0)
	data := []byte(strings.Repeat("benchmark data ", 100))
	compressed, _ := codec.Compress(data)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = codec.Decompress(compressed)
	}
}

func BenchmarkBrotliCompress(b *testing.B) {
	codec, _ := compress.NewBrotli(0)
	data := []byte(strings.Repeat("benchmark data ", 100))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = codec.Compress(data)
	}
}

func BenchmarkSnappyCompress(b *testing.B) {
	codec := compress.NewSnappy()
	data := []byte(strings.Repeat("benchmark data ", 100))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = codec.Compress(data)
	}
}
