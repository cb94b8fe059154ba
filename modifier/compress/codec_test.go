package compress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sandrolain/nfhttp/modifier/compress"
)

func roundTrip(t *testing.T, codec compress.CompressionCodec, data []byte) {
	t.Helper()
	compressed, err := codec.Compress(data)
	if err != nil {
		t.Fatalf("%s Compress: %v", codec.Name(), err)
	}
	decompressed, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("%s Decompress: %v", codec.Name(), err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Errorf("%s round trip mismatch", codec.Name())
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("compression codec round trip test ", 100))

	gz, err := compress.NewGzip(0)
	if err != nil {
		t.Fatalf("NewGzip: %v", err)
	}
	br, err := compress.NewBrotli(0)
	if err != nil {
		t.Fatalf("NewBrotli: %v", err)
	}
	fl, err := compress.NewDeflate(0)
	if err != nil {
		t.Fatalf("NewDeflate: %v", err)
	}

	for _, codec := range []compress.CompressionCodec{gz, br, compress.NewSnappy(), fl} {
		t.Run(codec.Name(), func(t *testing.T) {
			roundTrip(t, codec, data)
		})
	}
}

func TestGzipInvalidLevel(t *testing.T) {
	if _, err := compress.NewGzip(100); err == nil {
		t.Error("expected error for invalid gzip level")
	}
}

func TestBrotliInvalidLevel(t *testing.T) {
	if _, err := compress.NewBrotli(20); err == nil {
		t.Error("expected error for invalid brotli level")
	}
}

func TestDeflateInvalidLevel(t *testing.T) {
	if _, err := compress.NewDeflate(100); err == nil {
		t.Error("expected error for invalid deflate level")
	}
}

func TestRegistryLookup(t *testing.T) {
	gz, _ := compress.NewGzip(0)
	reg := compress.NewRegistry(gz, compress.NewSnappy())

	if _, ok := reg.Lookup("gzip"); !ok {
		t.Error("expected gzip to be registered")
	}
	if _, ok := reg.Lookup("br"); ok {
		t.Error("did not expect brotli to be registered")
	}
}

func TestDecompressCorruptedData(t *testing.T) {
	gz, _ := compress.NewGzip(0)
	if _, err := gz.Decompress([]byte{0xFF, 0xFF, 0xFF}); err == nil {
		t.Error("expected error decompressing corrupted gzip data")
	}
}
