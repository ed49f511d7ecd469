package device

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies how an image file is compressed
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// String returns the compression name
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	// zstd frame magic, see klauspost/compress/zstd framedec.go
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectCompression inspects the first bytes of r
func DetectCompression(r io.ReaderAt) (Compression, error) {
	head := make([]byte, len(zstdMagic))
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return CompressionNone, fmt.Errorf("failed to read image header: %w", err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd, nil
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, nil
	default:
		return CompressionNone, nil
	}
}

// decompressToTemp expands src into a new temporary file in dir.
// The caller owns the returned file and must remove it.
func decompressToTemp(src io.Reader, kind Compression, dir string) (*os.File, error) {
	var (
		reader io.Reader
		closer func()
	)

	switch kind {
	case CompressionGzip:
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		reader, closer = gz, func() { gz.Close() }
	case CompressionZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		reader, closer = dec, dec.Close
	default:
		return nil, fmt.Errorf("unsupported compression %s", kind)
	}
	defer closer()

	tmp, err := os.CreateTemp(dir, "reiserfs-image-*.img")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary image: %w", err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to decompress %s image: %w", kind, err)
	}

	return tmp, nil
}
