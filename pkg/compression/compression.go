package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Threshold is the payload size from which Compress gzips its input
const Threshold = 1024 // 1KB

var gzipMagic = []byte{0x1f, 0x8b}

// Compress gzips data when it is at least Threshold bytes long. The second
// return value reports whether compression was applied.
func Compress(data []byte) ([]byte, bool, error) {
	if len(data) < Threshold {
		return data, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), true, nil
}

// Decompress reverses Compress. Input without a gzip header is returned as is.
func Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether data starts with a gzip header
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}
