//go:build cgo && gozstd

package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/valyala/gozstd"

	"github.com/arloliu/tickstream/errs"
)

// zstdLevel trades ratio for the latency a live stream needs.
const zstdLevel = 1

// Compress encodes data as one zstd frame through libzstd.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, zstdLevel), nil
}

// Decompress decodes one zstd frame through libzstd. The frame is streamed so
// that decoding stops once MaxDecodedSize is passed.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	zr := gozstd.NewReader(bytes.NewReader(data))
	defer zr.Release()

	decompressed, err := io.ReadAll(io.LimitReader(zr, MaxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", errs.ErrDecompressionFailed, err)
	}
	if len(decompressed) > MaxDecodedSize {
		return nil, decodedSizeError("zstd")
	}

	return decompressed, nil
}
