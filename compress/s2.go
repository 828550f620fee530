package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/tickstream/errs"
)

// S2Compressor is the Snappy-compatible S2 block codec.
type S2Compressor struct{}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor returns the S2 codec.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Compress encodes data as a single S2 block.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

// Decompress decodes a single S2 block. The decoded length stored in the block
// header is checked before any output is allocated.
func (c S2Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %w", errs.ErrDecompressionFailed, err)
	}
	if n > MaxDecodedSize {
		return nil, decodedSizeError("s2")
	}

	decoded, err := s2.Decode(make([]byte, n), data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %w", errs.ErrDecompressionFailed, err)
	}

	return decoded, nil
}
