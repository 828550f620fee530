package compress

import (
	"fmt"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
)

// MaxDecodedSize bounds the output of every Decompress call. Input that would
// decode past it is reported as errs.ErrDecompressionFailed.
const MaxDecodedSize = 16 << 20

// Compressor compresses a complete payload image.
//
// The returned slice is owned by the caller unless documented otherwise; the
// input is never modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload image produced by the matching Compressor.
//
// It returns an error for corrupted input or input produced by another
// algorithm.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions of one algorithm.
type Codec interface {
	Compressor
	Decompressor
}

// ZstdCompressor is the Zstandard codec and the default pattern payload
// algorithm. Its backend is chosen at build time; see the package docs.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor returns the Zstandard codec.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

func decodedSizeError(algorithm string) error {
	return fmt.Errorf("%w: %s payload decodes past %d bytes", errs.ErrDecompressionFailed, algorithm, MaxDecodedSize)
}

// CompressionStats summarizes the effect of payload compression over a period.
type CompressionStats struct {
	Algorithm      format.CompressionType
	OriginalSize   int64
	CompressedSize int64
	// Attempts counts packets offered to the codec; Accepted counts those whose
	// compressed form was small enough to send.
	Attempts int64
	Accepted int64
}

// Record accounts for one compression attempt.
func (s *CompressionStats) Record(original, compressed int, accepted bool) {
	s.Attempts++
	if !accepted {
		return
	}

	s.Accepted++
	s.OriginalSize += int64(original)
	s.CompressedSize += int64(compressed)
}

// CompressionRatio returns compressed size over original size for accepted
// packets, or 0 when nothing was accepted.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the percentage of bytes saved on accepted packets.
func (s CompressionStats) SpaceSavings() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return (1.0 - s.CompressionRatio()) * 100.0
}

// CreateCodec returns a new codec for compressionType. target names the payload
// in the error message.
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec returns the shared built-in codec for compressionType.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
