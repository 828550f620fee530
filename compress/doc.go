// Package compress provides the byte-level codecs behind pattern payload
// compression.
//
// A pattern payload is a columnar image of a data packet's compact records:
// flags and runtime indices, then values, then timestamps. Columns of slowly
// changing samples produce long repeated byte runs that a general-purpose
// compressor folds well, so the publisher tries the configured codec on every
// compact packet and keeps the result only when it beats the compact size.
//
// # Algorithms
//
//   - format.CompressionNone: pass-through, useful as a baseline
//   - format.CompressionZstd: best ratio, the default
//   - format.CompressionS2: Snappy-compatible, lowest latency
//   - format.CompressionLZ4: fast block compression
//
// Zstd is backed by klauspost/compress by default. Building with the gozstd tag
// on a cgo-enabled toolchain switches to the valyala/gozstd binding:
//
//	go build -tags gozstd ./...
//
// # Usage
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	if err != nil {
//		return err
//	}
//	packed, err := codec.Compress(columns)
//
// Decompress never returns more than MaxDecodedSize bytes, whatever the input
// claims. Oversized or corrupt input fails with errs.ErrDecompressionFailed.
//
// All codecs are stateless values backed by pooled encoders and are safe for
// concurrent use.
package compress
