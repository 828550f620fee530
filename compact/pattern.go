package compact

import (
	"fmt"
	"math"

	"github.com/arloliu/tickstream/compress"
	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/internal/pool"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/signalindex"
)

// Pattern payload layout, in the publishing host's native byte order:
//
//	algorithm:u8
//	compressed {
//	    count × (flags<<16 | index):u32
//	    count × value:f32
//	    count × timestamp:i64   (only when the codec includes time)
//	}
//
// Timestamps are absolute ticks and flags carry categories only.

// PatternRecordSize returns the uncompressed columnar size of one record.
func PatternRecordSize(includeTime bool) int {
	if includeTime {
		return 4 + 4 + 8
	}

	return 4 + 4
}

// AppendPattern appends a pattern payload for ms to dst using algorithm. The
// payload is used only when it is no larger than sizeToBeat; otherwise dst is
// returned unchanged with ok false. Every signal must be mapped in the cache.
func (c *Codec) AppendPattern(dst []byte, ms []measurement.Measurement, algorithm format.CompressionType, sizeToBeat int) ([]byte, bool, error) {
	codec, err := compress.GetCodec(algorithm)
	if err != nil {
		return dst, false, err
	}

	native := endian.GetNativeEngine()
	columns := pool.GetScratchBuffer()
	defer pool.PutScratchBuffer(columns)
	columns.Grow(len(ms) * PatternRecordSize(c.includeTime))

	buf := columns.Bytes()
	for i := range ms {
		index := c.cache.Index(ms[i].SignalID)
		if index == signalindex.UnknownIndex {
			return dst, false, fmt.Errorf("signal %s: %w", ms[i].SignalID, errs.ErrSignalNotFound)
		}
		buf = native.AppendUint32(buf, uint32(MapToCompact(ms[i].Flags))<<16|uint32(index))
	}
	for i := range ms {
		buf = native.AppendUint32(buf, math.Float32bits(float32(ms[i].AdjustedValue())))
	}
	if c.includeTime {
		for i := range ms {
			buf = native.AppendUint64(buf, uint64(ms[i].Timestamp)) //nolint:gosec
		}
	}

	columns.B = buf

	packed, err := codec.Compress(buf)
	if err != nil {
		return dst, false, fmt.Errorf("pattern payload: %w", err)
	}
	if 1+len(packed) > sizeToBeat {
		return dst, false, nil
	}

	dst = append(dst, byte(algorithm))

	return append(dst, packed...), true, nil
}

// DecodePattern decodes a pattern payload holding count records.
// littleEndian is the byte order announced by the data packet flags; a payload
// from a host with the other byte order is refused.
func (c *Codec) DecodePattern(payload []byte, count int, littleEndian bool) ([]measurement.Measurement, error) {
	if littleEndian != endian.IsNativeLittleEndian() {
		return nil, fmt.Errorf("pattern payload: %w", errs.ErrUnsupportedByteOrder)
	}
	if len(payload) < 1 {
		return nil, fmt.Errorf("pattern payload: %w", errs.ErrInsufficientData)
	}

	codec, err := compress.GetCodec(format.CompressionType(payload[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecompressionFailed, err)
	}

	buf, err := codec.Decompress(payload[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecompressionFailed, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("pattern payload decoded to zero bytes: %w", errs.ErrDecompressionFailed)
	}
	if len(buf) != count*PatternRecordSize(c.includeTime) {
		return nil, fmt.Errorf("pattern payload holds %d bytes for %d records: %w", len(buf), count, errs.ErrLengthMismatch)
	}

	native := endian.GetNativeEngine()
	values := buf[count*4:]
	times := buf[count*8:]

	ms := make([]measurement.Measurement, count)
	for i := range ms {
		word := native.Uint32(buf[i*4:])
		key, err := c.cache.Signal(uint16(word))
		if err != nil {
			return nil, err
		}

		ms[i] = measurement.Measurement{
			Key:        key,
			Value:      float64(math.Float32frombits(native.Uint32(values[i*4:]))),
			Multiplier: 1,
			Flags:      Flags(word >> 16).FullFlags(),
		}
		if c.includeTime {
			ms[i].Timestamp = measurement.Ticks(native.Uint64(times[i*8:])) //nolint:gosec
		}
	}

	return ms, nil
}
