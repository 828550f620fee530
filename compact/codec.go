package compact

import (
	"fmt"
	"math"

	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/options"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/signalindex"
)

const (
	// FixedLength is the size of a compact record without its timestamp.
	FixedLength = 1 + 2 + 4
	// MaxLength is the size of a compact record carrying a full timestamp.
	MaxLength = FixedLength + 8

	millisecondOffsetWidth = 2
	tickOffsetWidth        = 4
	fullTimestampWidth     = 8
)

var wireEngine = endian.GetBigEndianEngine()

// Codec encodes and decodes compact records for one subscription.
// It is not safe for concurrent use; the publisher serializes access.
type Codec struct {
	cache                    *signalindex.Cache
	baseTimes                BaseTimes
	includeTime              bool
	useMillisecondResolution bool
}

// Option configures a Codec.
type Option = options.Option[*Codec]

// WithIncludeTime controls whether records carry a timestamp. Default true.
func WithIncludeTime(include bool) Option {
	return options.NoError(func(c *Codec) {
		c.includeTime = include
	})
}

// WithMillisecondResolution selects two-byte millisecond offsets instead of
// four-byte tick offsets.
func WithMillisecondResolution(enabled bool) Option {
	return options.NoError(func(c *Codec) {
		c.useMillisecondResolution = enabled
	})
}

// WithBaseTimes sets the initial base-time table.
func WithBaseTimes(b BaseTimes) Option {
	return options.New(func(c *Codec) error {
		if b.Index > 1 {
			return fmt.Errorf("%w: base time index %d", errs.ErrInvalidConfig, b.Index)
		}
		c.baseTimes = b

		return nil
	})
}

// NewCodec returns a codec resolving runtime indices through cache.
func NewCodec(cache *signalindex.Cache, opts ...Option) (*Codec, error) {
	c := &Codec{cache: cache, includeTime: true}
	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// Cache returns the signal index cache in use.
func (c *Codec) Cache() *signalindex.Cache {
	return c.cache
}

// SetCache replaces the signal index cache. Indices from the previous cache
// must no longer be encoded.
func (c *Codec) SetCache(cache *signalindex.Cache) {
	c.cache = cache
}

// BaseTimes returns the current base-time table.
func (c *Codec) BaseTimes() BaseTimes {
	return c.baseTimes
}

// SetBaseTimes installs a new base-time table.
func (c *Codec) SetBaseTimes(b BaseTimes) {
	c.baseTimes = b
}

// IncludeTime reports whether records carry timestamps.
func (c *Codec) IncludeTime() bool {
	return c.includeTime
}

// timeEncoding chooses the timestamp form for ts and returns the timestamp
// flag bits, the width in bytes and the value to write.
func (c *Codec) timeEncoding(ts measurement.Ticks) (Flags, int, uint64, error) {
	if !c.includeTime {
		return 0, 0, 0, nil
	}

	idx := c.baseTimes.Index
	base := c.baseTimes.Slots[idx&1]
	if base <= 0 {
		if idx == 1 {
			return 0, 0, 0, fmt.Errorf("encode with slot 1: %w", errs.ErrBaseTimeSlotUnset)
		}

		return 0, fullTimestampWidth, uint64(ts), nil //nolint:gosec
	}

	diff := ts - base
	if diff > 0 {
		var flags Flags = FlagBaseTimeOffset
		if idx == 1 {
			flags |= FlagTimeIndex
		}

		if c.useMillisecondResolution {
			if ms := diff / measurement.TicksPerMillisecond; ms < math.MaxUint16 {
				return flags, millisecondOffsetWidth, uint64(ms), nil //nolint:gosec
			}
		} else if diff < math.MaxUint32 {
			return flags, tickOffsetWidth, uint64(diff), nil //nolint:gosec
		}
	}

	return 0, fullTimestampWidth, uint64(ts), nil //nolint:gosec
}

// EncodedLen returns the size of the record Append would write for m.
func (c *Codec) EncodedLen(m measurement.Measurement) int {
	_, width, _, err := c.timeEncoding(m.Timestamp)
	if err != nil {
		return MaxLength
	}

	return FixedLength + width
}

// Append appends the compact record of m to dst. The signal must be mapped in
// the codec's cache.
func (c *Codec) Append(dst []byte, m measurement.Measurement) ([]byte, error) {
	index := c.cache.Index(m.SignalID)
	if index == signalindex.UnknownIndex {
		return dst, fmt.Errorf("signal %s: %w", m.SignalID, errs.ErrSignalNotFound)
	}

	return c.AppendIndexed(dst, index, m)
}

// AppendIndexed appends the compact record of m under an already resolved
// runtime index.
func (c *Codec) AppendIndexed(dst []byte, index uint16, m measurement.Measurement) ([]byte, error) {
	timeFlags, width, ts, err := c.timeEncoding(m.Timestamp)
	if err != nil {
		return dst, err
	}

	dst = append(dst, byte(MapToCompact(m.Flags)|timeFlags))
	dst = wireEngine.AppendUint16(dst, index)
	dst = wireEngine.AppendUint32(dst, math.Float32bits(float32(m.AdjustedValue())))

	switch width {
	case millisecondOffsetWidth:
		dst = wireEngine.AppendUint16(dst, uint16(ts))
	case tickOffsetWidth:
		dst = wireEngine.AppendUint32(dst, uint32(ts))
	case fullTimestampWidth:
		dst = wireEngine.AppendUint64(dst, ts)
	}

	return dst, nil
}

// Decode reads one compact record from the start of buf and returns the
// measurement and the number of bytes consumed. Quality flags are restored to
// category granularity only. Without timestamps the returned Timestamp is zero.
func (c *Codec) Decode(buf []byte) (measurement.Measurement, int, error) {
	var m measurement.Measurement

	if len(buf) < FixedLength {
		return m, 0, fmt.Errorf("compact record: %w", errs.ErrInsufficientData)
	}

	flags := Flags(buf[0])
	index := wireEngine.Uint16(buf[1:])
	value := math.Float32frombits(wireEngine.Uint32(buf[3:]))
	pos := FixedLength

	key, err := c.cache.Signal(index)
	if err != nil {
		return m, 0, err
	}

	var ts measurement.Ticks
	if c.includeTime {
		width := fullTimestampWidth
		if flags&FlagBaseTimeOffset != 0 {
			width = tickOffsetWidth
			if c.useMillisecondResolution {
				width = millisecondOffsetWidth
			}
		}
		if len(buf)-pos < width {
			return m, 0, fmt.Errorf("compact record timestamp: %w", errs.ErrInsufficientData)
		}

		switch width {
		case fullTimestampWidth:
			ts = measurement.Ticks(wireEngine.Uint64(buf[pos:])) //nolint:gosec
		default:
			var slot uint32
			if flags&FlagTimeIndex != 0 {
				slot = 1
			}
			base, err := c.baseTimes.Base(slot)
			if err != nil {
				return m, 0, err
			}

			if width == millisecondOffsetWidth {
				ts = base + measurement.Ticks(wireEngine.Uint16(buf[pos:]))*measurement.TicksPerMillisecond
			} else {
				ts = base + measurement.Ticks(wireEngine.Uint32(buf[pos:]))
			}
		}
		pos += width
	}

	m = measurement.Measurement{
		Key:        key,
		Value:      float64(value),
		Multiplier: 1,
		Timestamp:  ts,
		Flags:      flags.FullFlags(),
	}

	return m, pos, nil
}
