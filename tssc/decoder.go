package tssc

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/options"
)

// Decoder replays blocks written by an Encoder, tracking identical state.
type Decoder struct {
	busy   atomic.Bool
	engine endian.EndianEngine

	points        []pointMeta
	lastPoint     int
	prevTimestamp int64

	data       []byte
	pos        int
	repeats    int
	repeatCode byte
}

// DecoderOption configures a Decoder.
type DecoderOption = options.Option[*Decoder]

// WithDecoderEngine overrides the native byte order expected in fixed-width fields.
func WithDecoderEngine(engine endian.EndianEngine) DecoderOption {
	return options.New(func(d *Decoder) error {
		if engine == nil {
			return fmt.Errorf("%w: nil byte order engine", errs.ErrInvalidConfig)
		}
		d.engine = engine

		return nil
	})
}

// NewDecoder returns a decoder with an empty session.
func NewDecoder(opts ...DecoderOption) (*Decoder, error) {
	d := &Decoder{engine: endian.GetNativeEngine()}
	if err := options.Apply(d, opts...); err != nil {
		return nil, err
	}
	d.resetSession()

	return d, nil
}

// Engine returns the byte order the decoder expects.
func (d *Decoder) Engine() endian.EndianEngine {
	return d.engine
}

func (d *Decoder) enter() error {
	if !d.busy.CompareAndSwap(false, true) {
		return errs.ErrConcurrentAccess
	}

	return nil
}

func (d *Decoder) leave() {
	d.busy.Store(false)
}

func (d *Decoder) resetSession() {
	d.points = d.points[:0]
	d.lastPoint = -1
	d.prevTimestamp = 0
	d.repeats = 0
}

// Reset discards the session state and any buffered input.
func (d *Decoder) Reset() error {
	if err := d.enter(); err != nil {
		return err
	}
	defer d.leave()

	d.resetSession()
	d.data = d.data[:0]
	d.pos = 0

	return nil
}

// Fill appends a block, or part of one, to the input buffer.
func (d *Decoder) Fill(block []byte) error {
	if err := d.enter(); err != nil {
		return err
	}
	defer d.leave()

	if d.pos > 0 {
		n := copy(d.data, d.data[d.pos:])
		d.data = d.data[:n]
		d.pos = 0
	}
	d.data = append(d.data, block...)

	return nil
}

// Buffered returns the number of input bytes not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.data) - d.pos
}

// PointCount returns the number of points defined in the session.
func (d *Decoder) PointCount() int {
	return len(d.points)
}

// Read decodes the next record into rec. It returns EndOfStream without
// consuming anything when the buffer ends before a complete record.
func (d *Decoder) Read(rec *Record) (ReadResult, error) {
	if err := d.enter(); err != nil {
		return EndOfStream, err
	}
	defer d.leave()

	for {
		remaining := len(d.data) - d.pos
		if remaining == 0 {
			return EndOfStream, nil
		}

		if d.repeats == 0 {
			lead := d.data[d.pos]
			switch lead & tagMask {
			case tagDefinePoint:
				if lead != tagDefinePoint {
					return EndOfStream, fmt.Errorf("%w: define record 0x%02x", errs.ErrMalformedBlock, lead)
				}
				if remaining < defineLength {
					return EndOfStream, nil
				}
				index := d.engine.Uint16(d.data[d.pos+1:])
				d.points = append(d.points, newPointMeta(len(d.points), index))
				d.pos += defineLength

				continue
			case tagCommand:
				if lead != tagCommand {
					return EndOfStream, fmt.Errorf("%w: command record 0x%02x", errs.ErrMalformedBlock, lead)
				}
				if remaining < commandLength {
					return EndOfStream, nil
				}
				cmd := d.data[d.pos+1]
				d.pos += commandLength
				if cmd == CommandSessionReset {
					d.resetSession()
					continue
				}
				*rec = Record{Command: cmd}

				return CommandRead, nil
			case tagInvalid:
				return EndOfStream, fmt.Errorf("%w: record tag 0x%02x", errs.ErrMalformedBlock, lead)
			}
		}

		if remaining < fastPathBytes {
			complete, err := d.peekMeasurement()
			if err != nil {
				return EndOfStream, err
			}
			if !complete {
				return EndOfStream, nil
			}
		}

		if err := d.readMeasurement(rec); err != nil {
			return EndOfStream, err
		}

		return MeasurementRead, nil
	}
}

// peekMeasurement walks the next measurement record without changing any
// state and reports whether the buffer holds all of it.
func (d *Decoder) peekMeasurement() (bool, error) {
	buf := d.data[d.pos:]
	pos := 0

	code := d.repeatCode
	if d.repeats == 0 {
		code = buf[0] & codeMask
		pos++
	}

	if code&flagPointID != 0 {
		n, ok, err := uvarintLen(buf[pos:])
		if err != nil || !ok {
			return false, err
		}
		pos += n
	}
	if code&flagQuality != 0 {
		pos += qualityLength
	}
	pos += int(code & widthMask)
	if pos > len(buf) {
		return false, nil
	}
	if code&flagTimestamp != 0 {
		n, ok, err := uvarintLen(buf[pos:])
		if err != nil || !ok {
			return false, err
		}
		pos += n
	}

	return pos <= len(buf), nil
}

func (d *Decoder) readMeasurement(rec *Record) error {
	var code byte
	if d.repeats > 0 {
		code = d.repeatCode
		d.repeats--
	} else {
		header := d.data[d.pos]
		d.pos++
		code = header & codeMask
		d.repeatCode = code
		d.repeats = int(header >> runShift)
	}

	width := int(code & widthMask)
	if width > maxValueLength {
		return fmt.Errorf("%w: value width %d", errs.ErrMalformedBlock, width)
	}

	id := 0
	if d.lastPoint >= 0 {
		id = d.points[d.lastPoint].expectedNext
	}
	if code&flagPointID != 0 {
		v, n := binary.Uvarint(d.data[d.pos:])
		if n <= 0 {
			return fmt.Errorf("%w: point id varint", errs.ErrMalformedBlock)
		}
		id = int(v) //nolint:gosec
		d.pos += n
	}
	if id < 0 || id >= len(d.points) {
		return fmt.Errorf("%w: undefined point id %d", errs.ErrMalformedBlock, id)
	}

	p := &d.points[id]
	if code&flagQuality != 0 {
		p.prevQuality ^= d.engine.Uint32(d.data[d.pos:])
		d.pos += qualityLength
	}
	if width > 0 {
		p.prevValue ^= uint32(endian.UintN(d.engine, d.data[d.pos:], width)) //nolint:gosec
		d.pos += width
	}
	if code&flagTimestamp != 0 {
		v, n := binary.Uvarint(d.data[d.pos:])
		if n <= 0 {
			return fmt.Errorf("%w: timestamp varint", errs.ErrMalformedBlock)
		}
		d.prevTimestamp ^= int64(v) //nolint:gosec
		d.pos += n
	}

	if d.lastPoint >= 0 {
		d.points[d.lastPoint].expectedNext = id
	}
	d.lastPoint = id

	*rec = Record{
		Index:     p.index,
		Timestamp: d.prevTimestamp,
		Quality:   p.prevQuality,
		Value:     math.Float32frombits(p.prevValue),
	}

	return nil
}

// uvarintLen returns the encoded length of the uvarint at the start of buf.
// ok is false when buf ends first.
func uvarintLen(buf []byte) (int, bool, error) {
	for i, b := range buf {
		if i >= binary.MaxVarintLen64 {
			return 0, false, fmt.Errorf("%w: varint overflow", errs.ErrMalformedBlock)
		}
		if b < 0x80 {
			return i + 1, true, nil
		}
	}

	return 0, false, nil
}
