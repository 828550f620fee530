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

// Encoder writes measurements into size-bounded delta blocks.
//
// Session state survives Clear so consecutive blocks keep compressing against
// each other; Reset discards it.
type Encoder struct {
	busy   atomic.Bool
	engine endian.EndianEngine

	points        []pointMeta
	pointIDs      map[uint16]int
	lastPoint     int
	prevTimestamp int64
	pendingReset  bool

	data        []byte
	maxSize     int
	count       int
	headerPos   int
	headerCode  byte
	headerSlots int
}

// EncoderOption configures an Encoder.
type EncoderOption = options.Option[*Encoder]

// WithEncoderEngine overrides the native byte order used for fixed-width fields.
func WithEncoderEngine(engine endian.EndianEngine) EncoderOption {
	return options.New(func(e *Encoder) error {
		if engine == nil {
			return fmt.Errorf("%w: nil byte order engine", errs.ErrInvalidConfig)
		}
		e.engine = engine

		return nil
	})
}

// NewEncoder returns an encoder producing blocks of at most maxBlockSize bytes.
func NewEncoder(maxBlockSize int, opts ...EncoderOption) (*Encoder, error) {
	if maxBlockSize < MeasurementHeadroom {
		return nil, fmt.Errorf("%w: block size %d is below the %d byte headroom", errs.ErrInvalidConfig, maxBlockSize, MeasurementHeadroom)
	}

	e := &Encoder{
		engine:  endian.GetNativeEngine(),
		maxSize: maxBlockSize,
		data:    make([]byte, 0, maxBlockSize),
	}
	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}
	e.resetSession()

	return e, nil
}

// Engine returns the byte order of the blocks this encoder writes.
func (e *Encoder) Engine() endian.EndianEngine {
	return e.engine
}

func (e *Encoder) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return errs.ErrConcurrentAccess
	}

	return nil
}

func (e *Encoder) leave() {
	e.busy.Store(false)
}

func (e *Encoder) resetSession() {
	e.points = e.points[:0]
	e.pointIDs = make(map[uint16]int)
	e.lastPoint = -1
	e.prevTimestamp = 0
	e.pendingReset = true
	e.clearBlock()
}

func (e *Encoder) clearBlock() {
	e.data = e.data[:0]
	e.count = 0
	e.closeRun()
}

func (e *Encoder) closeRun() {
	e.headerPos = -1
	e.headerSlots = 0
}

// Reset discards all session state and the current block. The next block opens
// with CommandSessionReset.
func (e *Encoder) Reset() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	e.resetSession()

	return nil
}

// Clear starts a new block within the current session.
func (e *Encoder) Clear() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	e.clearBlock()

	return nil
}

// CanAcceptMeasurement reports whether the block has room for one more measurement.
func (e *Encoder) CanAcceptMeasurement() bool {
	return e.maxSize-len(e.data) >= MeasurementHeadroom
}

// CanAcceptCommand reports whether the block has room for one more command.
func (e *Encoder) CanAcceptCommand() bool {
	return e.maxSize-len(e.data) >= CommandHeadroom
}

// Len returns the number of bytes in the current block.
func (e *Encoder) Len() int {
	return len(e.data)
}

// Count returns the number of measurements in the current block.
func (e *Encoder) Count() int {
	return e.count
}

// PointCount returns the number of points defined in the session.
func (e *Encoder) PointCount() int {
	return len(e.points)
}

// Bytes returns the current block. The slice is only valid until the next call
// that modifies the encoder.
func (e *Encoder) Bytes() []byte {
	return e.data
}

// AppendTo appends the current block to dst.
func (e *Encoder) AppendTo(dst []byte) []byte {
	return append(dst, e.data...)
}

func (e *Encoder) writeSessionReset() {
	if !e.pendingReset {
		return
	}

	e.data = append(e.data, tagCommand, CommandSessionReset)
	e.pendingReset = false
}

// AddCommand embeds an out-of-band command byte in the block.
func (e *Encoder) AddCommand(cmd byte) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if cmd == CommandSessionReset {
		return fmt.Errorf("%w: command 0x%02x is reserved", errs.ErrMalformedBlock, cmd)
	}

	need := CommandHeadroom
	if e.pendingReset {
		need += commandLength
	}
	if e.maxSize-len(e.data) < need {
		return fmt.Errorf("command 0x%02x: %w", cmd, errs.ErrBlockFull)
	}

	e.writeSessionReset()
	e.data = append(e.data, tagCommand, cmd)
	e.closeRun()

	return nil
}

// AddMeasurement appends one measurement for the signal at runtime index.
// It returns errs.ErrBlockFull when CanAcceptMeasurement is false; the caller
// must flush the block and Clear first.
func (e *Encoder) AddMeasurement(index uint16, timestamp int64, quality uint32, value float32) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if !e.CanAcceptMeasurement() {
		return fmt.Errorf("measurement for index %d: %w", index, errs.ErrBlockFull)
	}

	e.writeSessionReset()

	id, ok := e.pointIDs[index]
	if !ok {
		id = len(e.points)
		e.points = append(e.points, newPointMeta(id, index))
		e.pointIDs[index] = id

		e.data = append(e.data, tagDefinePoint)
		e.data = e.engine.AppendUint16(e.data, index)
		e.closeRun()
	}

	expected := 0
	if e.lastPoint >= 0 {
		expected = e.points[e.lastPoint].expectedNext
	}

	p := &e.points[id]
	bits := math.Float32bits(value)
	xor := bits ^ p.prevValue
	width := valueWidth(xor)

	code := width
	if id != expected {
		code |= flagPointID
	}
	if quality != p.prevQuality {
		code |= flagQuality
	}
	if timestamp != e.prevTimestamp {
		code |= flagTimestamp
	}

	if e.headerPos >= 0 && code == e.headerCode && e.headerSlots < maxRunRepeats {
		e.data[e.headerPos] += runIncrement
		e.headerSlots++
	} else {
		e.headerPos = len(e.data)
		e.headerCode = code
		e.headerSlots = 0
		e.data = append(e.data, code)
	}

	if code&flagPointID != 0 {
		e.data = binary.AppendUvarint(e.data, uint64(id)) //nolint:gosec
	}
	if code&flagQuality != 0 {
		e.data = e.engine.AppendUint32(e.data, quality^p.prevQuality)
	}
	e.data = endian.AppendUintN(e.engine, e.data, uint64(xor), int(width))
	if code&flagTimestamp != 0 {
		e.data = binary.AppendUvarint(e.data, uint64(timestamp^e.prevTimestamp)) //nolint:gosec
	}

	p.prevValue = bits
	p.prevQuality = quality
	e.prevTimestamp = timestamp
	if e.lastPoint >= 0 {
		e.points[e.lastPoint].expectedNext = id
	}
	e.lastPoint = id
	e.count++

	return nil
}
