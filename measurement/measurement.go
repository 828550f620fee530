package measurement

import (
	"math"

	"github.com/google/uuid"
)

// Key identifies a signal: a stable 128-bit id plus the source namespace and numeric id
// it was registered under.
type Key struct {
	SignalID uuid.UUID
	Source   string
	ID       uint32
}

// IsUndefined reports whether the key carries no signal id.
func (k Key) IsUndefined() bool {
	return k.SignalID == uuid.Nil
}

// Measurement is one time-series sample.
//
// Adder and Multiplier are linear adjustments resolved into AdjustedValue before
// encoding; a zero Multiplier is treated as unset (1). A non-nil Buffer marks the
// measurement as a buffer block: Value and Flags are ignored and the bytes are
// delivered opaquely through the acknowledged side channel.
type Measurement struct {
	Key
	TagName    string
	Value      float64
	Adder      float64
	Multiplier float64
	Timestamp  Ticks
	Flags      StateFlags
	Buffer     []byte
}

// New returns a measurement with a unit multiplier.
func New(key Key, value float64, timestamp Ticks, flags StateFlags) Measurement {
	return Measurement{
		Key:        key,
		Value:      value,
		Multiplier: 1,
		Timestamp:  timestamp,
		Flags:      flags,
	}
}

// NewBufferBlock returns a buffer block measurement for key.
func NewBufferBlock(key Key, payload []byte) Measurement {
	return Measurement{Key: key, Multiplier: 1, Buffer: payload}
}

// IsBufferBlock reports whether m carries an opaque payload.
func (m Measurement) IsBufferBlock() bool {
	return m.Buffer != nil
}

// AdjustedValue returns Value*Multiplier + Adder.
func (m Measurement) AdjustedValue() float64 {
	mul := m.Multiplier
	if mul == 0 {
		mul = 1
	}

	return m.Value*mul + m.Adder
}

// IsNaN reports whether the adjusted value is NaN.
func (m Measurement) IsNaN() bool {
	return math.IsNaN(m.AdjustedValue())
}
