package section

import (
	"fmt"

	"github.com/arloliu/tickstream/errs"
)

// BaseTimeUpdate announces the two base-time epochs and which one is active.
type BaseTimeUpdate struct {
	ActiveIndex uint32
	Slots       [2]int64
}

// Append appends the message to dst.
func (u BaseTimeUpdate) Append(dst []byte) []byte {
	dst = wireEngine.AppendUint32(dst, u.ActiveIndex)
	dst = wireEngine.AppendUint64(dst, uint64(u.Slots[0])) //nolint:gosec
	return wireEngine.AppendUint64(dst, uint64(u.Slots[1])) //nolint:gosec
}

// Parse reads the message from data.
func (u *BaseTimeUpdate) Parse(data []byte) error {
	if len(data) < BaseTimeUpdateSize {
		return fmt.Errorf("%w: base time update needs %d bytes, got %d", errs.ErrInsufficientData, BaseTimeUpdateSize, len(data))
	}

	idx := wireEngine.Uint32(data)
	if idx > 1 {
		return fmt.Errorf("%w: base time index %d", errs.ErrInvalidResponse, idx)
	}

	u.ActiveIndex = idx
	u.Slots[0] = int64(wireEngine.Uint64(data[4:]))  //nolint:gosec
	u.Slots[1] = int64(wireEngine.Uint64(data[12:])) //nolint:gosec

	return nil
}

// AppendDataStartTime appends a DataStartTime payload.
func AppendDataStartTime(dst []byte, ticks int64) []byte {
	return wireEngine.AppendUint64(dst, uint64(ticks)) //nolint:gosec
}

// ParseDataStartTime reads a DataStartTime payload.
func ParseDataStartTime(data []byte) (int64, error) {
	if len(data) < DataStartTimeSize {
		return 0, fmt.Errorf("%w: data start time needs %d bytes, got %d", errs.ErrInsufficientData, DataStartTimeSize, len(data))
	}

	return int64(wireEngine.Uint64(data)), nil //nolint:gosec
}
