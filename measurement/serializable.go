package measurement

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
)

// FullFixedLength is the size of the full record without its two strings:
// key id, source length, signal id, tag length, value, adder, multiplier,
// timestamp and flags.
const FullFixedLength = 4 + 4 + 16 + 4 + 8 + 8 + 8 + 8 + 4

// FullLength returns the encoded size of m as a full record.
func FullLength(m Measurement) int {
	return FullFixedLength + len(m.Source) + len(m.TagName)
}

// AppendFull appends the full serializable record of m to dst.
// All fields are big-endian; strings are length-prefixed UTF-8.
func AppendFull(dst []byte, m Measurement) ([]byte, error) {
	if !utf8.ValidString(m.Source) || !utf8.ValidString(m.TagName) {
		return dst, fmt.Errorf("measurement %s: strings must be valid UTF-8", m.SignalID)
	}

	be := endian.GetBigEndianEngine()
	dst = be.AppendUint32(dst, m.ID)
	dst = be.AppendUint32(dst, uint32(len(m.Source))) //nolint:gosec
	dst = append(dst, m.Source...)
	dst = append(dst, m.SignalID[:]...)
	dst = be.AppendUint32(dst, uint32(len(m.TagName))) //nolint:gosec
	dst = append(dst, m.TagName...)
	dst = be.AppendUint64(dst, math.Float64bits(m.Value))
	dst = be.AppendUint64(dst, math.Float64bits(m.Adder))
	dst = be.AppendUint64(dst, math.Float64bits(m.Multiplier))
	dst = be.AppendUint64(dst, uint64(m.Timestamp)) //nolint:gosec
	dst = be.AppendUint32(dst, uint32(m.Flags))

	return dst, nil
}

// ParseFull decodes one full record from the start of buf and returns the
// number of bytes consumed.
func ParseFull(buf []byte) (Measurement, int, error) {
	var m Measurement
	be := endian.GetBigEndianEngine()

	if len(buf) < FullFixedLength {
		return m, 0, fmt.Errorf("full record: %w", errs.ErrInsufficientData)
	}

	pos := 0
	m.ID = be.Uint32(buf[pos:])
	pos += 4

	srcLen := int(be.Uint32(buf[pos:]))
	pos += 4
	if srcLen < 0 || len(buf)-pos < srcLen+FullFixedLength-8 {
		return m, 0, fmt.Errorf("full record source length %d: %w", srcLen, errs.ErrLengthMismatch)
	}
	m.Source = string(buf[pos : pos+srcLen])
	pos += srcLen

	m.SignalID = uuid.UUID(buf[pos : pos+16])
	pos += 16

	tagLen := int(be.Uint32(buf[pos:]))
	pos += 4
	if tagLen < 0 || len(buf)-pos < tagLen+8*4+4 {
		return m, 0, fmt.Errorf("full record tag length %d: %w", tagLen, errs.ErrLengthMismatch)
	}
	m.TagName = string(buf[pos : pos+tagLen])
	pos += tagLen

	m.Value = math.Float64frombits(be.Uint64(buf[pos:]))
	pos += 8
	m.Adder = math.Float64frombits(be.Uint64(buf[pos:]))
	pos += 8
	m.Multiplier = math.Float64frombits(be.Uint64(buf[pos:]))
	pos += 8
	m.Timestamp = Ticks(be.Uint64(buf[pos:])) //nolint:gosec
	pos += 8
	m.Flags = StateFlags(be.Uint32(buf[pos:]))
	pos += 4

	return m, pos, nil
}
