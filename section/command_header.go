package section

import (
	"fmt"

	"github.com/arloliu/tickstream/errs"
)

// CommandHeader prefixes every command a subscriber sends.
type CommandHeader struct {
	Code   CommandCode
	Length uint32
}

// Append appends the header to dst.
func (h CommandHeader) Append(dst []byte) []byte {
	dst = append(dst, byte(h.Code))
	return wireEngine.AppendUint32(dst, h.Length)
}

// Parse reads the header from the first CommandHeaderSize bytes of data.
func (h *CommandHeader) Parse(data []byte) error {
	if len(data) < CommandHeaderSize {
		return fmt.Errorf("%w: command header needs %d bytes, got %d", errs.ErrInsufficientData, CommandHeaderSize, len(data))
	}

	h.Code = CommandCode(data[0])
	h.Length = wireEngine.Uint32(data[1:5])

	return nil
}

// AppendCommandFrame appends a complete command frame to dst.
func AppendCommandFrame(dst []byte, code CommandCode, payload []byte) []byte {
	dst = CommandHeader{Code: code, Length: uint32(len(payload))}.Append(dst) //nolint:gosec
	return append(dst, payload...)
}
