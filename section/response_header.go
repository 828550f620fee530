package section

import (
	"fmt"

	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
)

var wireEngine = endian.GetBigEndianEngine()

// ResponseHeader prefixes every message a publisher sends.
type ResponseHeader struct {
	Code         ResponseCode
	InResponseTo CommandCode
	Length       uint32
}

// NewResponseHeader returns the header framing a payload of length bytes.
func NewResponseHeader(code ResponseCode, inResponseTo CommandCode, length int) ResponseHeader {
	return ResponseHeader{Code: code, InResponseTo: inResponseTo, Length: uint32(length)} //nolint:gosec
}

// Bytes returns the 6-byte encoding of the header.
func (h ResponseHeader) Bytes() []byte {
	return h.Append(make([]byte, 0, ResponseHeaderSize))
}

// Append appends the header to dst.
func (h ResponseHeader) Append(dst []byte) []byte {
	dst = append(dst, byte(h.Code), byte(h.InResponseTo))
	return wireEngine.AppendUint32(dst, h.Length)
}

// Parse reads the header from the first ResponseHeaderSize bytes of data.
func (h *ResponseHeader) Parse(data []byte) error {
	if len(data) < ResponseHeaderSize {
		return fmt.Errorf("%w: response header needs %d bytes, got %d", errs.ErrInsufficientData, ResponseHeaderSize, len(data))
	}

	h.Code = ResponseCode(data[0])
	h.InResponseTo = CommandCode(data[1])
	h.Length = wireEngine.Uint32(data[2:6])

	return nil
}

// AppendFrame appends a complete response frame to dst.
func AppendFrame(dst []byte, code ResponseCode, inResponseTo CommandCode, payload []byte) []byte {
	dst = NewResponseHeader(code, inResponseTo, len(payload)).Append(dst)
	return append(dst, payload...)
}

// CommandFor returns the command a response code answers, used as InResponseTo.
func CommandFor(code ResponseCode) CommandCode {
	switch code {
	case ResponseBufferBlock:
		return CommandConfirmBufferBlock
	default:
		return CommandSubscribe
	}
}
