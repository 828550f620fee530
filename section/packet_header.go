package section

import (
	"fmt"

	"github.com/arloliu/tickstream/errs"
)

// PacketHeader precedes the records of a data packet.
type PacketHeader struct {
	Flags DataPacketFlags
	// FrameTimestamp is encoded only when Flags has FlagSynchronized.
	FrameTimestamp int64
	Count          uint32
}

// Size returns the encoded size of the header.
func (h PacketHeader) Size() int {
	if h.Flags.IsSynchronized() {
		return DataPacketHeaderSize + FrameTimestampSize
	}

	return DataPacketHeaderSize
}

// Append appends the header to dst.
func (h PacketHeader) Append(dst []byte) []byte {
	dst = append(dst, byte(h.Flags))
	if h.Flags.IsSynchronized() {
		dst = wireEngine.AppendUint64(dst, uint64(h.FrameTimestamp)) //nolint:gosec
	}

	return wireEngine.AppendUint32(dst, h.Count)
}

// Parse reads the header from data and returns the number of bytes consumed.
func (h *PacketHeader) Parse(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: empty data packet", errs.ErrInsufficientData)
	}

	flags := DataPacketFlags(data[0])
	size := PacketHeader{Flags: flags}.Size()
	if len(data) < size {
		return 0, fmt.Errorf("%w: data packet header needs %d bytes, got %d", errs.ErrInsufficientData, size, len(data))
	}

	offset := 1
	h.Flags = flags
	h.FrameTimestamp = 0
	if flags.IsSynchronized() {
		h.FrameTimestamp = int64(wireEngine.Uint64(data[offset:])) //nolint:gosec
		offset += FrameTimestampSize
	}
	h.Count = wireEngine.Uint32(data[offset:])

	return size, nil
}

// BufferBlockHeader precedes the opaque bytes of a buffer block.
type BufferBlockHeader struct {
	Sequence    uint32
	SignalIndex uint16
}

// Append appends the header to dst.
func (h BufferBlockHeader) Append(dst []byte) []byte {
	dst = wireEngine.AppendUint32(dst, h.Sequence)
	return wireEngine.AppendUint16(dst, h.SignalIndex)
}

// Parse reads the header from data; the payload starts at BufferBlockHeaderSize.
func (h *BufferBlockHeader) Parse(data []byte) error {
	if len(data) < BufferBlockHeaderSize {
		return fmt.Errorf("%w: buffer block header needs %d bytes, got %d", errs.ErrInsufficientData, BufferBlockHeaderSize, len(data))
	}

	h.Sequence = wireEngine.Uint32(data)
	h.SignalIndex = wireEngine.Uint16(data[4:])

	return nil
}

// AppendConfirmation appends a ConfirmBufferBlock command payload.
func AppendConfirmation(dst []byte, sequence uint32) []byte {
	return wireEngine.AppendUint32(dst, sequence)
}

// ParseConfirmation reads a ConfirmBufferBlock command payload.
func ParseConfirmation(data []byte) (uint32, error) {
	if len(data) < ConfirmationSize {
		return 0, fmt.Errorf("%w: confirmation needs %d bytes, got %d", errs.ErrInsufficientData, ConfirmationSize, len(data))
	}

	return wireEngine.Uint32(data), nil
}
