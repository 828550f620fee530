package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/pool"
	"github.com/arloliu/tickstream/section"
)

// MaxFramePayload bounds the payload length accepted by the readers. A full
// signal index cache is the largest message and stays well below it.
const MaxFramePayload = 64 << 20

// ResponseHandler consumes response payloads. *subscriber.Subscriber implements it.
type ResponseHandler interface {
	HandleResponse(code section.ResponseCode, payload []byte) error
}

// CommandHandler consumes command payloads.
type CommandHandler interface {
	HandleCommand(code section.CommandCode, payload []byte) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(code section.CommandCode, payload []byte) error

// HandleCommand calls f.
func (f CommandHandlerFunc) HandleCommand(code section.CommandCode, payload []byte) error {
	return f(code, payload)
}

// WriteResponse writes one response frame to w in a single Write call.
func WriteResponse(w io.Writer, code section.ResponseCode, payload []byte) error {
	buf := pool.GetPacketBuffer()
	defer pool.PutPacketBuffer(buf)

	buf.B = section.AppendFrame(buf.B, code, section.CommandFor(code), payload)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s frame: %w", code, err)
	}

	return nil
}

// ReadResponse reads one response frame from r. The payload is read into buf
// when it fits, so it is only valid until the next call reusing buf.
func ReadResponse(r io.Reader, buf []byte) (section.ResponseHeader, []byte, error) {
	var (
		header section.ResponseHeader
		raw    [section.ResponseHeaderSize]byte
	)
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return header, nil, err
	}
	if err := header.Parse(raw[:]); err != nil {
		return header, nil, err
	}

	payload, err := readPayload(r, buf, header.Length)
	if err != nil {
		return header, nil, fmt.Errorf("%s frame: %w", header.Code, err)
	}

	return header, payload, nil
}

// WriteCommand writes one command frame to w in a single Write call.
func WriteCommand(w io.Writer, code section.CommandCode, payload []byte) error {
	buf := pool.GetPacketBuffer()
	defer pool.PutPacketBuffer(buf)

	buf.B = section.AppendCommandFrame(buf.B, code, payload)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s command: %w", code, err)
	}

	return nil
}

// ReadCommand reads one command frame from r, reusing buf like ReadResponse.
func ReadCommand(r io.Reader, buf []byte) (section.CommandHeader, []byte, error) {
	var (
		header section.CommandHeader
		raw    [section.CommandHeaderSize]byte
	)
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return header, nil, err
	}
	if err := header.Parse(raw[:]); err != nil {
		return header, nil, err
	}

	payload, err := readPayload(r, buf, header.Length)
	if err != nil {
		return header, nil, fmt.Errorf("%s command: %w", header.Code, err)
	}

	return header, payload, nil
}

func readPayload(r io.Reader, buf []byte, length uint32) ([]byte, error) {
	if length > MaxFramePayload {
		return nil, fmt.Errorf("payload length %d: %w", length, errs.ErrLengthMismatch)
	}

	n := int(length)
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]

	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return nil, err
	}

	return buf, nil
}

// PumpResponses reads response frames from r and hands each to h until r is
// exhausted. It returns nil on a clean end of stream. Handler errors do not
// stop the stream.
func PumpResponses(r io.Reader, h ResponseHandler) error {
	var buf []byte
	for {
		header, payload, err := ReadResponse(r, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}
		buf = payload[:0]

		_ = h.HandleResponse(header.Code, payload)
	}
}

// PumpCommands reads command frames from r and hands each to h until r is
// exhausted, the same way PumpResponses does.
func PumpCommands(r io.Reader, h CommandHandler) error {
	var buf []byte
	for {
		header, payload, err := ReadCommand(r, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}
		buf = payload[:0]

		_ = h.HandleCommand(header.Code, payload)
	}
}

// StreamTransport frames publisher responses onto one writer. It implements
// publisher.Transport and is safe for concurrent use.
type StreamTransport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamTransport returns a transport writing to w.
func NewStreamTransport(w io.Writer) *StreamTransport {
	return &StreamTransport{w: w}
}

// Send writes one response frame. The connection id is implied by the writer.
func (t *StreamTransport) Send(_ uuid.UUID, code section.ResponseCode, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return WriteResponse(t.w, code, payload)
}

// CommandWriter frames subscriber commands onto one writer. It implements
// subscriber.CommandSender and is safe for concurrent use.
type CommandWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewCommandWriter returns a command sender writing to w.
func NewCommandWriter(w io.Writer) *CommandWriter {
	return &CommandWriter{w: w}
}

// SendCommand writes one command frame.
func (c *CommandWriter) SendCommand(code section.CommandCode, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return WriteCommand(c.w, code, payload)
}
