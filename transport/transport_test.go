package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/publisher"
	"github.com/arloliu/tickstream/section"
	"github.com/arloliu/tickstream/subscriber"
)

var testEpoch = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func testKeys(n int) []measurement.Key {
	keys := make([]measurement.Key, n)
	for i := range keys {
		keys[i] = measurement.Key{SignalID: uuid.New(), Source: "SIM", ID: uint32(i)} //nolint:gosec
	}

	return keys
}

func testBatch(keys []measurement.Key, cycles int) []measurement.Measurement {
	ms := make([]measurement.Measurement, 0, len(keys)*cycles)
	base := measurement.FromTime(testEpoch)
	for c := range cycles {
		ts := base + measurement.Ticks(c)*measurement.TicksPerMillisecond*20
		for i, key := range keys {
			ms = append(ms, measurement.New(key, float64(i)+float64(c%4)*0.5, ts, measurement.Normal))
		}
	}

	return ms
}

func TestResponseFraming(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, WriteResponse(&stream, section.ResponseDataPacket, []byte{1, 2, 3}))
	require.NoError(t, WriteResponse(&stream, section.ResponseBufferBlock, []byte{4}))
	require.NoError(t, WriteResponse(&stream, section.ResponseProcessingComplete, nil))
	require.Equal(t, 3*section.ResponseHeaderSize+4, stream.Len())

	buf := make([]byte, 0, 16)
	header, payload, err := ReadResponse(&stream, buf)
	require.NoError(t, err)
	require.Equal(t, section.ResponseDataPacket, header.Code)
	require.Equal(t, section.CommandSubscribe, header.InResponseTo)
	require.Equal(t, []byte{1, 2, 3}, payload)

	header, payload, err = ReadResponse(&stream, buf)
	require.NoError(t, err)
	require.Equal(t, section.ResponseBufferBlock, header.Code)
	require.Equal(t, section.CommandConfirmBufferBlock, header.InResponseTo)
	require.Equal(t, []byte{4}, payload)

	header, payload, err = ReadResponse(&stream, buf)
	require.NoError(t, err)
	require.Equal(t, section.ResponseProcessingComplete, header.Code)
	require.Empty(t, payload)

	_, _, err = ReadResponse(&stream, buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestFramingErrors(t *testing.T) {
	t.Run("truncated header", func(t *testing.T) {
		_, _, err := ReadResponse(bytes.NewReader([]byte{0x82, 0x02, 0}), nil)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("truncated payload", func(t *testing.T) {
		frame := section.AppendFrame(nil, section.ResponseDataPacket, section.CommandSubscribe, []byte{1, 2, 3, 4})
		_, _, err := ReadResponse(bytes.NewReader(frame[:len(frame)-2]), nil)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)

		_, _, err = ReadResponse(bytes.NewReader(frame[:section.ResponseHeaderSize]), nil)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("oversized payload", func(t *testing.T) {
		header := section.NewResponseHeader(section.ResponseDataPacket, section.CommandSubscribe, MaxFramePayload+1)
		_, _, err := ReadResponse(bytes.NewReader(header.Bytes()), nil)
		require.ErrorIs(t, err, errs.ErrLengthMismatch)
	})

	t.Run("writer failure", func(t *testing.T) {
		r, w := io.Pipe()
		require.NoError(t, r.Close())
		require.ErrorIs(t, WriteResponse(w, section.ResponseDataPacket, []byte{1}), io.ErrClosedPipe)
		require.ErrorIs(t, WriteCommand(w, section.CommandConfirmBufferBlock, []byte{1}), io.ErrClosedPipe)
	})
}

func TestCommandFraming(t *testing.T) {
	var stream bytes.Buffer
	writer := NewCommandWriter(&stream)
	require.NoError(t, writer.SendCommand(section.CommandConfirmBufferBlock, section.AppendConfirmation(nil, 41)))
	require.NoError(t, writer.SendCommand(section.CommandUnsubscribe, nil))

	header, payload, err := ReadCommand(&stream, nil)
	require.NoError(t, err)
	require.Equal(t, section.CommandConfirmBufferBlock, header.Code)
	seq, err := section.ParseConfirmation(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(41), seq)

	header, payload, err = ReadCommand(&stream, nil)
	require.NoError(t, err)
	require.Equal(t, section.CommandUnsubscribe, header.Code)
	require.Empty(t, payload)

	_, _, err = ReadCommand(&stream, nil)
	require.ErrorIs(t, err, io.EOF)
}

// TestStreamRoundTrip publishes into a byte stream, decodes it, and feeds the
// confirmations back through a second stream.
func TestStreamRoundTrip(t *testing.T) {
	for _, mode := range []format.CompressionMode{format.ModeNone, format.ModeCompact, format.ModePattern, format.ModeTSSC} {
		t.Run(mode.String(), func(t *testing.T) {
			var responses, commands bytes.Buffer

			cfg := publisher.DefaultConfig()
			cfg.CompressionMode = mode
			pub, err := publisher.New(uuid.New(), NewStreamTransport(&responses), cfg,
				publisher.WithoutTimers(), publisher.WithClock(func() time.Time { return testEpoch }))
			require.NoError(t, err)
			defer pub.Close()

			var (
				received []measurement.Measurement
				blocks   int
			)
			sub, err := subscriber.New(NewCommandWriter(&commands),
				subscriber.WithMeasurementHandler(func(ms []measurement.Measurement) { received = append(received, ms...) }),
				subscriber.WithBufferBlockHandler(func(subscriber.BufferBlock) { blocks++ }),
			)
			require.NoError(t, err)

			keys := testKeys(50)
			batch := testBatch(keys, 10)
			require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))
			require.NoError(t, pub.Publish(batch))
			require.NoError(t, pub.Publish([]measurement.Measurement{measurement.NewBufferBlock(keys[3], []byte("blob"))}))
			require.Equal(t, 1, pub.PendingBufferBlocks())

			require.NoError(t, PumpResponses(&responses, sub))
			require.Len(t, received, len(batch))
			require.Equal(t, 1, blocks)
			require.Zero(t, sub.Stats().DecodeErrors)

			require.NoError(t, PumpCommands(&commands, pub))
			require.Zero(t, pub.PendingBufferBlocks())
		})
	}
}

func TestPumpStopsOnBrokenFrame(t *testing.T) {
	frame := section.AppendFrame(nil, section.ResponseDataStartTime, section.CommandSubscribe, section.AppendDataStartTime(nil, 5))
	stream := append(append([]byte(nil), frame...), frame[:4]...)

	var starts int
	sub, err := subscriber.New(subscriber.CommandSenderFunc(func(section.CommandCode, []byte) error { return nil }),
		subscriber.WithDataStartTimeHandler(func(measurement.Ticks) { starts++ }))
	require.NoError(t, err)

	require.ErrorIs(t, PumpResponses(bytes.NewReader(stream), sub), io.ErrUnexpectedEOF)
	require.Equal(t, 1, starts)
}

func newLoopbackPair(t *testing.T, cfg publisher.Config, opts ...subscriber.Option) (*Loopback, *publisher.Publisher, *subscriber.Subscriber) {
	t.Helper()

	lb, err := NewLoopback()
	require.NoError(t, err)
	t.Cleanup(func() { _ = lb.Close() })

	pub, err := publisher.New(uuid.New(), lb, cfg, publisher.WithoutTimers(), publisher.WithClock(func() time.Time { return testEpoch }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	sub, err := subscriber.New(lb, opts...)
	require.NoError(t, err)

	require.NoError(t, lb.Start(context.Background(), sub, pub))

	return lb, pub, sub
}

func TestLoopback(t *testing.T) {
	cfg := publisher.DefaultConfig()
	cfg.CompressionMode = format.ModeCompact

	var (
		mu       sync.Mutex
		received []measurement.Measurement
		blocks   []subscriber.BufferBlock
	)
	lb, pub, sub := newLoopbackPair(t, cfg,
		subscriber.WithMeasurementHandler(func(ms []measurement.Measurement) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, ms...)
		}),
		subscriber.WithBufferBlockHandler(func(b subscriber.BufferBlock) {
			mu.Lock()
			defer mu.Unlock()
			blocks = append(blocks, b)
		}),
	)

	keys := testKeys(200)
	batch := testBatch(keys, 25)
	require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))
	require.NoError(t, pub.Publish(batch))
	for i := range 10 {
		require.NoError(t, pub.Publish([]measurement.Measurement{measurement.NewBufferBlock(keys[i], []byte{byte(i)})}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, lb.Flush(ctx))

	mu.Lock()
	require.Len(t, received, len(batch))
	require.Len(t, blocks, 10)
	for i, b := range blocks {
		require.Equal(t, uint32(i), b.Sequence) //nolint:gosec
		require.Equal(t, keys[i], b.Key)
	}
	mu.Unlock()

	require.Zero(t, pub.PendingBufferBlocks())
	require.Zero(t, sub.Stats().DecodeErrors)
	require.Equal(t, cfg.CompressionMode, pub.Mode())
}

func TestLoopbackLifecycle(t *testing.T) {
	handlerErr := errors.New("handler failed")

	var (
		mu       sync.Mutex
		reported []error
	)
	lb, err := NewLoopback(WithErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}))
	require.NoError(t, err)

	_, err = NewLoopback(WithLogger(nil))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	// Frames sent before Start wait in the queue.
	require.NoError(t, lb.Send(uuid.Nil, section.ResponseProcessingComplete, nil))

	responses := subscriberFunc(func(section.ResponseCode, []byte) error { return handlerErr })
	commands := CommandHandlerFunc(func(section.CommandCode, []byte) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, lb.Start(ctx, responses, commands))
	require.ErrorIs(t, lb.Start(ctx, responses, commands), errs.ErrInvalidConfig)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	require.NoError(t, lb.Flush(flushCtx))

	mu.Lock()
	require.Len(t, reported, 1)
	require.ErrorIs(t, reported[0], handlerErr)
	mu.Unlock()

	cancel()
	require.Eventually(t, func() bool {
		return errors.Is(lb.SendCommand(section.CommandUnsubscribe, nil), io.ErrClosedPipe)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, lb.Close())
	require.ErrorIs(t, lb.Send(uuid.Nil, section.ResponseDataPacket, nil), io.ErrClosedPipe)
}

type subscriberFunc func(code section.ResponseCode, payload []byte) error

func (f subscriberFunc) HandleResponse(code section.ResponseCode, payload []byte) error {
	return f(code, payload)
}
