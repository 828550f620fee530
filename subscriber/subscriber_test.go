package subscriber

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tickstream/compact"
	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/publisher"
	"github.com/arloliu/tickstream/section"
	"github.com/arloliu/tickstream/signalindex"
	"github.com/arloliu/tickstream/tssc"
)

var testEpoch = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

type confirmations struct {
	mu  sync.Mutex
	seq []uint32
}

func (c *confirmations) SendCommand(code section.CommandCode, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code == section.CommandConfirmBufferBlock {
		seq, err := section.ParseConfirmation(payload)
		if err != nil {
			return err
		}
		c.seq = append(c.seq, seq)
	}

	return nil
}

func testKeys(n int) []measurement.Key {
	keys := make([]measurement.Key, n)
	for i := range keys {
		keys[i] = measurement.Key{SignalID: uuid.New(), Source: "PMU", ID: uint32(i)} //nolint:gosec
	}

	return keys
}

func testBatch(keys []measurement.Key, cycles int) []measurement.Measurement {
	ms := make([]measurement.Measurement, 0, len(keys)*cycles)
	base := measurement.FromTime(testEpoch)
	for c := range cycles {
		ts := base + measurement.Ticks(c)*166_667
		for i, key := range keys {
			flags := measurement.Normal
			if (c+i)%11 == 0 {
				flags = measurement.AlarmHigh | measurement.UserDefinedFlag1
			}
			ms = append(ms, measurement.New(key, 100+float64((c*7+i)%13)*0.25, ts, flags))
		}
	}

	return ms
}

// connect wires a publisher directly into a subscriber. Confirmations are
// queued because the publisher sends while holding its lock.
func connect(t *testing.T, cfg publisher.Config, subOpts ...Option) (*publisher.Publisher, *Subscriber, *[]measurement.Measurement, *confirmations) {
	t.Helper()

	var received []measurement.Measurement
	subOpts = append([]Option{
		WithIncludeTime(cfg.IncludeTime),
		WithMillisecondResolution(cfg.UseMillisecondResolution),
		WithMeasurementHandler(func(ms []measurement.Measurement) { received = append(received, ms...) }),
	}, subOpts...)

	conf := &confirmations{}
	sub, err := New(conf, subOpts...)
	require.NoError(t, err)

	pub, err := publisher.New(uuid.New(), publisher.TransportFunc(func(_ uuid.UUID, code section.ResponseCode, payload []byte) error {
		return sub.HandleResponse(code, payload)
	}), cfg, publisher.WithoutTimers(), publisher.WithClock(func() time.Time { return testEpoch }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	return pub, sub, &received, conf
}

func truncateMillis(ts measurement.Ticks) measurement.Ticks {
	return ts - ts%measurement.TicksPerMillisecond
}

func TestRoundTripPerMode(t *testing.T) {
	keys := testKeys(120)
	batch := testBatch(keys, 30)

	for _, mode := range []format.CompressionMode{format.ModeNone, format.ModeCompact, format.ModePattern, format.ModeTSSC} {
		for _, ms := range []bool{false, true} {
			name := mode.String()
			if ms {
				name += "/milliseconds"
			}

			t.Run(name, func(t *testing.T) {
				cfg := publisher.DefaultConfig()
				cfg.CompressionMode = mode
				cfg.MaxPacketSize = 4000
				cfg.UseMillisecondResolution = ms

				pub, sub, received, _ := connect(t, cfg)
				require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))
				require.NoError(t, pub.Publish(batch))

				require.Len(t, *received, len(batch))
				for i, got := range *received {
					want := batch[i]
					require.Equal(t, want.Key.SignalID, got.SignalID)
					require.Equal(t, float32(want.Value), float32(got.Value))

					switch {
					case mode == format.ModeNone:
						require.Equal(t, want, got)
					case mode == format.ModeTSSC:
						require.Equal(t, want.Timestamp, got.Timestamp)
						require.Equal(t, want.Flags, got.Flags)
					case ms:
						// pattern packets keep full ticks, compact fallbacks keep milliseconds
						require.Equal(t, truncateMillis(want.Timestamp), truncateMillis(got.Timestamp))
						require.Equal(t, compact.MapToCompact(want.Flags), compact.MapToCompact(got.Flags))
					default:
						require.Equal(t, want.Timestamp, got.Timestamp)
						require.Equal(t, compact.MapToCompact(want.Flags), compact.MapToCompact(got.Flags))
					}
				}

				stats := sub.Stats()
				require.Equal(t, int64(len(batch)), stats.MeasurementsReceived)
				require.Zero(t, stats.DecodeErrors)
				require.Equal(t, pub.Stats().PacketsSent, stats.PacketsReceived)
			})
		}
	}
}

func TestDeltaSessionSurvivesResubscribe(t *testing.T) {
	cfg := publisher.DefaultConfig()
	cfg.CompressionMode = format.ModeTSSC

	pub, _, received, _ := connect(t, cfg)
	keys := testKeys(20)

	require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))
	require.NoError(t, pub.Publish(testBatch(keys, 3)))

	*received = nil
	require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys[5:]}, nil))
	batch := testBatch(keys[5:], 3)
	require.NoError(t, pub.Publish(batch))
	require.Len(t, *received, len(batch))
	for i := range batch {
		require.Equal(t, batch[i].Key, (*received)[i].Key)
	}
}

func TestBufferBlockDeliveryOrder(t *testing.T) {
	keys := testKeys(2)
	cache, err := signalindex.Build(uuid.New(), keys, nil)
	require.NoError(t, err)
	image, err := cache.MarshalBinary()
	require.NoError(t, err)

	conf := &confirmations{}
	var delivered []BufferBlock
	sub, err := New(conf, WithBufferBlockHandler(func(b BufferBlock) { delivered = append(delivered, b) }))
	require.NoError(t, err)

	block := func(seq uint32, index uint16) []byte {
		payload := section.BufferBlockHeader{Sequence: seq, SignalIndex: index}.Append(nil)
		return append(payload, byte(seq))
	}

	require.ErrorIs(t, sub.HandleResponse(section.ResponseBufferBlock, block(0, 0)), errs.ErrNotSubscribed)
	require.NoError(t, sub.HandleResponse(section.ResponseUpdateSignalIndexCache, image))

	for _, seq := range []uint32{1, 0, 3, 1, 2, 0} {
		require.NoError(t, sub.HandleResponse(section.ResponseBufferBlock, block(seq, uint16(seq%2)))) //nolint:gosec
	}

	require.Len(t, delivered, 4)
	for i, b := range delivered {
		require.Equal(t, uint32(i), b.Sequence) //nolint:gosec
		require.Equal(t, keys[i%2], b.Key)
		require.Equal(t, []byte{byte(i)}, b.Payload)
	}
	require.Equal(t, []uint32{1, 0, 3, 1, 2, 0}, conf.seq)

	stats := sub.Stats()
	require.Equal(t, int64(4), stats.BufferBlocksReceived)
	require.Equal(t, int64(2), stats.DuplicateBufferBlocks)

	require.ErrorIs(t, sub.HandleResponse(section.ResponseBufferBlock, block(4, 9)), errs.ErrSignalNotFound)
}

func TestBufferBlocksEndToEnd(t *testing.T) {
	cfg := publisher.DefaultConfig()

	var delivered []BufferBlock
	pub, _, _, conf := connect(t, cfg, WithBufferBlockHandler(func(b BufferBlock) { delivered = append(delivered, b) }))

	keys := testKeys(1)
	require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))
	for i := range 5 {
		require.NoError(t, pub.Publish([]measurement.Measurement{measurement.NewBufferBlock(keys[0], []byte{byte(i)})}))
	}
	require.Equal(t, 5, pub.PendingBufferBlocks())

	require.Len(t, delivered, 5)
	for i, b := range delivered {
		require.Equal(t, []byte{byte(i)}, b.Payload)
	}

	for _, seq := range conf.seq {
		pub.ConfirmBufferBlock(seq)
	}
	require.Zero(t, pub.PendingBufferBlocks())
}

func TestSynchronizedFramesWithoutTime(t *testing.T) {
	cfg := publisher.DefaultConfig()
	cfg.CompressionMode = format.ModeCompact
	cfg.IncludeTime = false

	pub, _, received, _ := connect(t, cfg)
	keys := testKeys(4)
	require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))

	frame := measurement.FromTime(testEpoch.Add(time.Minute))
	require.NoError(t, pub.PublishFrame(frame, testBatch(keys, 1)))

	require.Len(t, *received, 4)
	for _, m := range *received {
		require.Equal(t, frame, m.Timestamp)
	}
}

func TestDataStartTimeAndCompletion(t *testing.T) {
	var (
		start    measurement.Ticks
		complete bool
	)
	cfg := publisher.DefaultConfig()
	pub, _, _, _ := connect(t, cfg,
		WithDataStartTimeHandler(func(ts measurement.Ticks) { start = ts }),
		WithProcessingCompleteHandler(func() { complete = true }),
	)

	keys := testKeys(2)
	batch := testBatch(keys, 1)
	require.NoError(t, pub.Subscribe(publisher.Request{Keys: keys}, nil))
	require.NoError(t, pub.Publish(batch))
	require.NoError(t, pub.NotifyProcessingComplete())

	require.Equal(t, batch[0].Timestamp, start)
	require.True(t, complete)
}

func TestRejectedPackets(t *testing.T) {
	keys := testKeys(1)
	cache, err := signalindex.Build(uuid.New(), keys, nil)
	require.NoError(t, err)
	image, err := cache.MarshalBinary()
	require.NoError(t, err)

	sub, err := New(&confirmations{})
	require.NoError(t, err)

	delta := section.PacketHeader{Flags: section.FlagCompressed.WithCompressionOrder(!endian.IsNativeLittleEndian()), Count: 1}.Append(nil)
	require.ErrorIs(t, sub.HandleResponse(section.ResponseDataPacket, delta), errs.ErrNotSubscribed)

	require.NoError(t, sub.HandleResponse(section.ResponseUpdateSignalIndexCache, image))
	require.Equal(t, 1, sub.Cache().Len())

	require.ErrorIs(t, sub.HandleResponse(section.ResponseDataPacket, delta), errs.ErrUnsupportedByteOrder)

	truncated := section.PacketHeader{Flags: section.FlagCompact, Count: 1}.Append(nil)
	truncated = append(truncated, make([]byte, compact.FixedLength)...)
	require.ErrorIs(t, sub.HandleResponse(section.ResponseDataPacket, truncated), errs.ErrInsufficientData)

	malformed := section.PacketHeader{Flags: section.FlagCompressed.WithCompressionOrder(endian.IsNativeLittleEndian()), Count: 1}.Append(nil)
	malformed = append(malformed, 0x06)
	require.ErrorIs(t, sub.HandleResponse(section.ResponseDataPacket, malformed), errs.ErrMalformedBlock)

	require.ErrorIs(t, sub.HandleResponse(section.ResponseUpdateSignalIndexCache, image[:10]), errs.ErrInsufficientData)
	require.ErrorIs(t, sub.HandleResponse(section.ResponseUpdateBaseTimes, []byte{0}), errs.ErrInsufficientData)

	require.Equal(t, int64(6), sub.Stats().DecodeErrors)
}

func TestPacketCountMismatch(t *testing.T) {
	keys := testKeys(2)
	cache, err := signalindex.Build(uuid.New(), keys, nil)
	require.NoError(t, err)
	image, err := cache.MarshalBinary()
	require.NoError(t, err)

	ts := measurement.FromTime(testEpoch)
	ms := []measurement.Measurement{
		{Key: keys[0], Value: 1, Multiplier: 1, Timestamp: ts},
		{Key: keys[1], Value: 2, Multiplier: 1, Timestamp: ts},
	}

	codec, err := compact.NewCodec(cache)
	require.NoError(t, err)
	var compactBody, fullBody []byte
	for _, m := range ms {
		compactBody, err = codec.Append(compactBody, m)
		require.NoError(t, err)
		fullBody, err = measurement.AppendFull(fullBody, m)
		require.NoError(t, err)
	}

	patternBody, ok, err := codec.AppendPattern(nil, ms, format.CompressionNone, math.MaxInt)
	require.NoError(t, err)
	require.True(t, ok)

	enc, err := tssc.NewEncoder(4096)
	require.NoError(t, err)
	for i, m := range ms {
		require.NoError(t, enc.AddMeasurement(uint16(i), int64(m.Timestamp), 0, float32(m.Value))) //nolint:gosec
	}
	deltaBody := enc.AppendTo(nil)

	native := endian.IsNativeLittleEndian()
	compressed := section.FlagCompressed.WithCompressionOrder(native)
	pattern := (section.FlagCompressed | section.FlagCompact).WithCompressionOrder(native)

	tests := []struct {
		name  string
		flags section.DataPacketFlags
		count uint32
		body  []byte
	}{
		{"compact huge count empty body", section.FlagCompact, math.MaxUint32, nil},
		{"compact count too large", section.FlagCompact, 3, compactBody},
		{"compact count too small", section.FlagCompact, 1, compactBody},
		{"full huge count empty body", 0, math.MaxUint32, nil},
		{"full count too large", 0, 3, fullBody},
		{"full count too small", 0, 1, fullBody},
		{"delta huge count empty body", compressed, math.MaxUint32, nil},
		{"delta count too large", compressed, 3, deltaBody},
		{"delta count too small", compressed, 1, deltaBody},
		{"pattern huge count", pattern, math.MaxUint32, patternBody},
		{"pattern count too small", pattern, 1, patternBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received []measurement.Measurement
			sub, err := New(&confirmations{}, WithMeasurementHandler(func(ms []measurement.Measurement) {
				received = append(received, ms...)
			}))
			require.NoError(t, err)
			require.NoError(t, sub.HandleResponse(section.ResponseUpdateSignalIndexCache, image))

			packet := section.PacketHeader{Flags: tt.flags, Count: tt.count}.Append(nil)
			packet = append(packet, tt.body...)

			require.ErrorIs(t, sub.HandleResponse(section.ResponseDataPacket, packet), errs.ErrLengthMismatch)
			require.Empty(t, received)
			require.Equal(t, int64(1), sub.Stats().DecodeErrors)
			require.Zero(t, sub.Stats().PacketsReceived)
		})
	}
}

func TestBufferBlockWindow(t *testing.T) {
	_, err := New(&confirmations{}, WithBufferBlockWindow(0))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	keys := testKeys(1)
	cache, err := signalindex.Build(uuid.New(), keys, nil)
	require.NoError(t, err)
	image, err := cache.MarshalBinary()
	require.NoError(t, err)

	conf := &confirmations{}
	var delivered []uint32
	sub, err := New(conf,
		WithBufferBlockWindow(4),
		WithBufferBlockHandler(func(b BufferBlock) { delivered = append(delivered, b.Sequence) }),
	)
	require.NoError(t, err)
	require.NoError(t, sub.HandleResponse(section.ResponseUpdateSignalIndexCache, image))

	block := func(seq uint32) []byte {
		return section.BufferBlockHeader{Sequence: seq}.Append(nil)
	}

	for _, seq := range []uint32{3, 4, math.MaxUint32} {
		require.NoError(t, sub.HandleResponse(section.ResponseBufferBlock, block(seq)))
	}
	require.Empty(t, delivered)
	require.Equal(t, []uint32{3}, conf.seq)
	require.Equal(t, int64(2), sub.Stats().DroppedBufferBlocks)

	// Retransmissions of the dropped block are accepted once the window reaches it.
	for _, seq := range []uint32{0, 1, 2, 4} {
		require.NoError(t, sub.HandleResponse(section.ResponseBufferBlock, block(seq)))
	}
	require.Equal(t, []uint32{0, 1, 2, 3, 4}, delivered)
	require.Equal(t, []uint32{3, 0, 1, 2, 4}, conf.seq)
	require.Equal(t, int64(2), sub.Stats().DroppedBufferBlocks)
}
