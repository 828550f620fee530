package subscriber

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/compact"
	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/options"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/section"
	"github.com/arloliu/tickstream/signalindex"
	"github.com/arloliu/tickstream/tssc"
)

// CommandSender sends a command back to the publisher.
type CommandSender interface {
	SendCommand(code section.CommandCode, payload []byte) error
}

// CommandSenderFunc adapts a function to CommandSender.
type CommandSenderFunc func(code section.CommandCode, payload []byte) error

// SendCommand calls f.
func (f CommandSenderFunc) SendCommand(code section.CommandCode, payload []byte) error {
	return f(code, payload)
}

// DefaultBufferBlockWindow is the default number of sequence numbers, counted
// from the next expected one, within which buffer blocks are accepted.
const DefaultBufferBlockWindow = 1024

// BufferBlock is one delivered buffer block.
type BufferBlock struct {
	Sequence uint32
	Key      measurement.Key
	Payload  []byte
}

// Stats counts receiving activity.
type Stats struct {
	PacketsReceived       int64
	MeasurementsReceived  int64
	BufferBlocksReceived  int64
	DuplicateBufferBlocks int64
	DroppedBufferBlocks   int64
	DecodeErrors          int64
}

// Subscriber decodes the responses of one publishing connection. It is safe
// for concurrent use, though responses must be handed over in arrival order.
type Subscriber struct {
	mu sync.Mutex

	commands                 CommandSender
	logger                   *slog.Logger
	now                      func() time.Time
	includeTime              bool
	useMillisecondResolution bool

	onMeasurements       func([]measurement.Measurement)
	onBufferBlock        func(BufferBlock)
	onDataStartTime      func(measurement.Ticks)
	onProcessingComplete func()
	onCommand            func(byte)

	cache     *signalindex.Cache
	codec     *compact.Codec
	decoder   *tssc.Decoder
	baseTimes compact.BaseTimes

	expectedBufferBlock uint32
	bufferBlockWindow   uint32
	earlyBufferBlocks   map[uint32]BufferBlock

	stats Stats
}

// New returns a subscriber that confirms buffer blocks through commands.
func New(commands CommandSender, opts ...Option) (*Subscriber, error) {
	if commands == nil {
		return nil, fmt.Errorf("%w: nil command sender", errs.ErrInvalidConfig)
	}

	decoder, err := tssc.NewDecoder()
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		commands:          commands,
		logger:            slog.New(slog.DiscardHandler),
		now:               time.Now,
		includeTime:       true,
		decoder:           decoder,
		bufferBlockWindow: DefaultBufferBlockWindow,
		earlyBufferBlocks: make(map[uint32]BufferBlock),
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// Cache returns the active signal index cache, or nil before the first one arrives.
func (s *Subscriber) Cache() *signalindex.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache
}

// BaseTimes returns the last announced base-time table.
func (s *Subscriber) BaseTimes() compact.BaseTimes {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.baseTimes
}

// Stats returns a snapshot of the receive counters.
func (s *Subscriber) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// HandleResponse processes one response payload.
func (s *Subscriber) HandleResponse(code section.ResponseCode, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch code {
	case section.ResponseUpdateSignalIndexCache:
		err = s.installCacheLocked(payload)
	case section.ResponseUpdateBaseTimes:
		err = s.installBaseTimesLocked(payload)
	case section.ResponseDataStartTime:
		var ts int64
		if ts, err = section.ParseDataStartTime(payload); err == nil && s.onDataStartTime != nil {
			s.onDataStartTime(measurement.Ticks(ts))
		}
	case section.ResponseProcessingComplete:
		s.logger.Info("publisher reported processing complete")
		if s.onProcessingComplete != nil {
			s.onProcessingComplete()
		}
	case section.ResponseBufferBlock:
		err = s.handleBufferBlockLocked(payload)
	case section.ResponseDataPacket:
		err = s.handleDataPacketLocked(payload)
	default:
		s.logger.Debug("ignoring response", slog.String("code", code.String()))
	}

	if err != nil {
		s.stats.DecodeErrors++
		s.logger.Error("response rejected", slog.String("code", code.String()), slog.Any("error", err))
	}

	return err
}

// installCacheLocked replaces the signal index cache. Every runtime index,
// delta block session and buffer block sequence of the old subscription is
// dropped with it.
func (s *Subscriber) installCacheLocked(payload []byte) error {
	cache := signalindex.New(uuid.Nil)
	n, err := cache.Parse(payload)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("signal index cache: %w", errs.ErrInsufficientData)
	}

	codec, err := compact.NewCodec(cache,
		compact.WithIncludeTime(s.includeTime),
		compact.WithMillisecondResolution(s.useMillisecondResolution),
		compact.WithBaseTimes(s.baseTimes),
	)
	if err != nil {
		return err
	}
	if err := s.decoder.Reset(); err != nil {
		return err
	}

	s.cache = cache
	s.codec = codec
	s.expectedBufferBlock = 0
	clear(s.earlyBufferBlocks)

	s.logger.Info("signal index cache installed",
		slog.Int("signals", cache.Len()),
		slog.Int("unauthorized", len(cache.UnauthorizedSignalIDs())),
	)

	return nil
}

func (s *Subscriber) installBaseTimesLocked(payload []byte) error {
	var update section.BaseTimeUpdate
	if err := update.Parse(payload); err != nil {
		return err
	}

	s.baseTimes = compact.BaseTimesFrom(update)
	if s.codec != nil {
		s.codec.SetBaseTimes(s.baseTimes)
	}

	return nil
}

// handleBufferBlockLocked confirms the block and delivers it, together with
// any early arrivals it unblocks, in sequence order. Blocks past the window
// are dropped unconfirmed.
func (s *Subscriber) handleBufferBlockLocked(payload []byte) error {
	if s.cache == nil {
		return errs.ErrNotSubscribed
	}

	var header section.BufferBlockHeader
	if err := header.Parse(payload); err != nil {
		return err
	}

	key, err := s.cache.Signal(header.SignalIndex)
	if err != nil {
		return err
	}

	if header.Sequence > s.expectedBufferBlock && header.Sequence-s.expectedBufferBlock >= s.bufferBlockWindow {
		s.stats.DroppedBufferBlocks++
		s.logger.Debug("buffer block outside window dropped",
			slog.Uint64("sequence", uint64(header.Sequence)),
			slog.Uint64("expected", uint64(s.expectedBufferBlock)),
		)

		return nil
	}

	if err := s.commands.SendCommand(section.CommandConfirmBufferBlock, section.AppendConfirmation(nil, header.Sequence)); err != nil {
		s.logger.Warn("buffer block confirmation failed", slog.Uint64("sequence", uint64(header.Sequence)), slog.Any("error", err))
	}

	block := BufferBlock{
		Sequence: header.Sequence,
		Key:      key,
		Payload:  append([]byte(nil), payload[section.BufferBlockHeaderSize:]...),
	}

	switch {
	case header.Sequence < s.expectedBufferBlock:
		s.stats.DuplicateBufferBlocks++
		return nil
	case header.Sequence > s.expectedBufferBlock:
		if _, seen := s.earlyBufferBlocks[header.Sequence]; seen {
			s.stats.DuplicateBufferBlocks++
		} else {
			s.earlyBufferBlocks[header.Sequence] = block
		}

		return nil
	}

	s.deliverBufferBlockLocked(block)
	for {
		next, ok := s.earlyBufferBlocks[s.expectedBufferBlock]
		if !ok {
			return nil
		}
		delete(s.earlyBufferBlocks, s.expectedBufferBlock)
		s.deliverBufferBlockLocked(next)
	}
}

func (s *Subscriber) deliverBufferBlockLocked(block BufferBlock) {
	s.expectedBufferBlock++
	s.stats.BufferBlocksReceived++
	if s.onBufferBlock != nil {
		s.onBufferBlock(block)
	}
}

func (s *Subscriber) handleDataPacketLocked(payload []byte) error {
	if s.cache == nil {
		return errs.ErrNotSubscribed
	}

	var header section.PacketHeader
	offset, err := header.Parse(payload)
	if err != nil {
		return err
	}
	records := payload[offset:]

	var ms []measurement.Measurement
	switch {
	case header.Flags.IsDeltaBlock():
		ms, err = s.decodeDeltaBlockLocked(records, header)
	case header.Flags.IsPatternPayload():
		ms, err = s.codec.DecodePattern(records, int(header.Count), header.Flags.IsLittleEndianCompression())
	case header.Flags.IsCompact():
		ms, err = decodeRecords(records, header.Count, compact.FixedLength, s.codec.Decode)
	default:
		ms, err = decodeRecords(records, header.Count, measurement.FullFixedLength, measurement.ParseFull)
	}
	if err != nil {
		return err
	}

	if !s.includeTime && header.Flags.IsCompact() {
		ts := measurement.FromTime(s.now())
		if header.Flags.IsSynchronized() {
			ts = measurement.Ticks(header.FrameTimestamp)
		}
		for i := range ms {
			ms[i].Timestamp = ts
		}
	}

	s.stats.PacketsReceived++
	s.stats.MeasurementsReceived += int64(len(ms))
	if s.onMeasurements != nil && len(ms) > 0 {
		s.onMeasurements(ms)
	}

	return nil
}

// decodeRecords decodes count back-to-back records of at least minLength bytes
// each. A count the buffer cannot hold is refused before anything is allocated.
func decodeRecords(buf []byte, count uint32, minLength int, decode func([]byte) (measurement.Measurement, int, error)) ([]measurement.Measurement, error) {
	if uint64(count) > uint64(len(buf)/minLength) {
		return nil, fmt.Errorf("%d records cannot fit in %d bytes: %w", count, len(buf), errs.ErrLengthMismatch)
	}

	ms := make([]measurement.Measurement, 0, count)
	for i := range count {
		if len(buf) == 0 {
			return nil, fmt.Errorf("packet ends after %d of %d records: %w", i, count, errs.ErrLengthMismatch)
		}
		m, n, err := decode(buf)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
		buf = buf[n:]
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d records: %w", len(buf), count, errs.ErrLengthMismatch)
	}

	return ms, nil
}

func (s *Subscriber) decodeDeltaBlockLocked(block []byte, header section.PacketHeader) ([]measurement.Measurement, error) {
	if header.Flags.IsLittleEndianCompression() != endian.IsLittleEndian(s.decoder.Engine()) {
		return nil, fmt.Errorf("delta block: %w", errs.ErrUnsupportedByteOrder)
	}

	if err := s.decoder.Fill(block); err != nil {
		return nil, err
	}

	// Repeated headers let a record take no bytes at all, so the block length
	// only bounds the preallocation, not the count.
	capacity := len(block)
	if uint64(header.Count) < uint64(capacity) {
		capacity = int(header.Count)
	}
	ms := make([]measurement.Measurement, 0, capacity)
	for {
		var rec tssc.Record
		res, err := s.decoder.Read(&rec)
		if err != nil {
			return nil, s.abandonDeltaSession(err)
		}

		switch res {
		case tssc.MeasurementRead:
			key, err := s.cache.Signal(rec.Index)
			if err != nil {
				return nil, s.abandonDeltaSession(err)
			}
			ms = append(ms, measurement.Measurement{
				Key:        key,
				Value:      float64(rec.Value),
				Multiplier: 1,
				Timestamp:  measurement.Ticks(rec.Timestamp),
				Flags:      measurement.StateFlags(rec.Quality),
			})
		case tssc.CommandRead:
			if s.onCommand != nil {
				s.onCommand(rec.Command)
			}
		case tssc.EndOfStream:
			if n := s.decoder.Buffered(); n > 0 {
				return nil, s.abandonDeltaSession(fmt.Errorf("%w: %d bytes left after block", errs.ErrMalformedBlock, n))
			}
			if uint64(len(ms)) != uint64(header.Count) {
				return nil, fmt.Errorf("delta block decoded %d of %d measurements: %w", len(ms), header.Count, errs.ErrLengthMismatch)
			}

			return ms, nil
		}
	}
}

// abandonDeltaSession discards decoder state that no longer mirrors the
// publisher. Decoding resumes once the publisher starts a new session.
func (s *Subscriber) abandonDeltaSession(err error) error {
	if resetErr := s.decoder.Reset(); resetErr != nil {
		s.logger.Error("delta decoder reset failed", slog.Any("error", resetErr))
	}

	return err
}
