package publisher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/compact"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/internal/options"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/section"
	"github.com/arloliu/tickstream/signalindex"
	"github.com/arloliu/tickstream/tssc"
)

// Transport delivers one framed response to a connection. It owns any
// blocking; the payload is only valid for the duration of the call.
type Transport interface {
	Send(connectionID uuid.UUID, code section.ResponseCode, payload []byte) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(connectionID uuid.UUID, code section.ResponseCode, payload []byte) error

// Send calls f.
func (f TransportFunc) Send(connectionID uuid.UUID, code section.ResponseCode, payload []byte) error {
	return f(connectionID, code, payload)
}

// Request describes a (re)subscription.
type Request struct {
	// Keys lists the signals the subscriber asked for, in index order.
	Keys []measurement.Key
	// Modes lists the compression modes the subscriber supports. Empty means
	// the configured default mode.
	Modes format.ModeSet
}

// Publisher is the publishing engine of one subscriber connection.
type Publisher struct {
	mu sync.Mutex

	connectionID uuid.UUID
	transport    Transport
	cfg          Config
	logger       *slog.Logger
	now          func() time.Time
	manualTimers bool

	onStatus             func(string)
	onException          func(error)
	onRetransmission     func(uint32)
	onProcessingComplete func()

	mode          format.CompressionMode
	cache         *signalindex.Cache
	codec         *compact.Codec
	encoder       *tssc.Encoder
	startTimeSent bool

	baseTimes     compact.BaseTimes
	rotationTimer *time.Timer

	bufferBlocks         [][]byte
	nextSequence         uint32
	expectedConfirmation uint32
	retransmitTimer      *time.Timer

	packet []byte
	stats  Stats
	closed bool
}

// New returns a publisher for connectionID sending through transport.
func New(connectionID uuid.UUID, transport Transport, cfg Config, opts ...Option) (*Publisher, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", errs.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Publisher{
		connectionID: connectionID,
		transport:    transport,
		cfg:          cfg,
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		packet:       make([]byte, 0, cfg.MaxPacketSize),
	}
	if err := options.Apply(p, opts...); err != nil {
		return nil, err
	}
	p.logger = p.logger.With(slog.String("connection", connectionID.String()))

	return p, nil
}

// ConnectionID returns the connection this publisher serves.
func (p *Publisher) ConnectionID() uuid.UUID {
	return p.connectionID
}

// Mode returns the negotiated compression mode of the current subscription.
func (p *Publisher) Mode() format.CompressionMode {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mode
}

// Cache returns the signal index cache of the current subscription, or nil.
func (p *Publisher) Cache() *signalindex.Cache {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cache
}

// Stats returns a snapshot of the publishing counters.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats
}

// Subscribe replaces the subscription. It builds a new signal index cache from
// the keys authorize admits, announces it, resets every codec, and restarts
// the base-time table. Runtime indices of the previous subscription, including
// those of unacknowledged buffer blocks, are discarded.
func (p *Publisher) Subscribe(req Request, authorize func(uuid.UUID) bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.ErrPublisherClosed
	}

	cache, err := signalindex.Build(p.connectionID, req.Keys, authorize)
	if err != nil {
		return fmt.Errorf("build signal index cache: %w", err)
	}

	requested := req.Modes
	if requested == 0 {
		requested = format.NewModeSet(p.cfg.CompressionMode)
	}
	mode := format.Negotiate(requested, p.cfg.AllowedModes())

	codec, err := compact.NewCodec(cache,
		compact.WithIncludeTime(p.cfg.IncludeTime),
		compact.WithMillisecondResolution(p.cfg.UseMillisecondResolution),
	)
	if err != nil {
		return err
	}

	var encoder *tssc.Encoder
	if mode == format.ModeTSSC {
		encoder, err = tssc.NewEncoder(p.cfg.MaxPacketSize - section.ResponseHeaderSize - section.DataPacketHeaderSize)
		if err != nil {
			return err
		}
	}

	p.stopTimersLocked()
	p.bufferBlocks = nil
	p.nextSequence = 0
	p.expectedConfirmation = 0
	p.baseTimes = compact.BaseTimes{}

	p.mode = mode
	p.cache = cache
	p.codec = codec
	p.encoder = encoder
	p.startTimeSent = false

	image, err := cache.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize signal index cache: %w", err)
	}
	if err := p.sendLocked(section.ResponseUpdateSignalIndexCache, image); err != nil {
		return fmt.Errorf("send signal index cache: %w", err)
	}

	if p.cfg.usesBaseTimes(mode) {
		period := compact.RotationPeriod(p.cfg.UseMillisecondResolution)
		p.baseTimes.Activate(measurement.FromTime(p.now()), period)
		if err := p.announceBaseTimesLocked(); err != nil {
			return err
		}
		p.startRotationTimerLocked(period)
	}

	p.logger.Info("subscription updated",
		slog.String("mode", mode.String()),
		slog.Int("signals", cache.Len()),
		slog.Int("unauthorized", len(cache.UnauthorizedSignalIDs())),
	)
	if n := len(cache.UnauthorizedSignalIDs()); n > 0 {
		p.statusLocked(fmt.Sprintf("%d requested signals were not authorized", n))
	}

	return nil
}

// Publish serializes a batch of measurements. Buffer blocks are sent and
// cached at once; the rest are packed per the negotiated mode. Measurements
// for signals outside the subscription are skipped.
//
// A failure to publish one packet or record does not stop the batch. Every
// such failure goes to the exception handler and is joined into the returned
// error.
func (p *Publisher) Publish(ms []measurement.Measurement) error {
	return p.publish(ms, 0, false)
}

// PublishFrame publishes measurements that share a frame timestamp. Outside
// the delta block mode the packets carry the Synchronized flag and the frame
// timestamp.
func (p *Publisher) PublishFrame(timestamp measurement.Ticks, ms []measurement.Measurement) error {
	return p.publish(ms, timestamp, true)
}

func (p *Publisher) publish(ms []measurement.Measurement, frame measurement.Ticks, synchronized bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.ErrPublisherClosed
	}
	if p.cache == nil {
		return errs.ErrNotSubscribed
	}

	var (
		failures []error
		selected = make([]measurement.Measurement, 0, len(ms))
	)
	for i := range ms {
		m := &ms[i]
		if p.cache.Index(m.SignalID) == signalindex.UnknownIndex {
			p.stats.MeasurementsFiltered++
			continue
		}
		if m.IsBufferBlock() {
			if err := p.sendBufferBlockLocked(m); err != nil {
				failures = append(failures, p.exceptionLocked(err))
			}

			continue
		}
		if p.cfg.NaNValueFilter && m.IsNaN() {
			p.stats.MeasurementsFiltered++
			continue
		}
		selected = append(selected, *m)
	}

	if len(selected) == 0 {
		return errors.Join(failures...)
	}

	if !p.startTimeSent {
		if err := p.sendLocked(section.ResponseDataStartTime, section.AppendDataStartTime(nil, int64(selected[0].Timestamp))); err != nil {
			failures = append(failures, p.exceptionLocked(fmt.Errorf("send data start time: %w", err)))
		} else {
			p.startTimeSent = true
		}
	}

	p.stats.MeasurementsProcessed += int64(len(selected))

	switch p.mode {
	case format.ModeTSSC:
		failures = append(failures, p.publishDeltaBlocksLocked(selected)...)
	default:
		flags := section.NoFlags
		if p.mode.IsCompact() {
			flags |= section.FlagCompact
		}
		if synchronized {
			flags |= section.FlagSynchronized
		}
		failures = append(failures, p.publishPacketsLocked(selected, flags, int64(frame))...)
	}

	return errors.Join(failures...)
}

// NotifyProcessingComplete tells the subscriber no further data will follow
// for the current subscription.
func (p *Publisher) NotifyProcessingComplete() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.ErrPublisherClosed
	}
	if err := p.sendLocked(section.ResponseProcessingComplete, nil); err != nil {
		return p.exceptionLocked(fmt.Errorf("send processing complete: %w", err))
	}

	p.logger.Info("processing complete")
	if p.onProcessingComplete != nil {
		p.onProcessingComplete()
	}

	return nil
}

// Close stops both timers and discards all codec and buffer block state.
// Timer callbacks that are already waiting for the lock return without
// touching anything.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.stopTimersLocked()
	if pending := p.pendingBufferBlocksLocked(); pending > 0 {
		p.logger.Warn("discarding unacknowledged buffer blocks", slog.Int("count", pending))
	}
	p.bufferBlocks = nil
	p.encoder = nil
	p.codec = nil
	p.cache = nil

	return nil
}

func (p *Publisher) stopTimersLocked() {
	if p.retransmitTimer != nil {
		p.retransmitTimer.Stop()
		p.retransmitTimer = nil
	}
	if p.rotationTimer != nil {
		p.rotationTimer.Stop()
		p.rotationTimer = nil
	}
}

func (p *Publisher) sendLocked(code section.ResponseCode, payload []byte) error {
	if err := p.transport.Send(p.connectionID, code, payload); err != nil {
		return err
	}

	p.stats.BytesSent += int64(section.ResponseHeaderSize + len(payload))

	return nil
}

func (p *Publisher) statusLocked(msg string) {
	p.logger.Info(msg)
	if p.onStatus != nil {
		p.onStatus(msg)
	}
}

// exceptionLocked reports err and returns it for joining.
func (p *Publisher) exceptionLocked(err error) error {
	p.stats.Exceptions++
	p.logger.Error("publish failed", slog.Any("error", err))
	if p.onException != nil {
		p.onException(err)
	}

	return err
}
