package subscriber

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/options"
	"github.com/arloliu/tickstream/measurement"
)

// Option configures a Subscriber.
type Option = options.Option[*Subscriber]

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return options.New(func(s *Subscriber) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", errs.ErrInvalidConfig)
		}
		s.logger = logger

		return nil
	})
}

// WithIncludeTime must match the publisher's setting. Default true.
func WithIncludeTime(include bool) Option {
	return options.NoError(func(s *Subscriber) {
		s.includeTime = include
	})
}

// WithMillisecondResolution must match the publisher's setting.
func WithMillisecondResolution(enabled bool) Option {
	return options.NoError(func(s *Subscriber) {
		s.useMillisecondResolution = enabled
	})
}

// WithClock stamps measurements received without timestamps outside a frame.
func WithClock(now func() time.Time) Option {
	return options.New(func(s *Subscriber) error {
		if now == nil {
			return fmt.Errorf("%w: nil clock", errs.ErrInvalidConfig)
		}
		s.now = now

		return nil
	})
}

// WithMeasurementHandler receives the measurements of every data packet.
func WithMeasurementHandler(fn func(ms []measurement.Measurement)) Option {
	return options.NoError(func(s *Subscriber) {
		s.onMeasurements = fn
	})
}

// WithBufferBlockHandler receives buffer blocks in sequence order.
func WithBufferBlockHandler(fn func(block BufferBlock)) Option {
	return options.NoError(func(s *Subscriber) {
		s.onBufferBlock = fn
	})
}

// WithBufferBlockWindow sets how far past the next expected sequence number a
// buffer block may arrive and still be held. Blocks beyond the window are
// neither held nor confirmed, so the publisher retransmits them. Default
// DefaultBufferBlockWindow.
func WithBufferBlockWindow(window uint32) Option {
	return options.New(func(s *Subscriber) error {
		if window == 0 {
			return fmt.Errorf("%w: zero buffer block window", errs.ErrInvalidConfig)
		}
		s.bufferBlockWindow = window

		return nil
	})
}

// WithDataStartTimeHandler receives the timestamp of the first published measurement.
func WithDataStartTimeHandler(fn func(ts measurement.Ticks)) Option {
	return options.NoError(func(s *Subscriber) {
		s.onDataStartTime = fn
	})
}

// WithProcessingCompleteHandler is called when the publisher reports completion.
func WithProcessingCompleteHandler(fn func()) Option {
	return options.NoError(func(s *Subscriber) {
		s.onProcessingComplete = fn
	})
}

// WithCommandHandler receives commands embedded in delta blocks.
func WithCommandHandler(fn func(cmd byte)) Option {
	return options.NoError(func(s *Subscriber) {
		s.onCommand = fn
	})
}
