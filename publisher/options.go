package publisher

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/options"
)

// Option configures a Publisher.
type Option = options.Option[*Publisher]

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return options.New(func(p *Publisher) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", errs.ErrInvalidConfig)
		}
		p.logger = logger

		return nil
	})
}

// WithStatusHandler receives informational events such as delta codec resets.
func WithStatusHandler(fn func(message string)) Option {
	return options.NoError(func(p *Publisher) {
		p.onStatus = fn
	})
}

// WithExceptionHandler receives every packet or block that could not be published.
func WithExceptionHandler(fn func(err error)) Option {
	return options.NoError(func(p *Publisher) {
		p.onException = fn
	})
}

// WithBufferBlockRetransmissionHandler is called once per retransmitted buffer block.
func WithBufferBlockRetransmissionHandler(fn func(sequence uint32)) Option {
	return options.NoError(func(p *Publisher) {
		p.onRetransmission = fn
	})
}

// WithProcessingCompleteHandler is called after NotifyProcessingComplete is sent.
func WithProcessingCompleteHandler(fn func()) Option {
	return options.NoError(func(p *Publisher) {
		p.onProcessingComplete = fn
	})
}

// WithClock replaces time.Now as the source of base-time epochs.
func WithClock(now func() time.Time) Option {
	return options.New(func(p *Publisher) error {
		if now == nil {
			return fmt.Errorf("%w: nil clock", errs.ErrInvalidConfig)
		}
		p.now = now

		return nil
	})
}

// WithoutTimers disables the retransmission and rotation timers. Callers drive
// RetransmitBufferBlocks and RotateBaseTimes themselves.
func WithoutTimers() Option {
	return options.NoError(func(p *Publisher) {
		p.manualTimers = true
	})
}
