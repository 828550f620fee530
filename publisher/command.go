package publisher

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/tickstream/compact"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/section"
)

// HandleCommand applies a command received from the subscriber. Subscribe
// carries a filter expression this package does not parse, so callers turn it
// into a Request and call Subscribe themselves.
func (p *Publisher) HandleCommand(code section.CommandCode, payload []byte) error {
	switch code {
	case section.CommandConfirmBufferBlock:
		sequence, err := section.ParseConfirmation(payload)
		if err != nil {
			return err
		}
		p.ConfirmBufferBlock(sequence)

		return nil
	case section.CommandUnsubscribe:
		return p.Unsubscribe()
	default:
		p.logger.Debug("ignoring command", slog.String("code", code.String()))
		return fmt.Errorf("%s: %w", code, errs.ErrUnsupportedCommand)
	}
}

// Unsubscribe drops the current subscription. Timers stop, unacknowledged
// buffer blocks are discarded, and Publish fails with errs.ErrNotSubscribed
// until the next Subscribe.
func (p *Publisher) Unsubscribe() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.ErrPublisherClosed
	}

	p.stopTimersLocked()
	p.bufferBlocks = nil
	p.nextSequence = 0
	p.expectedConfirmation = 0
	p.baseTimes = compact.BaseTimes{}
	p.encoder = nil
	p.codec = nil
	p.cache = nil
	p.mode = format.ModeNone

	p.logger.Info("subscription dropped")

	return nil
}
