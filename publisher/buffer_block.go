package publisher

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/section"
)

// The buffer block cache is a window of payloads starting at sequence
// expectedConfirmation. Confirmed entries become nil holes until every entry
// before them is confirmed too.

// sendBufferBlockLocked assigns the next sequence number to m, caches the
// framed payload and sends it.
func (p *Publisher) sendBufferBlockLocked(m *measurement.Measurement) error {
	header := section.BufferBlockHeader{
		Sequence:    p.nextSequence,
		SignalIndex: p.cache.Index(m.SignalID),
	}
	payload := header.Append(make([]byte, 0, section.BufferBlockHeaderSize+len(m.Buffer)))
	payload = append(payload, m.Buffer...)

	if len(payload)+section.ResponseHeaderSize > p.cfg.MaxPacketSize {
		return fmt.Errorf("buffer block for %s needs %d bytes: %w", m.SignalID, len(payload)+section.ResponseHeaderSize, errs.ErrRecordTooLarge)
	}

	p.nextSequence++
	p.bufferBlocks = append(p.bufferBlocks, payload)
	p.stats.BufferBlocksSent++

	if err := p.sendLocked(section.ResponseBufferBlock, payload); err != nil {
		p.logger.Warn("buffer block send failed, awaiting retransmission",
			slog.Uint64("sequence", uint64(header.Sequence)), slog.Any("error", err))
	}

	if p.retransmitTimer == nil {
		p.startRetransmitTimerLocked()
	}

	return nil
}

// ConfirmBufferBlock records the subscriber's acknowledgement of sequence.
//
// Confirming the oldest outstanding block purges it and every already
// confirmed block after it. Confirming a later block only clears that entry
// and resends every older block still held, since the subscriber evidently
// missed them.
func (p *Publisher) ConfirmBufferBlock(sequence uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	offset := int64(sequence) - int64(p.expectedConfirmation)
	if offset >= 0 && offset < int64(len(p.bufferBlocks)) && p.bufferBlocks[offset] != nil {
		p.bufferBlocks[offset] = nil

		if offset == 0 {
			purged := 0
			for purged < len(p.bufferBlocks) && p.bufferBlocks[purged] == nil {
				purged++
			}
			p.bufferBlocks = p.bufferBlocks[purged:]
			p.expectedConfirmation += uint32(purged) //nolint:gosec
		} else {
			for i := range p.bufferBlocks[:offset] {
				p.retransmitLocked(i)
			}
		}
	}

	if len(p.bufferBlocks) == 0 {
		p.bufferBlocks = nil
		if p.retransmitTimer != nil {
			p.retransmitTimer.Stop()
			p.retransmitTimer = nil
		}

		return
	}

	p.startRetransmitTimerLocked()
}

// RetransmitBufferBlocks resends every unacknowledged buffer block. The
// retransmission timer calls it on every period.
func (p *Publisher) RetransmitBufferBlocks() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.retransmitAllLocked()
}

// PendingBufferBlocks returns the number of unacknowledged buffer blocks.
func (p *Publisher) PendingBufferBlocks() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pendingBufferBlocksLocked()
}

func (p *Publisher) pendingBufferBlocksLocked() int {
	n := 0
	for _, block := range p.bufferBlocks {
		if block != nil {
			n++
		}
	}

	return n
}

func (p *Publisher) retransmitAllLocked() {
	for i := range p.bufferBlocks {
		p.retransmitLocked(i)
	}
}

func (p *Publisher) retransmitLocked(i int) {
	block := p.bufferBlocks[i]
	if block == nil {
		return
	}

	sequence := p.expectedConfirmation + uint32(i) //nolint:gosec
	p.stats.BufferBlockRetransmissions++
	if err := p.sendLocked(section.ResponseBufferBlock, block); err != nil {
		p.logger.Warn("buffer block retransmission failed",
			slog.Uint64("sequence", uint64(sequence)), slog.Any("error", err))
	} else {
		p.logger.Debug("buffer block retransmitted", slog.Uint64("sequence", uint64(sequence)))
	}

	if p.onRetransmission != nil {
		p.onRetransmission(sequence)
	}
}

// startRetransmitTimerLocked (re)arms the retransmission timer.
func (p *Publisher) startRetransmitTimerLocked() {
	if p.manualTimers {
		return
	}

	if p.retransmitTimer != nil {
		p.retransmitTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(p.cfg.BufferBlockRetransmissionTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed || p.retransmitTimer != timer {
			return
		}

		p.retransmitAllLocked()
		timer.Reset(p.cfg.BufferBlockRetransmissionTimeout)
	})
	p.retransmitTimer = timer
}
