package publisher

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arloliu/tickstream/compact"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/section"
)

// BaseTimes returns the active slot index and both base-time epochs.
func (p *Publisher) BaseTimes() (uint32, [2]measurement.Ticks) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.baseTimes.Index, p.baseTimes.Slots
}

// RotateBaseTimes switches compact encoding to the pre-populated slot, refills
// the retired slot and announces the new table before any record uses it. The
// rotation timer calls it on every period.
func (p *Publisher) RotateBaseTimes() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rotateBaseTimesLocked()
}

func (p *Publisher) rotateBaseTimesLocked() error {
	if p.closed || p.codec == nil || !p.baseTimes.IsActive() {
		return nil
	}

	period := compact.RotationPeriod(p.cfg.UseMillisecondResolution)
	p.baseTimes.Rotate(measurement.FromTime(p.now()), period)
	p.stats.BaseTimeRotations++

	return p.announceBaseTimesLocked()
}

// announceBaseTimesLocked installs the table in the compact codec and sends it.
func (p *Publisher) announceBaseTimesLocked() error {
	p.codec.SetBaseTimes(p.baseTimes)

	update := p.baseTimes.Update()
	if err := p.sendLocked(section.ResponseUpdateBaseTimes, update.Append(nil)); err != nil {
		return p.exceptionLocked(fmt.Errorf("send base times: %w", err))
	}

	p.logger.Debug("base times updated",
		slog.Uint64("index", uint64(update.ActiveIndex)),
		slog.Int64("slot0", update.Slots[0]),
		slog.Int64("slot1", update.Slots[1]),
	)

	return nil
}

func (p *Publisher) startRotationTimerLocked(period time.Duration) {
	if p.manualTimers {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(period, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed || p.rotationTimer != timer {
			return
		}

		_ = p.rotateBaseTimesLocked()
		timer.Reset(period)
	})
	p.rotationTimer = timer
}
