package compact

import (
	"fmt"
	"time"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/section"
)

// Rotation periods keep every offset inside its narrow width: 65535 ms for the
// two-byte millisecond form and 2^32-1 ticks (about 429s) for the four-byte form.
const (
	MillisecondRotationPeriod = 60 * time.Second
	TickRotationPeriod        = 420 * time.Second
)

// RotationPeriod returns the rotation period for the given timestamp resolution.
func RotationPeriod(useMillisecondResolution bool) time.Duration {
	if useMillisecondResolution {
		return MillisecondRotationPeriod
	}

	return TickRotationPeriod
}

// BaseTimes is the two-slot epoch table. Index selects the active slot; the
// other slot always holds the upcoming epoch so a rotation never exposes an
// unset slot.
type BaseTimes struct {
	Index uint32
	Slots [2]measurement.Ticks
}

// IsActive reports whether the table has been activated.
func (b BaseTimes) IsActive() bool {
	return b.Slots[0] > 0
}

// Activate populates both slots starting at now and selects slot 0.
func (b *BaseTimes) Activate(now measurement.Ticks, period time.Duration) {
	b.Index = 0
	b.Slots[0] = now
	b.Slots[1] = now + measurement.FromDuration(period)
}

// Rotate makes the pre-populated slot active and refills the retired slot with
// the next epoch.
func (b *BaseTimes) Rotate(now measurement.Ticks, period time.Duration) {
	old := b.Index
	b.Index ^= 1
	b.Slots[old] = now + measurement.FromDuration(period)
}

// Base returns the epoch held by slot idx.
func (b BaseTimes) Base(idx uint32) (measurement.Ticks, error) {
	if idx > 1 || b.Slots[idx] <= 0 {
		return 0, fmt.Errorf("slot %d: %w", idx, errs.ErrBaseTimeSlotUnset)
	}

	return b.Slots[idx], nil
}

// Update returns the UpdateBaseTimes message announcing the table.
func (b BaseTimes) Update() section.BaseTimeUpdate {
	return section.BaseTimeUpdate{
		ActiveIndex: b.Index,
		Slots:       [2]int64{int64(b.Slots[0]), int64(b.Slots[1])},
	}
}

// BaseTimesFrom rebuilds a table from an UpdateBaseTimes message.
func BaseTimesFrom(u section.BaseTimeUpdate) BaseTimes {
	return BaseTimes{
		Index: u.ActiveIndex,
		Slots: [2]measurement.Ticks{measurement.Ticks(u.Slots[0]), measurement.Ticks(u.Slots[1])},
	}
}
