package measurement

import "time"

// Ticks counts 100-nanosecond intervals since 0001-01-01T00:00:00Z.
type Ticks int64

const (
	TicksPerMicrosecond Ticks = 10
	TicksPerMillisecond Ticks = 10_000
	TicksPerSecond      Ticks = 10_000_000
	TicksPerMinute      Ticks = 60 * TicksPerSecond
)

// unixEpochTicks is the tick count of 1970-01-01T00:00:00Z.
const unixEpochTicks Ticks = 621_355_968_000_000_000

// FromTime converts t to Ticks, truncating below 100ns.
func FromTime(t time.Time) Ticks {
	return unixEpochTicks + Ticks(t.UnixNano()/100)
}

// Time converts the tick count to a UTC time.
func (t Ticks) Time() time.Time {
	return time.Unix(0, int64(t-unixEpochTicks)*100).UTC()
}

// Milliseconds returns the tick count as whole milliseconds.
func (t Ticks) Milliseconds() int64 {
	return int64(t / TicksPerMillisecond)
}

// FromDuration converts d to Ticks.
func FromDuration(d time.Duration) Ticks {
	return Ticks(d / 100)
}
