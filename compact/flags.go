package compact

import (
	"strings"

	"github.com/arloliu/tickstream/measurement"
)

// Flags is the first byte of a compact record.
type Flags uint8

const (
	FlagDataRange       Flags = 0x01
	FlagDataQuality     Flags = 0x02
	FlagTimeQuality     Flags = 0x04
	FlagSystemIssue     Flags = 0x08
	FlagCalculatedValue Flags = 0x10
	FlagDiscardedValue  Flags = 0x20
	// FlagBaseTimeOffset marks a timestamp written as an offset from a base-time slot.
	FlagBaseTimeOffset Flags = 0x40
	// FlagTimeIndex selects base-time slot 1 instead of slot 0.
	FlagTimeIndex Flags = 0x80

	// CategoryMask covers the six quality category bits.
	CategoryMask Flags = 0x3F
)

var categories = [...]struct {
	compact Flags
	full    measurement.StateFlags
	name    string
}{
	{FlagDataRange, measurement.DataRangeMask, "DataRange"},
	{FlagDataQuality, measurement.DataQualityMask, "DataQuality"},
	{FlagTimeQuality, measurement.TimeQualityMask, "TimeQuality"},
	{FlagSystemIssue, measurement.SystemIssueMask, "SystemIssue"},
	{FlagCalculatedValue, measurement.CalculatedValueMask, "CalculatedValue"},
	{FlagDiscardedValue, measurement.DiscardedValueMask, "DiscardedValue"},
}

// MapToCompact folds a full quality word into its category bits. User-defined
// flags have no category and are dropped.
func MapToCompact(full measurement.StateFlags) Flags {
	var f Flags
	for _, c := range categories {
		if full.Any(c.full) {
			f |= c.compact
		}
	}

	return f
}

// FullFlags expands the category bits back into a quality word. Each set
// category yields its whole mask, so only the category set survives a round
// trip, never the original bit pattern.
func (f Flags) FullFlags() measurement.StateFlags {
	var full measurement.StateFlags
	for _, c := range categories {
		if f&c.compact != 0 {
			full |= c.full
		}
	}

	return full
}

// Categories returns f without the timestamp bits.
func (f Flags) Categories() Flags {
	return f & CategoryMask
}

func (f Flags) String() string {
	if f == 0 {
		return "Normal"
	}

	names := make([]string, 0, 8)
	for _, c := range categories {
		if f&c.compact != 0 {
			names = append(names, c.name)
		}
	}
	if f&FlagBaseTimeOffset != 0 {
		names = append(names, "BaseTimeOffset")
	}
	if f&FlagTimeIndex != 0 {
		names = append(names, "TimeIndex")
	}

	return strings.Join(names, "|")
}
