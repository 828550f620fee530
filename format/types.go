// Package format defines the enumerations shared by the wire codecs and the publisher:
// the payload compression algorithms and the per-connection compression modes.
package format

import (
	"fmt"
	"strings"
)

type (
	// CompressionType identifies the black-box algorithm applied to a pattern payload.
	// The value is written as the first byte of every compressed pattern payload.
	CompressionType uint8

	// CompressionMode selects the wire format a connection publishes with.
	// It is chosen once per subscription and never re-decided per record.
	CompressionMode uint8
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone stores the columnar layout as-is.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 block compression.
)

const (
	// ModeNone publishes full serializable measurement records.
	ModeNone CompressionMode = iota
	// ModeCompact publishes compact measurement records.
	ModeCompact
	// ModePattern publishes compact records and compresses each packet when that wins.
	ModePattern
	// ModeTSSC streams measurements through the stateful delta block codec.
	ModeTSSC
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// ParseCompressionType parses a case-insensitive algorithm name.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "s2":
		return CompressionS2, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown payload compression %q", s)
	}
}

func (m CompressionMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeCompact:
		return "compact"
	case ModePattern:
		return "pattern"
	case ModeTSSC:
		return "tssc"
	default:
		return "unknown"
	}
}

// IsCompact reports whether the mode uses the compact record and the signal index cache.
func (m CompressionMode) IsCompact() bool {
	return m != ModeNone
}

// ParseCompressionMode parses a case-insensitive mode name.
func ParseCompressionMode(s string) (CompressionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return ModeNone, nil
	case "compact":
		return ModeCompact, nil
	case "pattern":
		return ModePattern, nil
	case "tssc":
		return ModeTSSC, nil
	default:
		return 0, fmt.Errorf("unknown compression mode %q", s)
	}
}

// ModeSet is a bit set of compression modes.
type ModeSet uint8

// AllModes contains every compression mode.
const AllModes ModeSet = 1<<ModeNone | 1<<ModeCompact | 1<<ModePattern | 1<<ModeTSSC

// NewModeSet returns a set holding the given modes.
func NewModeSet(modes ...CompressionMode) ModeSet {
	var s ModeSet
	for _, m := range modes {
		s |= 1 << m
	}

	return s
}

// Has reports whether m is in the set.
func (s ModeSet) Has(m CompressionMode) bool {
	return s&(1<<m) != 0
}

// negotiationOrder lists modes from most to least preferred.
var negotiationOrder = []CompressionMode{ModeTSSC, ModePattern, ModeCompact, ModeNone}

// Negotiate picks the most preferred mode present in both the subscriber's
// requested set and the publisher's allowed set. Server policy bounds what a
// subscriber may ask for; it never upgrades a subscriber past its request.
// ModeNone is the fallback when the sets share nothing.
func Negotiate(requested, allowed ModeSet) CompressionMode {
	common := requested & allowed
	for _, m := range negotiationOrder {
		if common.Has(m) {
			return m
		}
	}

	return ModeNone
}

// MarshalText implements encoding.TextMarshaler.
func (c CompressionType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(c.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CompressionType) UnmarshalText(text []byte) error {
	v, err := ParseCompressionType(string(text))
	if err != nil {
		return err
	}
	*c = v

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m CompressionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *CompressionMode) UnmarshalText(text []byte) error {
	v, err := ParseCompressionMode(string(text))
	if err != nil {
		return err
	}
	*m = v

	return nil
}
