package publisher

import (
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/section"
	"github.com/arloliu/tickstream/tssc"
)

// DefaultBufferBlockRetransmissionTimeout is how long an unacknowledged buffer
// block waits before it is sent again.
const DefaultBufferBlockRetransmissionTimeout = 5 * time.Second

// minPacketSize leaves room for a delta block of one measurement.
const minPacketSize = section.ResponseHeaderSize + section.DataPacketHeaderSize + tssc.MeasurementHeadroom

// Config holds the per-connection publishing settings.
type Config struct {
	// MaxPacketSize bounds every response frame, header included.
	MaxPacketSize int `yaml:"maxPacketSize" json:"maxPacketSize"`
	// CompressionMode is used when a subscriber does not request modes itself.
	CompressionMode format.CompressionMode `yaml:"compressionMode" json:"compressionMode"`
	// AllowedCompressionModes bounds what subscribers may negotiate. Empty allows all.
	AllowedCompressionModes []format.CompressionMode `yaml:"allowedCompressionModes" json:"allowedCompressionModes"`
	// PayloadCompression is the algorithm tried on pattern mode packets.
	PayloadCompression format.CompressionType `yaml:"payloadCompression" json:"payloadCompression"`
	// IncludeTime adds timestamps to compact records.
	IncludeTime bool `yaml:"includeTime" json:"includeTime"`
	// UseMillisecondResolution writes two-byte millisecond offsets instead of
	// four-byte tick offsets.
	UseMillisecondResolution bool `yaml:"useMillisecondResolution" json:"useMillisecondResolution"`
	// UseBaseTimeOffsets enables the rotating base-time table for compact records.
	UseBaseTimeOffsets bool `yaml:"useBaseTimeOffsets" json:"useBaseTimeOffsets"`
	// BufferBlockRetransmissionTimeout is the retransmission timer period.
	BufferBlockRetransmissionTimeout time.Duration `yaml:"bufferBlockRetransmissionTimeout" json:"bufferBlockRetransmissionTimeout"`
	// NaNValueFilter drops measurements whose value is NaN.
	NaNValueFilter bool `yaml:"nanValueFilter" json:"nanValueFilter"`
}

// DefaultConfig returns the default publishing settings.
func DefaultConfig() Config {
	return Config{
		MaxPacketSize:                    section.DefaultMaxPacketSize,
		CompressionMode:                  format.ModeTSSC,
		PayloadCompression:               format.CompressionZstd,
		IncludeTime:                      true,
		UseMillisecondResolution:         false,
		UseBaseTimeOffsets:               true,
		BufferBlockRetransmissionTimeout: DefaultBufferBlockRetransmissionTimeout,
		NaNValueFilter:                   false,
	}
}

// Validate checks every setting is in range.
func (c Config) Validate() error {
	if c.MaxPacketSize < minPacketSize {
		return fmt.Errorf("%w: maxPacketSize %d is below %d", errs.ErrInvalidConfig, c.MaxPacketSize, minPacketSize)
	}
	if c.MaxPacketSize > section.MaxPacketSizeLimit {
		return fmt.Errorf("%w: maxPacketSize %d is above %d", errs.ErrInvalidConfig, c.MaxPacketSize, section.MaxPacketSizeLimit)
	}
	if c.BufferBlockRetransmissionTimeout <= 0 {
		return fmt.Errorf("%w: bufferBlockRetransmissionTimeout must be positive", errs.ErrInvalidConfig)
	}
	if c.CompressionMode > format.ModeTSSC {
		return fmt.Errorf("%w: compression mode %d", errs.ErrInvalidConfig, c.CompressionMode)
	}
	if c.PayloadCompression.String() == "Unknown" {
		return fmt.Errorf("%w: payload compression %d", errs.ErrInvalidConfig, c.PayloadCompression)
	}
	if len(c.AllowedCompressionModes) > 0 && !slices.Contains(c.AllowedCompressionModes, c.CompressionMode) {
		return fmt.Errorf("%w: default mode %s is not allowed", errs.ErrInvalidConfig, c.CompressionMode)
	}

	return nil
}

// AllowedModes returns the negotiable modes as a set.
func (c Config) AllowedModes() format.ModeSet {
	if len(c.AllowedCompressionModes) == 0 {
		return format.AllModes
	}

	return format.NewModeSet(c.AllowedCompressionModes...)
}

// usesBaseTimes reports whether compact records in mode are written against
// the base-time table.
func (c Config) usesBaseTimes(mode format.CompressionMode) bool {
	return c.UseBaseTimeOffsets && c.IncludeTime && (mode == format.ModeCompact || mode == format.ModePattern)
}
