package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
)

// FromEnv overlays TICKSTREAM_* environment variables onto cfg. A variable
// that is set but cannot be parsed is an error.
func FromEnv(cfg *Config) error {
	if v := os.Getenv("TICKSTREAM_MAX_PACKET_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("TICKSTREAM_MAX_PACKET_SIZE", v)
		}
		cfg.Publisher.MaxPacketSize = n
	}
	if v := os.Getenv("TICKSTREAM_COMPRESSION_MODE"); v != "" {
		mode, err := format.ParseCompressionMode(v)
		if err != nil {
			return envError("TICKSTREAM_COMPRESSION_MODE", v)
		}
		cfg.Publisher.CompressionMode = mode
	}
	if v := os.Getenv("TICKSTREAM_ALLOWED_COMPRESSION_MODES"); v != "" {
		cfg.Publisher.AllowedCompressionModes = nil
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			mode, err := format.ParseCompressionMode(part)
			if err != nil {
				return envError("TICKSTREAM_ALLOWED_COMPRESSION_MODES", v)
			}
			cfg.Publisher.AllowedCompressionModes = append(cfg.Publisher.AllowedCompressionModes, mode)
		}
	}
	if v := os.Getenv("TICKSTREAM_PAYLOAD_COMPRESSION"); v != "" {
		algo, err := format.ParseCompressionType(v)
		if err != nil {
			return envError("TICKSTREAM_PAYLOAD_COMPRESSION", v)
		}
		cfg.Publisher.PayloadCompression = algo
	}
	if v := os.Getenv("TICKSTREAM_BUFFER_BLOCK_RETRANSMISSION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("TICKSTREAM_BUFFER_BLOCK_RETRANSMISSION_TIMEOUT", v)
		}
		cfg.Publisher.BufferBlockRetransmissionTimeout = d
	}
	if v := os.Getenv("TICKSTREAM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TICKSTREAM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return nil
}

func envError(name, value string) error {
	return fmt.Errorf("%w: %s=%q", errs.ErrInvalidConfig, name, value)
}
