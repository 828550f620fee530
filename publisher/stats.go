package publisher

import "github.com/arloliu/tickstream/compress"

// Stats counts publishing activity since the publisher was created.
type Stats struct {
	MeasurementsProcessed      int64
	MeasurementsFiltered       int64
	PacketsSent                int64
	BytesSent                  int64
	BufferBlocksSent           int64
	BufferBlockRetransmissions int64
	CodecResets                int64
	BaseTimeRotations          int64
	Exceptions                 int64
	PatternCompression         compress.CompressionStats
}

// BytesPerMeasurement returns the average wire cost of a processed measurement.
func (s Stats) BytesPerMeasurement() float64 {
	if s.MeasurementsProcessed == 0 {
		return 0
	}

	return float64(s.BytesSent) / float64(s.MeasurementsProcessed)
}
