package publisher

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/arloliu/tickstream/endian"
	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/section"
)

// packetBuilder accumulates records of one data packet.
type packetBuilder struct {
	header  section.PacketHeader
	records []byte
	members []measurement.Measurement
	limit   int
}

func (b *packetBuilder) reset() {
	b.header.Count = 0
	b.records = b.records[:0]
	b.members = b.members[:0]
}

// publishPacketsLocked packs ms into data packets of full or compact records.
func (p *Publisher) publishPacketsLocked(ms []measurement.Measurement, flags section.DataPacketFlags, frame int64) []error {
	var failures []error

	b := &packetBuilder{
		header:  section.PacketHeader{Flags: flags, FrameTimestamp: frame},
		records: p.packet[:0],
	}
	b.limit = p.cfg.MaxPacketSize - section.ResponseHeaderSize - b.header.Size()

	for i := range ms {
		m := &ms[i]

		var size int
		if p.mode.IsCompact() {
			size = p.codec.EncodedLen(*m)
		} else {
			size = measurement.FullLength(*m)
		}
		if size > b.limit {
			failures = append(failures, p.exceptionLocked(fmt.Errorf("measurement %s needs %d bytes of %d: %w", m.SignalID, size, b.limit, errs.ErrRecordTooLarge)))
			continue
		}
		if len(b.records)+size > b.limit {
			if err := p.flushPacketLocked(b); err != nil {
				failures = append(failures, err)
			}
		}

		var err error
		if p.mode.IsCompact() {
			b.records, err = p.codec.Append(b.records, *m)
		} else {
			b.records, err = measurement.AppendFull(b.records, *m)
		}
		if err != nil {
			failures = append(failures, p.exceptionLocked(fmt.Errorf("encode measurement %s: %w", m.SignalID, err)))
			continue
		}
		b.header.Count++
		if p.mode == format.ModePattern {
			b.members = append(b.members, *m)
		}
	}

	if b.header.Count > 0 {
		if err := p.flushPacketLocked(b); err != nil {
			failures = append(failures, err)
		}
	}
	p.packet = b.records[:0]

	return failures
}

// flushPacketLocked sends the accumulated packet, replacing the compact
// records with a pattern payload when that is smaller.
func (p *Publisher) flushPacketLocked(b *packetBuilder) error {
	defer b.reset()

	header := b.header
	records := b.records

	if p.mode == format.ModePattern && len(b.members) > 0 {
		pattern, ok, err := p.codec.AppendPattern(nil, b.members, p.cfg.PayloadCompression, len(records))
		if err != nil {
			p.logger.Warn("pattern compression failed, sending compact records", slog.Any("error", err))
		}
		if ok {
			header.Flags |= section.FlagCompressed
			header.Flags = header.Flags.WithCompressionOrder(endian.IsNativeLittleEndian())
			records = pattern
		}
		p.stats.PatternCompression.Algorithm = p.cfg.PayloadCompression
		p.stats.PatternCompression.Record(len(b.records), len(pattern), ok)
	}

	payload := header.Append(make([]byte, 0, header.Size()+len(records)))
	payload = append(payload, records...)

	if err := p.sendLocked(section.ResponseDataPacket, payload); err != nil {
		return p.exceptionLocked(fmt.Errorf("send data packet of %d measurements: %w", header.Count, err))
	}
	p.stats.PacketsSent++

	return nil
}

// publishDeltaBlocksLocked streams ms through the delta block encoder, sending
// a block whenever it fills and once more at the end of the batch.
func (p *Publisher) publishDeltaBlocksLocked(ms []measurement.Measurement) []error {
	var failures []error

	for i := range ms {
		m := &ms[i]
		if !p.encoder.CanAcceptMeasurement() {
			if err := p.flushDeltaBlockLocked(); err != nil {
				failures = append(failures, err)
			}
		}

		index := p.cache.Index(m.SignalID)
		err := p.encoder.AddMeasurement(index, int64(m.Timestamp), uint32(m.Flags), float32(m.AdjustedValue()))
		if err != nil {
			failures = append(failures, p.deltaFaultLocked(fmt.Errorf("encode measurement %s: %w", m.SignalID, err)))
		}
	}

	if p.encoder.Count() > 0 {
		if err := p.flushDeltaBlockLocked(); err != nil {
			failures = append(failures, err)
		}
	}

	return failures
}

func (p *Publisher) flushDeltaBlockLocked() error {
	header := section.PacketHeader{
		Flags: section.FlagCompressed.WithCompressionOrder(endian.IsLittleEndian(p.encoder.Engine())),
		Count: uint32(p.encoder.Count()), //nolint:gosec
	}

	payload := header.Append(p.packet[:0])
	payload = p.encoder.AppendTo(payload)
	p.packet = payload[:0]

	if err := p.sendLocked(section.ResponseDataPacket, payload); err != nil {
		return p.deltaFaultLocked(fmt.Errorf("send delta block of %d measurements: %w", header.Count, err))
	}
	p.stats.PacketsSent++

	if err := p.encoder.Clear(); err != nil {
		return p.deltaFaultLocked(err)
	}

	return nil
}

// deltaFaultLocked resets the delta block session after any fault: a partial
// write or a lost block leaves encoder and decoder state out of step.
func (p *Publisher) deltaFaultLocked(err error) error {
	err = p.exceptionLocked(err)

	if resetErr := p.encoder.Reset(); resetErr != nil {
		err = errors.Join(err, resetErr)
	}
	p.stats.CodecResets++
	p.statusLocked("delta block codec reset after fault")

	return err
}
