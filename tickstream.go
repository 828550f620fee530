// Package tickstream streams time-series measurements from a publisher to its
// subscribers over a byte stream, at high sample rates and with little wire
// overhead.
//
// # Architecture
//
// A publisher serves one subscriber connection. On subscription it assigns
// every admitted signal a 16-bit runtime index (package signalindex) and
// announces the mapping. Measurements are then serialized in the negotiated
// compression mode:
//
//   - none: full records with the 128-bit signal id and both string fields
//   - compact: 7 to 15 byte records keyed by runtime index, with timestamps
//     written as offsets from a rotating base time (package compact)
//   - pattern: compact records in a columnar layout run through a payload
//     compressor, sent only when that is smaller (packages compact, compress)
//   - tssc: a stateful delta and run-length codec that exploits signals
//     recurring in the same order every cycle (package tssc)
//
// Opaque buffer blocks travel beside the measurements with sequence numbers
// and are retransmitted until the subscriber confirms them (package publisher).
// Package subscriber decodes every mode, and package transport frames both
// directions onto an io.Writer or joins them in memory.
//
// # Basic Usage
//
// Connecting a publisher and a subscriber in one process:
//
//	session, err := tickstream.Connect(ctx, publisher.DefaultConfig(), tickstream.SessionOptions{
//	    Subscriber: []subscriber.Option{
//	        subscriber.WithMeasurementHandler(func(ms []measurement.Measurement) {
//	            // ...
//	        }),
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	key := tickstream.NewKey("PMU", 1, "substation-a/freq")
//	session.Publisher.Subscribe(publisher.Request{Keys: []measurement.Key{key}}, nil)
//	session.Publisher.Publish([]measurement.Measurement{
//	    measurement.New(key, 59.998, measurement.FromTime(time.Now()), measurement.Normal),
//	})
//	session.Flush(ctx)
//
// Over a network connection, wrap the connection in a transport.StreamTransport
// on the publishing side and feed it to transport.PumpResponses on the
// subscribing side.
package tickstream

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/publisher"
	"github.com/arloliu/tickstream/subscriber"
	"github.com/arloliu/tickstream/transport"
)

// SignalNamespace is the UUID namespace SignalID derives identifiers in.
var SignalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/arloliu/tickstream/signal"))

// NewPublisher creates a publisher for one connection with custom settings.
//
// Example:
//
//	cfg := publisher.DefaultConfig()
//	cfg.CompressionMode = format.ModeCompact
//	pub, err := tickstream.NewPublisher(connID, transport.NewStreamTransport(conn), cfg,
//	    publisher.WithLogger(logger),
//	)
func NewPublisher(connectionID uuid.UUID, tr publisher.Transport, cfg publisher.Config, opts ...publisher.Option) (*publisher.Publisher, error) {
	return publisher.New(connectionID, tr, cfg, opts...)
}

// NewDefaultPublisher creates a publisher with the recommended settings:
//   - delta block (tssc) compression unless the subscriber asks otherwise
//   - packets of at most 32767 bytes
//   - tick resolution timestamps and base-time offsets for compact records
//   - zstd for pattern payloads
//   - buffer blocks retransmitted every 5 seconds until confirmed
func NewDefaultPublisher(connectionID uuid.UUID, tr publisher.Transport, opts ...publisher.Option) (*publisher.Publisher, error) {
	return publisher.New(connectionID, tr, publisher.DefaultConfig(), opts...)
}

// NewSubscriber creates the decoding side of a connection. Its time options
// must match the publisher's configuration.
func NewSubscriber(commands subscriber.CommandSender, opts ...subscriber.Option) (*subscriber.Subscriber, error) {
	return subscriber.New(commands, opts...)
}

// SessionOptions passes options through to the components of a Session.
type SessionOptions struct {
	Publisher  []publisher.Option
	Subscriber []subscriber.Option
	Loopback   []transport.LoopbackOption
}

// Session is a publisher and a subscriber joined by an in-memory loopback.
type Session struct {
	ID         uuid.UUID
	Publisher  *publisher.Publisher
	Subscriber *subscriber.Subscriber
	Loopback   *transport.Loopback
}

// Connect builds and starts a session. The subscriber's time options follow
// cfg; later subscriber options override them.
func Connect(ctx context.Context, cfg publisher.Config, opts SessionOptions) (*Session, error) {
	lb, err := transport.NewLoopback(opts.Loopback...)
	if err != nil {
		return nil, err
	}

	subOpts := append([]subscriber.Option{
		subscriber.WithIncludeTime(cfg.IncludeTime),
		subscriber.WithMillisecondResolution(cfg.UseMillisecondResolution),
	}, opts.Subscriber...)
	sub, err := subscriber.New(lb, subOpts...)
	if err != nil {
		return nil, err
	}

	s := &Session{ID: uuid.New(), Subscriber: sub, Loopback: lb}
	if s.Publisher, err = publisher.New(s.ID, lb, cfg, opts.Publisher...); err != nil {
		return nil, err
	}
	if err := lb.Start(ctx, sub, s.Publisher); err != nil {
		return nil, errors.Join(err, s.Publisher.Close())
	}

	return s, nil
}

// Flush waits until everything sent so far has been handled by both sides.
func (s *Session) Flush(ctx context.Context) error {
	return s.Loopback.Flush(ctx)
}

// Close stops the publisher and then the loopback.
func (s *Session) Close() error {
	return errors.Join(s.Publisher.Close(), s.Loopback.Close())
}

// SignalID returns the stable signal identifier for a point name. The same
// name always yields the same id, on every host.
func SignalID(name string) uuid.UUID {
	return uuid.NewSHA1(SignalNamespace, []byte(name))
}

// NewKey returns the key of the signal named name.
func NewKey(source string, id uint32, name string) measurement.Key {
	return measurement.Key{SignalID: SignalID(name), Source: source, ID: id}
}
