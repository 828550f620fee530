// Package publisher implements the per-connection publishing engine.
//
// A Publisher owns everything one subscriber connection needs: the signal
// index cache built at subscription, the compact codec and its base-time
// table, the delta block encoder, and the buffer block cache with its
// retransmission timer. Measurements are pushed in with Publish or
// PublishFrame, serialized in the negotiated compression mode, framed into
// packets no larger than the configured maximum, and handed to a Transport.
//
// All mutable state sits behind one mutex. Publish, the acknowledgement path
// and both timer callbacks take it, so the single-producer codecs are never
// entered concurrently and a timer can never fire against a closed publisher.
// Handlers run with that lock held and must not call back into the publisher.
//
//	pub, err := publisher.New(connID, transport, publisher.DefaultConfig(),
//		publisher.WithLogger(logger),
//		publisher.WithExceptionHandler(func(err error) { ... }),
//	)
//	err = pub.Subscribe(publisher.Request{Keys: keys}, authorize)
//	err = pub.Publish(batch)
package publisher
