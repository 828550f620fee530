// Package tssc implements the delta block codec: a stateful, order-sensitive
// measurement codec that remembers, per signal, the last value, quality and the
// signal that followed it, and writes only what changed.
//
// # Records
//
// A block is a sequence of records. The low three bits of the first byte
// select the record kind:
//
//	0..4  measurement; the bits are the value delta width in bytes
//	5     define point: 0x05 index:u16
//	6     invalid
//	7     command: 0x07 code:u8
//
// A measurement header byte packs a six-bit code and a two-bit run count:
//
//	bit 0-2  value delta width (0..4)
//	bit 3    point id differs from the expected next point
//	bit 4    quality changed
//	bit 5    timestamp changed
//	bit 6-7  number of following records that reuse this code without a header
//
// The header is followed by the fields its bits select, in order: the point id
// (uvarint), the quality XOR (4 bytes), the low bytes of the value XOR, and the
// timestamp XOR (uvarint). A run shares one header byte across up to four
// consecutive records with the same code.
//
// Fixed-width fields use the host's native byte order, so a block must be
// flagged with that order when it leaves the process.
//
// # Sessions
//
// Point ids are dense, append-only and assigned in first-sighting order on both
// sides. State persists across blocks for the life of a session. Resetting the
// encoder starts a new session; the first block after a reset opens with
// CommandSessionReset, and a decoder reading it discards its own state.
//
// Encoder and Decoder each admit one caller at a time and report
// errs.ErrConcurrentAccess rather than corrupting state.
package tssc
