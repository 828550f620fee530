// Package compact implements the compact measurement record and the base-time
// epoch table it encodes timestamps against.
//
// Record layout (big-endian):
//
//	flags:u8 index:u16 value:f32 [timestamp: 0 | 2 | 4 | 8 bytes]
//
// The flags byte carries six quality categories plus two timestamp bits. When
// FlagBaseTimeOffset is set the timestamp is an offset from the base-time slot
// selected by FlagTimeIndex: two bytes of milliseconds, or four bytes of ticks.
// Otherwise the full eight-byte tick count follows. A codec built without
// timestamps writes none at all.
//
// The flags byte must be read before anything else since it alone determines
// the record length.
//
// The package also builds pattern payloads: a columnar, native byte order image
// of a packet's compact records handed to a black-box compressor from the
// compress package.
package compact
