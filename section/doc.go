// Package section defines the binary envelopes exchanged between a publisher and
// its subscribers.
//
// Every message travels in a response frame:
//
//	┌──────────────────────────────────────────────┐
//	│ ResponseHeader (6 bytes)                     │
//	│  - Code (1 byte): ResponseCode               │
//	│  - InResponseTo (1 byte): CommandCode        │
//	│  - Length (4 bytes): payload length          │
//	├──────────────────────────────────────────────┤
//	│ Payload (Length bytes)                       │
//	└──────────────────────────────────────────────┘
//
// Payload layouts by response code:
//
//	DataPacket             flags:u8 [frameTimestamp:i64] count:u32 records...
//	BufferBlock            sequence:u32 signalIndex:u16 payload...
//	UpdateBaseTimes        activeIndex:u32 slot0:i64 slot1:i64
//	UpdateSignalIndexCache signal index cache image
//	DataStartTime          timestamp:i64
//	ProcessingComplete     empty
//
// The frame timestamp is present only when DataPacketFlags has Synchronized set.
// All integers are big-endian. The records of a compressed data packet use the
// byte order announced by the LittleEndianCompression flag.
package section
