// Package transport moves publisher responses and subscriber commands across
// a byte stream.
//
// Responses are framed as code:u8, inResponseTo:u8, length:u32 followed by
// the payload; commands as code:u8, length:u32 and the payload. All integers
// are big-endian. StreamTransport and CommandWriter write frames to any
// io.Writer, such as a net.Conn, and PumpResponses and PumpCommands read them
// back.
//
// Loopback joins a publisher and a subscriber in memory over the same framing.
// Frames are queued without bound and delivered on their own goroutines, so a
// publisher that sends while holding its lock never waits on the subscriber.
package transport
