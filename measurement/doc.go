// Package measurement defines the time-series sample carried by every wire format.
//
// A Measurement is a value, a timestamp in Ticks, a 32-bit quality word and the
// Key of the signal it belongs to. Ordinary measurements are encoded by the
// compact, full and delta block codecs; a measurement carrying a Buffer is a
// buffer block, an opaque payload delivered through the acknowledged side channel.
//
// The full serializable record (AppendFull / ParseFull) is the uncompressed wire
// format used when a connection negotiates no compression at all.
package measurement
