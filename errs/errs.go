// Package errs defines the sentinel errors shared by the tickstream packages.
//
// Errors are grouped the same way callers are expected to react to them:
// malformed input must be discarded and the stream resynchronized, protocol
// state errors fail fast, and the remaining errors describe misuse of an API.
package errs

import "errors"

// Malformed input.
var (
	// ErrInsufficientData indicates a buffer is shorter than the structure it must hold.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrLengthMismatch indicates a declared length disagrees with the bytes present.
	ErrLengthMismatch = errors.New("declared length mismatch")
	// ErrDecompressionFailed indicates a compressed payload decoded to nothing or failed to decode.
	ErrDecompressionFailed = errors.New("payload decompression failed")
	// ErrMalformedBlock indicates a delta block contains an invalid record.
	ErrMalformedBlock = errors.New("malformed delta block")
	// ErrInvalidResponse indicates a response frame or message could not be parsed.
	ErrInvalidResponse = errors.New("invalid response")
)

// Protocol state.
var (
	// ErrSignalNotFound indicates a runtime index has no mapping in the active signal index cache.
	ErrSignalNotFound = errors.New("signal not found for runtime index")
	// ErrUnsupportedByteOrder indicates a native-order payload was produced on a host with a different byte order.
	ErrUnsupportedByteOrder = errors.New("unsupported payload byte order")
	// ErrBaseTimeSlotUnset indicates a compact timestamp references a base-time slot that holds no epoch.
	ErrBaseTimeSlotUnset = errors.New("base time slot is not populated")
	// ErrIndexSpaceExhausted indicates more signals were authorized than runtime indices exist.
	ErrIndexSpaceExhausted = errors.New("runtime index space exhausted")
	// ErrNotSubscribed indicates data arrived or was published before a subscription was established.
	ErrNotSubscribed = errors.New("not subscribed")
	// ErrUnsupportedCommand indicates a subscriber command the publisher does not handle.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// API misuse and capacity.
var (
	// ErrBlockFull indicates a delta block was written past its reserved headroom.
	ErrBlockFull = errors.New("delta block is full")
	// ErrRecordTooLarge indicates a single record cannot fit in an empty packet.
	ErrRecordTooLarge = errors.New("record exceeds maximum packet size")
	// ErrPublisherClosed indicates the publisher has been torn down.
	ErrPublisherClosed = errors.New("publisher is closed")
	// ErrConcurrentAccess indicates a single-producer codec was entered by two callers at once.
	ErrConcurrentAccess = errors.New("concurrent access to single-producer codec")
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)
