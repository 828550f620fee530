// Package endian provides the byte order engines used by the tickstream wire codecs.
//
// Two orders are in play on the wire. Every envelope field and every compact
// measurement record is big-endian. The pattern payload layout and the delta
// block's fixed-width fields are written in the publishing host's native order,
// and the data packet flags announce which order that was so a receiver can
// refuse a payload it cannot interpret.
//
//	engine := endian.GetNativeEngine()
//	buf = engine.AppendUint32(buf, quality)
//
// All functions are safe for concurrent use; engines are immutable.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines binary.ByteOrder and binary.AppendByteOrder so a single
// value can both read fixed offsets and append to growing buffers.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness reports the host byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 stores 0x00 first on little-endian hosts.
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))

	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNativeLittleEndian reports whether the host is little-endian.
func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

// IsNativeBigEndian reports whether the host is big-endian.
func IsNativeBigEndian() bool {
	return CheckEndianness() == binary.BigEndian
}

// CompareNativeEndian reports whether engine matches the host byte order.
func CompareNativeEndian(engine EndianEngine) bool {
	return engine == CheckEndianness()
}

// IsLittleEndian reports whether engine writes the least significant byte first.
func IsLittleEndian(engine EndianEngine) bool {
	return engine == binary.LittleEndian
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine used for all envelope fields.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// GetNativeEngine returns the engine matching the host byte order.
func GetNativeEngine() EndianEngine {
	if IsNativeLittleEndian() {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// EngineFor returns the little-endian engine when little is true, otherwise big-endian.
func EngineFor(little bool) EndianEngine {
	if little {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// AppendUintN appends the low n bytes (0..8) of v in the engine's order.
func AppendUintN(engine EndianEngine, dst []byte, v uint64, n int) []byte {
	if IsLittleEndian(engine) {
		for i := 0; i < n; i++ {
			dst = append(dst, byte(v>>(8*i)))
		}

		return dst
	}

	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}

	return dst
}

// UintN reads an n byte (0..8) unsigned value written by AppendUintN.
// The caller guarantees len(src) >= n.
func UintN(engine EndianEngine, src []byte, n int) uint64 {
	var v uint64
	if IsLittleEndian(engine) {
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(src[i])
		}

		return v
	}

	for i := 0; i < n; i++ {
		v = v<<8 | uint64(src[i])
	}

	return v
}
