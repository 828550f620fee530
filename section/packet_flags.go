package section

import "strings"

// DataPacketFlags is the first byte of a data packet payload.
type DataPacketFlags uint8

const (
	// FlagSynchronized marks a frame-aligned packet carrying a frame timestamp.
	FlagSynchronized DataPacketFlags = 1 << 0
	// FlagCompact marks compact measurement records.
	FlagCompact DataPacketFlags = 1 << 1
	// FlagCipherIndex is reserved for payload encryption and never set.
	FlagCipherIndex DataPacketFlags = 1 << 2
	// FlagCompressed marks a compressed payload: a pattern payload when FlagCompact
	// is also set, otherwise a delta block.
	FlagCompressed DataPacketFlags = 1 << 3
	// FlagLittleEndianCompression records that the compressed payload was written
	// in little-endian native order.
	FlagLittleEndianCompression DataPacketFlags = 1 << 4

	// NoFlags marks an unsynchronized packet of full records.
	NoFlags DataPacketFlags = 0
)

// Has reports whether every bit of mask is set.
func (f DataPacketFlags) Has(mask DataPacketFlags) bool {
	return f&mask == mask
}

// IsSynchronized reports whether the packet carries a frame timestamp.
func (f DataPacketFlags) IsSynchronized() bool {
	return f&FlagSynchronized != 0
}

// IsCompact reports whether the records use the compact format.
func (f DataPacketFlags) IsCompact() bool {
	return f&FlagCompact != 0
}

// IsCompressed reports whether the payload is compressed.
func (f DataPacketFlags) IsCompressed() bool {
	return f&FlagCompressed != 0
}

// IsPatternPayload reports whether the payload is a compressed compact record set.
func (f DataPacketFlags) IsPatternPayload() bool {
	return f.Has(FlagCompressed | FlagCompact)
}

// IsDeltaBlock reports whether the payload is a delta block.
func (f DataPacketFlags) IsDeltaBlock() bool {
	return f&FlagCompressed != 0 && f&FlagCompact == 0
}

// IsLittleEndianCompression reports the byte order of a compressed payload.
func (f DataPacketFlags) IsLittleEndianCompression() bool {
	return f&FlagLittleEndianCompression != 0
}

// WithCompressionOrder sets or clears FlagLittleEndianCompression.
func (f DataPacketFlags) WithCompressionOrder(little bool) DataPacketFlags {
	if little {
		return f | FlagLittleEndianCompression
	}

	return f &^ FlagLittleEndianCompression
}

func (f DataPacketFlags) String() string {
	if f == NoFlags {
		return "NoFlags"
	}

	names := make([]string, 0, 5)
	for _, n := range []struct {
		flag DataPacketFlags
		name string
	}{
		{FlagSynchronized, "Synchronized"},
		{FlagCompact, "Compact"},
		{FlagCipherIndex, "CipherIndex"},
		{FlagCompressed, "Compressed"},
		{FlagLittleEndianCompression, "LittleEndianCompression"},
	} {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}
