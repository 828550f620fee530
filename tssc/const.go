package tssc

const (
	tagDefinePoint byte = 0x05
	tagInvalid     byte = 0x06
	tagCommand     byte = 0x07
	tagMask        byte = 0x07

	widthMask      byte = 0x07
	flagPointID    byte = 0x08
	flagQuality    byte = 0x10
	flagTimestamp  byte = 0x20
	codeMask       byte = 0x3F
	runShift            = 6
	runIncrement   byte = 1 << runShift
	maxRunRepeats       = 3
	defineLength        = 3
	commandLength       = 2
	qualityLength       = 4
	maxValueLength      = 4
)

// CommandSessionReset is the embedded command that opens the first block of a
// new session. It is consumed by the decoder and never returned to callers.
const CommandSessionReset byte = 0x01

const (
	// MeasurementHeadroom is the free space a block must keep to accept another
	// measurement. It covers a define record plus the largest measurement record.
	MeasurementHeadroom = 60
	// CommandHeadroom is the free space a block must keep to accept a command.
	CommandHeadroom = 4
	// fastPathBytes is enough buffered input to decode any record without
	// checking each field.
	fastPathBytes = 32
)

// ReadResult is the outcome of Decoder.Read.
type ReadResult int

const (
	// EndOfStream means the buffer does not hold a complete record.
	EndOfStream ReadResult = iota
	// CommandRead means Record.Command holds an embedded command.
	CommandRead
	// MeasurementRead means Record holds a measurement.
	MeasurementRead
)

func (r ReadResult) String() string {
	switch r {
	case EndOfStream:
		return "EndOfStream"
	case CommandRead:
		return "CommandRead"
	case MeasurementRead:
		return "MeasurementRead"
	default:
		return "Unknown"
	}
}

// Record is one decoded item.
type Record struct {
	Index     uint16
	Timestamp int64
	Quality   uint32
	Value     float32
	Command   byte
}

// pointMeta is the per-signal state shared by encoder and decoder. There is no
// per-point header prediction: runs extend the last header written in the block.
type pointMeta struct {
	index        uint16
	prevValue    uint32
	prevQuality  uint32
	expectedNext int
}

func newPointMeta(id int, index uint16) pointMeta {
	return pointMeta{index: index, expectedNext: id + 1}
}

// valueWidth returns the number of low bytes needed to hold xor.
func valueWidth(xor uint32) byte {
	switch {
	case xor == 0:
		return 0
	case xor <= 0xFF:
		return 1
	case xor <= 0xFFFF:
		return 2
	case xor <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}
