package section

// ResponseCode identifies a publisher to subscriber message.
type ResponseCode uint8

// CommandCode identifies a subscriber to publisher command.
type CommandCode uint8

const (
	ResponseSucceeded              ResponseCode = 0x80
	ResponseFailed                 ResponseCode = 0x81
	ResponseDataPacket             ResponseCode = 0x82
	ResponseUpdateSignalIndexCache ResponseCode = 0x83
	ResponseUpdateBaseTimes        ResponseCode = 0x84
	ResponseDataStartTime          ResponseCode = 0x86
	ResponseProcessingComplete     ResponseCode = 0x87
	ResponseBufferBlock            ResponseCode = 0x88
)

const (
	CommandSubscribe          CommandCode = 0x02
	CommandUnsubscribe        CommandCode = 0x03
	CommandConfirmBufferBlock CommandCode = 0x08
)

// Envelope sizes in bytes.
const (
	ResponseHeaderSize    = 6
	CommandHeaderSize     = 1 + 4
	DataPacketHeaderSize  = 1 + 4
	FrameTimestampSize    = 8
	BufferBlockHeaderSize = 4 + 2
	BaseTimeUpdateSize    = 4 + 8 + 8
	DataStartTimeSize     = 8
	ConfirmationSize      = 4
)

// DefaultMaxPacketSize bounds a whole response frame, header included.
const DefaultMaxPacketSize = 0xFFFF / 2

// MaxPacketSizeLimit is the largest packet size a publisher may be configured
// with. A pattern payload of that size still decodes below
// compress.MaxDecodedSize.
const MaxPacketSizeLimit = 4 << 20

func (c ResponseCode) String() string {
	switch c {
	case ResponseSucceeded:
		return "Succeeded"
	case ResponseFailed:
		return "Failed"
	case ResponseDataPacket:
		return "DataPacket"
	case ResponseUpdateSignalIndexCache:
		return "UpdateSignalIndexCache"
	case ResponseUpdateBaseTimes:
		return "UpdateBaseTimes"
	case ResponseDataStartTime:
		return "DataStartTime"
	case ResponseProcessingComplete:
		return "ProcessingComplete"
	case ResponseBufferBlock:
		return "BufferBlock"
	default:
		return "Unknown"
	}
}

func (c CommandCode) String() string {
	switch c {
	case CommandSubscribe:
		return "Subscribe"
	case CommandUnsubscribe:
		return "Unsubscribe"
	case CommandConfirmBufferBlock:
		return "ConfirmBufferBlock"
	default:
		return "Unknown"
	}
}
