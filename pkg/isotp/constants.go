package isotp

import "errors"

// ISO-TP (ISO 15765-2) protocol constants

// FrameType is the ISO-TP frame type, carried in the high nibble of the
// first PCI byte.
type FrameType uint8

const (
	FrameSingle      FrameType = 0x0 // Complete payload in one frame
	FrameFirst       FrameType = 0x1 // First frame of a multi-frame transfer
	FrameConsecutive FrameType = 0x2 // Continuation frame
	FrameFlowControl FrameType = 0x3 // Receiver pacing frame
)

// String returns string representation of FrameType
func (t FrameType) String() string {
	switch t {
	case FrameSingle:
		return "SingleFrame"
	case FrameFirst:
		return "FirstFrame"
	case FrameConsecutive:
		return "ConsecutiveFrame"
	case FrameFlowControl:
		return "FlowControl"
	default:
		return "Unknown"
	}
}

// FlowStatus is the status nibble of a flow control frame
type FlowStatus uint8

const (
	FlowStatusCTS      FlowStatus = 0 // Continue to send
	FlowStatusWait     FlowStatus = 1 // Pause until next flow control
	FlowStatusOverflow FlowStatus = 2 // Abort - receiver buffer full
)

// String returns string representation of FlowStatus
func (s FlowStatus) String() string {
	switch s {
	case FlowStatusCTS:
		return "CTS"
	case FlowStatusWait:
		return "WAIT"
	case FlowStatusOverflow:
		return "OVERFLOW"
	default:
		return "Unknown"
	}
}

// Frame sizes and payload limits
const (
	ClassicFrameSize  = 8  // Classic bus frame capacity
	ExtendedFrameSize = 64 // Extended bus frame capacity

	// Flow control frames are defined as 8-byte control frames even on
	// extended buses.
	FlowControlFrameSize = 8
	flowControlDataSize  = 3 // PCI + block size + STmin

	FirstFrameHeaderSize = 2 // 12-bit length split across two PCI bytes

	MaxPayloadSize = 4095 // 12-bit length field limit

	SequenceModulo = 16 // Consecutive frame sequence counter wraps mod 16
)

// PCI layout
const (
	pciTypeShift  = 4
	pciNibbleMask = 0x0F
)

// Padding fill bytes. Data frames and flow control frames use distinct
// fill values so padding is attributable on a bus trace.
const (
	DataPaddingByte        uint8 = 0xAA
	FlowControlPaddingByte uint8 = 0x00
)

// Errors
var (
	ErrFrameLength         = errors.New("invalid frame length")
	ErrSequence            = errors.New("sequence number mismatch")
	ErrFlowControlOverflow = errors.New("receiver buffer overflow")
	ErrProtocol            = errors.New("protocol violation")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrNoPendingTransfer   = errors.New("no pending transfer")
	ErrInvalidArgument     = errors.New("invalid argument")
)
