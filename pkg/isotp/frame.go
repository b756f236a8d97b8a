package isotp

import "fmt"

// Frame is a decoded ISO-TP frame. Type selects which fields are
// meaningful; Data holds the bytes following the PCI, padding included.
type Frame struct {
	Type FrameType

	// Length is the declared payload length (single frame) or the
	// declared total transfer length (first frame).
	Length int

	// Sequence is the 4-bit consecutive frame counter.
	Sequence uint8

	// Flow control fields
	Status         FlowStatus
	BlockSize      uint8
	SeparationTime uint8

	// Data is the frame content after the PCI bytes.
	Data []byte
}

// DecodeFrame classifies raw frame bytes into a Frame. The caller is
// expected to have bounded the overall frame length already; DecodeFrame
// enforces the per-type minimums and the declared-length consistency.
func DecodeFrame(raw []byte, mode Mode) (*Frame, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrFrameLength)
	}

	frameType := FrameType(raw[0] >> pciTypeShift & pciNibbleMask)

	switch frameType {
	case FrameSingle:
		return decodeSingleFrame(raw, mode)

	case FrameFirst:
		if len(raw) < 3 {
			return nil, fmt.Errorf("%w: first frame shorter than 3 bytes", ErrFrameLength)
		}
		total := int(raw[0]&pciNibbleMask)<<8 | int(raw[1])
		if total == 0 {
			return nil, fmt.Errorf("%w: first frame declares zero length", ErrProtocol)
		}
		return &Frame{
			Type:   FrameFirst,
			Length: total,
			Data:   raw[FirstFrameHeaderSize:],
		}, nil

	case FrameConsecutive:
		return &Frame{
			Type:     FrameConsecutive,
			Sequence: raw[0] & pciNibbleMask,
			Data:     raw[1:],
		}, nil

	case FrameFlowControl:
		if len(raw) < flowControlDataSize {
			return nil, fmt.Errorf("%w: flow control frame shorter than 3 bytes", ErrFrameLength)
		}
		status := FlowStatus(raw[0] & pciNibbleMask)
		if status > FlowStatusOverflow {
			return nil, fmt.Errorf("%w: unknown flow status %d", ErrProtocol, status)
		}
		return &Frame{
			Type:           FrameFlowControl,
			Status:         status,
			BlockSize:      raw[1],
			SeparationTime: raw[2],
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown frame type %d", ErrProtocol, frameType)
	}
}

// decodeSingleFrame handles the mode-dependent single frame PCI:
// 1 byte with a 4-bit length on classic buses, 2 bytes with a 12-bit
// length on extended buses.
func decodeSingleFrame(raw []byte, mode Mode) (*Frame, error) {
	var length, dataStart int

	if mode == ModeExtended {
		if len(raw) < 2 {
			return nil, fmt.Errorf("%w: extended single frame shorter than 2 bytes", ErrFrameLength)
		}
		length = int(raw[0]&pciNibbleMask)<<8 | int(raw[1])
		dataStart = 2
	} else {
		length = int(raw[0] & pciNibbleMask)
		dataStart = 1
	}

	if len(raw) < dataStart+length {
		return nil, fmt.Errorf("%w: single frame declares %d bytes, carries %d",
			ErrFrameLength, length, len(raw)-dataStart)
	}

	return &Frame{
		Type:   FrameSingle,
		Length: length,
		Data:   raw[dataStart:],
	}, nil
}

// encodeLengthPCI builds the 2-byte PCI carrying a 12-bit length, used by
// first frames and by extended-mode single frames.
func encodeLengthPCI(frameType FrameType, length int) []byte {
	return []byte{
		byte(frameType)<<pciTypeShift | byte(length>>8)&pciNibbleMask,
		byte(length),
	}
}

// TypeOf returns the frame type nibble of a raw frame without further
// validation. ok is false for an empty frame.
func TypeOf(raw []byte) (frameType FrameType, ok bool) {
	if len(raw) == 0 {
		return 0, false
	}
	return FrameType(raw[0] >> pciTypeShift & pciNibbleMask), true
}

// String returns a string representation of the frame
func (f *Frame) String() string {
	switch f.Type {
	case FrameSingle, FrameFirst:
		return fmt.Sprintf("Frame{%s, Length=%d}", f.Type, f.Length)
	case FrameConsecutive:
		return fmt.Sprintf("Frame{%s, Seq=%d}", f.Type, f.Sequence)
	case FrameFlowControl:
		return fmt.Sprintf("Frame{%s, Status=%s, BS=%d, STmin=0x%02X}",
			f.Type, f.Status, f.BlockSize, f.SeparationTime)
	default:
		return fmt.Sprintf("Frame{Unknown %d}", f.Type)
	}
}
