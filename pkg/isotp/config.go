package isotp

import "canio/isotp-go/internal/logger"

// Mode selects the bus frame format
type Mode int

const (
	ModeClassic  Mode = iota // 8-byte frames, 1-byte single frame PCI
	ModeExtended             // 64-byte frames, 2-byte single frame PCI
)

// String returns string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeClassic:
		return "Classic"
	case ModeExtended:
		return "Extended"
	default:
		return "Unknown"
	}
}

// FrameCapacity returns the hard upper bound on any single frame,
// PCI and padding included.
func (m Mode) FrameCapacity() int {
	if m == ModeExtended {
		return ExtendedFrameSize
	}
	return ClassicFrameSize
}

// SingleFrameHeaderSize returns the PCI size of a single frame.
func (m Mode) SingleFrameHeaderSize() int {
	if m == ModeExtended {
		return 2
	}
	return 1
}

// SingleFrameMax returns the largest payload that fits in a single frame.
func (m Mode) SingleFrameMax() int {
	return m.FrameCapacity() - m.SingleFrameHeaderSize()
}

// Config holds adapter configuration. Immutable after construction.
type Config struct {
	// Mode selects classic (8-byte) or extended (64-byte) frames
	Mode Mode

	// PaddingEnabled pads outgoing frames to the frame capacity
	// (data frames) or to 8 bytes (flow control frames)
	PaddingEnabled bool

	// BlockSize is the block size advertised to the peer when this
	// adapter receives a multi-frame transfer. 0 = unlimited.
	BlockSize uint8

	// SeparationTime is the raw STmin byte advertised to the peer.
	SeparationTime uint8

	// Logger for frame-level diagnostics. Defaults to the no-op logger.
	Logger logger.Logger
}

// DefaultConfig returns default adapter configuration
func DefaultConfig() Config {
	return Config{
		Mode:           ModeClassic,
		PaddingEnabled: true,
		BlockSize:      0,
		SeparationTime: 0,
		Logger:         logger.NewNoOpLogger(),
	}
}
