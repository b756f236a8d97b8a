package channel

import (
	"context"
	"errors"
)

// MaxFrameSize is the largest bus frame any channel will carry.
// Extended-bus frames are 64 bytes; classic frames are 8.
const MaxFrameSize = 64

// Errors shared by channel implementations
var (
	ErrChannelClosed = errors.New("channel closed")
	ErrNoConnection  = errors.New("no connection")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrEmptyFrame    = errors.New("empty frame")
)

// FrameChannel carries whole bus frames between two protocol adapter
// endpoints. Users implement this interface to plug in TCP, UDP, QUIC,
// WebSocket, NATS, or any custom transport.
type FrameChannel interface {
	// Read returns the next frame from the transport.
	// Blocks until a frame is available or the context is cancelled.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one frame to the transport.
	// Must be safe for concurrent use.
	Write(ctx context.Context, frame []byte) error

	// Close closes the channel and unblocks any pending Read/Write.
	Close() error

	// Statistics returns transport-level statistics.
	// Optional - can return zero values if not tracked.
	Statistics() TransportStats
}

// TransportStats provides transport-level statistics
type TransportStats struct {
	BytesSent     uint64 // Total bytes sent
	BytesReceived uint64 // Total bytes received
	WriteErrors   uint64 // Number of write errors
	ReadErrors    uint64 // Number of read errors
	Connects      uint64 // Number of connections (for connection-oriented transports)
	Disconnects   uint64 // Number of disconnections
}

// ChannelState represents the state of a channel
type ChannelState int

const (
	ChannelStateOpen ChannelState = iota
	ChannelStateClosed
)

// String returns string representation of ChannelState
func (s ChannelState) String() string {
	switch s {
	case ChannelStateOpen:
		return "Open"
	case ChannelStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
