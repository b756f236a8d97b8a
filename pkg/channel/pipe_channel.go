package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// PipeChannel is an in-process FrameChannel. NewPipe returns two
// cross-connected ends, used for tests, examples, and loopback bridges.
type PipeChannel struct {
	in  chan []byte
	out chan []byte

	done     chan struct{}
	stopOnce *sync.Once

	stats struct {
		bytesSent     atomic.Uint64
		bytesReceived atomic.Uint64
		writeErrors   atomic.Uint64
		readErrors    atomic.Uint64
	}
}

// NewPipe creates a cross-connected channel pair. buffer bounds the
// number of in-flight frames per direction; <= 0 uses a default of 64.
func NewPipe(buffer int) (*PipeChannel, *PipeChannel) {
	if buffer <= 0 {
		buffer = 64
	}

	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)

	// Closing either end unblocks both
	done := make(chan struct{})
	once := &sync.Once{}

	a := &PipeChannel{in: ba, out: ab, done: done, stopOnce: once}
	b := &PipeChannel{in: ab, out: ba, done: done, stopOnce: once}
	return a, b
}

// Read implements FrameChannel.Read
func (pc *PipeChannel) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-pc.done:
		return nil, ErrChannelClosed
	case frame := <-pc.in:
		pc.stats.bytesReceived.Add(uint64(len(frame)))
		return frame, nil
	}
}

// Write implements FrameChannel.Write
func (pc *PipeChannel) Write(ctx context.Context, frame []byte) error {
	if len(frame) == 0 {
		pc.stats.writeErrors.Add(1)
		return ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		pc.stats.writeErrors.Add(1)
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	cp := make([]byte, len(frame))
	copy(cp, frame)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-pc.done:
		return ErrChannelClosed
	case pc.out <- cp:
		pc.stats.bytesSent.Add(uint64(len(frame)))
		return nil
	}
}

// Close implements FrameChannel.Close. Closing one end closes both.
func (pc *PipeChannel) Close() error {
	pc.stopOnce.Do(func() {
		close(pc.done)
	})
	return nil
}

// Statistics implements FrameChannel.Statistics
func (pc *PipeChannel) Statistics() TransportStats {
	return TransportStats{
		BytesSent:     pc.stats.bytesSent.Load(),
		BytesReceived: pc.stats.bytesReceived.Load(),
		WriteErrors:   pc.stats.writeErrors.Load(),
		ReadErrors:    pc.stats.readErrors.Load(),
	}
}
