package channel

import (
	"fmt"
	"io"
)

// Stream transports (TCP, QUIC) carry frames with a single length-prefix
// byte. Bus frames never exceed 64 bytes, so one byte is always enough.

// writeFrame writes a length-prefixed frame to a stream.
func writeFrame(w io.Writer, frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	buf := make([]byte, 1+len(frame))
	buf[0] = byte(len(frame))
	copy(buf[1:], frame)

	_, err := w.Write(buf)
	return err
}

// readFrame reads one length-prefixed frame from a stream. A prefix
// outside [1, MaxFrameSize] means the stream has lost framing; the
// caller should drop the connection.
func readFrame(r io.Reader) ([]byte, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := int(prefix[0])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: prefix declares %d bytes", ErrFrameTooLarge, length)
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
