package isotp

import (
	"bytes"
	"errors"
	"fmt"

	"canio/isotp-go/internal/logger"
)

// Adapter is an ISO-TP segmentation/reassembly codec. It turns payloads
// of up to 4095 bytes into fixed-size bus frames and reassembles received
// frames back into payloads, negotiating flow control along the way.
//
// The adapter is a pure in-memory codec: it performs no I/O, enforces no
// wall-clock pacing, and is not safe for concurrent use. Use one instance
// per direction of a link.
type Adapter struct {
	config Config
	log    logger.Logger
	stats  *Statistics

	tx senderState
	rx receiverState
}

// senderState tracks one in-flight outbound transfer.
type senderState struct {
	pending []byte // full payload still being transmitted, nil when idle
	sent    int    // payload bytes already placed into returned frames
	nextSeq uint8  // next consecutive frame sequence number

	// Last flow control received from the peer
	peerStatus    FlowStatus
	peerBlockSize uint8
	peerSTmin     uint8
}

// receiverState tracks one in-flight inbound transfer.
type receiverState struct {
	receiving        bool
	expectedSeq      uint8
	totalLength      int
	buf              bytes.Buffer
	framesSinceGrant int // unwrapped, unlike expectedSeq
}

// New creates a protocol adapter with the given configuration.
func New(config Config) *Adapter {
	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}

	a := &Adapter{
		config: config,
		log:    config.Logger,
		stats:  NewStatistics(),
	}

	a.log.Info("adapter initialized: mode=%s capacity=%d single_frame_max=%d padding=%t",
		config.Mode, config.Mode.FrameCapacity(), config.Mode.SingleFrameMax(), config.PaddingEnabled)

	return a
}

// Statistics returns the adapter's activity counters.
func (a *Adapter) Statistics() *Statistics {
	return a.stats
}

// Config returns the adapter configuration.
func (a *Adapter) Config() Config {
	return a.config
}

// ==================== Send path ====================

// Send starts a transfer. Payloads that fit a single frame are returned
// as one frame and the transfer is complete. Larger payloads return only
// the first frame; the caller must feed the peer's flow control frame
// through Receive and then call SendConsecutiveFrames for the rest.
func (a *Adapter) Send(payload []byte) ([][]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", ErrInvalidPayload)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d",
			ErrInvalidPayload, len(payload), MaxPayloadSize)
	}

	a.resetSender()

	if len(payload) <= a.config.Mode.SingleFrameMax() {
		frame := a.buildSingleFrame(payload)
		a.stats.txFrames.Add(1)
		a.stats.txPayloads.Add(1)
		a.log.Debug("send single frame: %d bytes, frame=%X", len(payload), frame)
		return [][]byte{frame}, nil
	}

	frame := a.buildFirstFrame(payload)

	a.tx.pending = append([]byte(nil), payload...)
	a.tx.sent = min(len(payload), a.config.Mode.FrameCapacity()-FirstFrameHeaderSize)
	a.tx.nextSeq = 1

	a.stats.txFrames.Add(1)
	a.log.Debug("send first frame: total=%d carried=%d frame=%X", len(payload), a.tx.sent, frame)

	return [][]byte{frame}, nil
}

// SendConsecutiveFrames builds the next batch of consecutive frames for
// the pending transfer. maxFrames bounds the batch; maxFrames <= 0 uses
// the peer's last advertised block size (0 = all remaining frames). When
// the final payload byte has been placed into a frame the pending
// transfer is cleared.
func (a *Adapter) SendConsecutiveFrames(maxFrames int) ([][]byte, error) {
	if a.tx.pending == nil {
		return nil, fmt.Errorf("%w: call Send first", ErrNoPendingTransfer)
	}

	if maxFrames <= 0 {
		maxFrames = int(a.tx.peerBlockSize)
	}

	capacity := a.config.Mode.FrameCapacity()
	var frames [][]byte

	for a.tx.sent < len(a.tx.pending) && (maxFrames == 0 || len(frames) < maxFrames) {
		remaining := a.tx.pending[a.tx.sent:]
		chunk := min(len(remaining), capacity-1)

		frame := make([]byte, 1+chunk)
		frame[0] = byte(FrameConsecutive)<<pciTypeShift | a.tx.nextSeq&pciNibbleMask
		copy(frame[1:], remaining[:chunk])
		frame = padFrame(frame, FrameConsecutive, a.config.Mode, a.config.PaddingEnabled)
		frames = append(frames, frame)

		a.log.Debug("send consecutive frame: seq=%d carried=%d frame=%X", a.tx.nextSeq, chunk, frame)

		a.tx.sent += chunk
		a.tx.nextSeq = (a.tx.nextSeq + 1) % SequenceModulo
		a.stats.txFrames.Add(1)
	}

	if a.tx.sent >= len(a.tx.pending) {
		a.log.Info("transfer segmented: %d bytes sent", a.tx.sent)
		a.stats.txPayloads.Add(1)
		a.tx.pending = nil
	}

	return frames, nil
}

// CreateFlowControlFrame builds a flow control frame. Flow control frames
// are always 8 bytes when padding is enabled, regardless of mode.
func (a *Adapter) CreateFlowControlFrame(status FlowStatus, blockSize, stMin uint8) ([]byte, error) {
	if status > FlowStatusOverflow {
		return nil, fmt.Errorf("%w: flow status %d", ErrInvalidArgument, status)
	}

	frame := []byte{
		byte(FrameFlowControl)<<pciTypeShift | byte(status)&pciNibbleMask,
		blockSize,
		stMin,
	}
	frame = padFrame(frame, FrameFlowControl, a.config.Mode, a.config.PaddingEnabled)

	a.log.Debug("flow control frame: status=%s bs=%d stmin=0x%02X frame=%X",
		status, blockSize, stMin, frame)

	return frame, nil
}

// HasPendingTransfer reports whether an outbound transfer is awaiting
// consecutive frames.
func (a *Adapter) HasPendingTransfer() bool {
	return a.tx.pending != nil
}

// PeerFlowStatus returns the status of the last flow control frame
// received from the peer.
func (a *Adapter) PeerFlowStatus() FlowStatus { return a.tx.peerStatus }

// PeerBlockSize returns the peer's advertised block size (0 = unlimited).
func (a *Adapter) PeerBlockSize() uint8 { return a.tx.peerBlockSize }

// PeerSeparationTime returns the peer's advertised raw STmin byte.
func (a *Adapter) PeerSeparationTime() uint8 { return a.tx.peerSTmin }

func (a *Adapter) buildSingleFrame(payload []byte) []byte {
	var pci []byte
	if a.config.Mode == ModeExtended {
		pci = encodeLengthPCI(FrameSingle, len(payload))
	} else {
		pci = []byte{byte(FrameSingle)<<pciTypeShift | byte(len(payload))}
	}

	frame := append(pci, payload...)
	return padFrame(frame, FrameSingle, a.config.Mode, a.config.PaddingEnabled)
}

func (a *Adapter) buildFirstFrame(payload []byte) []byte {
	pci := encodeLengthPCI(FrameFirst, len(payload))
	chunk := min(len(payload), a.config.Mode.FrameCapacity()-FirstFrameHeaderSize)

	frame := append(pci, payload[:chunk]...)
	return padFrame(frame, FrameFirst, a.config.Mode, a.config.PaddingEnabled)
}

func (a *Adapter) resetSender() {
	a.tx.pending = nil
	a.tx.sent = 0
	a.tx.nextSeq = 0
}

// ==================== Receive path ====================

// Receive processes one inbound frame. Exactly one of the return values
// is meaningful:
//
//	payload != nil  a transfer completed and this is its payload
//	fc != nil       the adapter generated a flow control frame the
//	                caller must transmit back to the peer
//	both nil        frame consumed, nothing to emit
//
// Errors are fatal to the current transfer and never retried internally.
// Receiver-side errors reset the receiver to idle before surfacing.
func (a *Adapter) Receive(raw []byte) (payload []byte, fc []byte, err error) {
	if len(raw) == 0 {
		a.stats.lengthErrors.Add(1)
		return nil, nil, fmt.Errorf("%w: empty frame", ErrFrameLength)
	}
	if len(raw) > a.config.Mode.FrameCapacity() {
		a.stats.lengthErrors.Add(1)
		return nil, nil, fmt.Errorf("%w: frame length %d exceeds capacity %d",
			ErrFrameLength, len(raw), a.config.Mode.FrameCapacity())
	}

	frame, err := DecodeFrame(raw, a.config.Mode)
	if err != nil {
		a.countError(err)
		return nil, nil, err
	}

	a.stats.rxFrames.Add(1)
	a.log.Debug("receive %s: %d bytes, frame=%X", frame.Type, len(raw), raw)

	switch frame.Type {
	case FrameSingle:
		return a.receiveSingle(frame), nil, nil

	case FrameFirst:
		fc, err := a.receiveFirst(frame)
		return nil, fc, err

	case FrameConsecutive:
		return a.receiveConsecutive(frame)

	case FrameFlowControl:
		return nil, nil, a.receiveFlowControl(frame)

	default:
		// DecodeFrame only produces the four known types
		a.stats.protocolErrors.Add(1)
		return nil, nil, fmt.Errorf("%w: unknown frame type %d", ErrProtocol, frame.Type)
	}
}

// Reset forces the receiver back to idle, abandoning any partial
// reassembly.
func (a *Adapter) Reset() {
	a.rx.receiving = false
	a.rx.expectedSeq = 0
	a.rx.totalLength = 0
	a.rx.buf.Reset()
	a.rx.framesSinceGrant = 0
}

// IsReceiving reports whether a multi-frame reassembly is in progress.
func (a *Adapter) IsReceiving() bool {
	return a.rx.receiving
}

func (a *Adapter) receiveSingle(frame *Frame) []byte {
	payload := append([]byte(nil), unpad(frame.Data, frame.Length)...)
	a.stats.rxPayloads.Add(1)
	a.log.Info("single frame received: %d bytes", len(payload))
	return payload
}

func (a *Adapter) receiveFirst(frame *Frame) ([]byte, error) {
	// A first frame always starts a fresh transfer, abandoning any
	// partial reassembly.
	a.Reset()
	a.rx.receiving = true
	a.rx.totalLength = frame.Length

	chunk := min(frame.Length, a.config.Mode.FrameCapacity()-FirstFrameHeaderSize)
	a.rx.buf.Write(unpad(frame.Data, chunk))
	a.rx.expectedSeq = 1

	a.log.Info("first frame received: total=%d carried=%d, granting CTS bs=%d stmin=0x%02X",
		frame.Length, chunk, a.config.BlockSize, a.config.SeparationTime)

	return a.CreateFlowControlFrame(FlowStatusCTS, a.config.BlockSize, a.config.SeparationTime)
}

func (a *Adapter) receiveConsecutive(frame *Frame) (payload []byte, fc []byte, err error) {
	if !a.rx.receiving {
		a.stats.protocolErrors.Add(1)
		return nil, nil, fmt.Errorf("%w: consecutive frame while not receiving", ErrProtocol)
	}

	if frame.Sequence != a.rx.expectedSeq {
		a.stats.sequenceErrors.Add(1)
		expected := a.rx.expectedSeq
		a.Reset()
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrSequence, expected, frame.Sequence)
	}

	remaining := a.rx.totalLength - a.rx.buf.Len()
	chunk := min(remaining, a.config.Mode.FrameCapacity()-1)
	a.rx.buf.Write(unpad(frame.Data, chunk))

	a.rx.expectedSeq = (a.rx.expectedSeq + 1) % SequenceModulo
	a.rx.framesSinceGrant++

	a.log.Debug("consecutive frame: seq=%d carried=%d accumulated=%d/%d",
		frame.Sequence, chunk, a.rx.buf.Len(), a.rx.totalLength)

	if a.rx.buf.Len() >= a.rx.totalLength {
		payload := make([]byte, a.rx.totalLength)
		copy(payload, a.rx.buf.Bytes())
		a.Reset()
		a.stats.rxPayloads.Add(1)
		a.log.Info("reassembly complete: %d bytes", len(payload))
		return payload, nil, nil
	}

	// Block boundary reached: grant another block. The counter is
	// unwrapped so the cadence stays correct past 16 frames.
	if a.config.BlockSize > 0 && a.rx.framesSinceGrant%int(a.config.BlockSize) == 0 {
		fc, err := a.CreateFlowControlFrame(FlowStatusCTS, a.config.BlockSize, a.config.SeparationTime)
		if err != nil {
			return nil, nil, err
		}
		a.log.Debug("block boundary: re-granting CTS after %d frames", a.rx.framesSinceGrant)
		return nil, fc, nil
	}

	return nil, nil, nil
}

func (a *Adapter) receiveFlowControl(frame *Frame) error {
	a.tx.peerStatus = frame.Status
	a.tx.peerBlockSize = frame.BlockSize
	a.tx.peerSTmin = frame.SeparationTime

	a.log.Info("flow control received: status=%s bs=%d stmin=0x%02X",
		frame.Status, frame.BlockSize, frame.SeparationTime)

	if frame.Status == FlowStatusOverflow {
		a.stats.overflowsReceived.Add(1)
		return fmt.Errorf("%w: peer signaled OVERFLOW", ErrFlowControlOverflow)
	}
	return nil
}

func (a *Adapter) countError(err error) {
	switch {
	case errors.Is(err, ErrFrameLength):
		a.stats.lengthErrors.Add(1)
	case errors.Is(err, ErrSequence):
		a.stats.sequenceErrors.Add(1)
	default:
		a.stats.protocolErrors.Add(1)
	}
}
