package isotp

import (
	"bytes"
	"errors"
	"testing"
)

func testPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 256)
	}
	return p
}

// roundTrip feeds every frame of a transfer from sender to receiver,
// routing receiver-generated flow control frames back to the sender,
// and returns the reassembled payload.
func roundTrip(t *testing.T, sender, receiver *Adapter, payload []byte) []byte {
	t.Helper()

	frames, err := sender.Send(payload)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var complete []byte
	deliver := func(frame []byte) {
		got, fc, err := receiver.Receive(frame)
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if got != nil {
			complete = got
		}
		if fc != nil {
			if _, _, err := sender.Receive(fc); err != nil {
				t.Fatalf("Sender rejected flow control: %v", err)
			}
		}
	}

	for _, frame := range frames {
		deliver(frame)
	}

	// Pump consecutive frames block by block until the sender is done
	for sender.HasPendingTransfer() {
		batch, err := sender.SendConsecutiveFrames(0)
		if err != nil {
			t.Fatalf("SendConsecutiveFrames failed: %v", err)
		}
		if len(batch) == 0 {
			t.Fatal("Sender produced no frames while transfer pending")
		}
		for _, frame := range batch {
			deliver(frame)
		}
	}

	if complete == nil {
		t.Fatal("Transfer did not complete")
	}
	return complete
}

// TestSingleFrameRoundTrip covers every payload size that fits a single
// frame, in both modes
func TestSingleFrameRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeClassic, ModeExtended} {
		t.Run(mode.String(), func(t *testing.T) {
			config := DefaultConfig()
			config.Mode = mode
			sender := New(config)
			receiver := New(config)

			for n := 1; n <= mode.SingleFrameMax(); n++ {
				payload := testPayload(n)

				frames, err := sender.Send(payload)
				if err != nil {
					t.Fatalf("Send(%d bytes) failed: %v", n, err)
				}
				if len(frames) != 1 {
					t.Fatalf("Expected 1 frame for %d bytes, got %d", n, len(frames))
				}
				if sender.HasPendingTransfer() {
					t.Fatalf("Single frame transfer left pending state (%d bytes)", n)
				}
				if len(frames[0]) != mode.FrameCapacity() {
					t.Errorf("Expected padded frame of %d bytes, got %d", mode.FrameCapacity(), len(frames[0]))
				}

				got, fc, err := receiver.Receive(frames[0])
				if err != nil {
					t.Fatalf("Receive failed for %d bytes: %v", n, err)
				}
				if fc != nil {
					t.Errorf("Single frame produced flow control (%d bytes)", n)
				}
				if !bytes.Equal(got, payload) {
					t.Errorf("Payload mismatch at %d bytes: got %X", n, got)
				}
			}
		})
	}
}

// TestMultiFrameRoundTrip covers multi-frame transfers across modes and
// block sizes
func TestMultiFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		blockSize uint8
		size      int
	}{
		{"Classic small", ModeClassic, 0, 8},
		{"Classic medium", ModeClassic, 0, 100},
		{"Classic block paced", ModeClassic, 4, 100},
		{"Classic max payload", ModeClassic, 0, 4095},
		{"Classic large block", ModeClassic, 20, 1000},
		{"Extended small", ModeExtended, 0, 63},
		{"Extended block paced", ModeExtended, 2, 500},
		{"Extended max payload", ModeExtended, 8, 4095},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			senderConfig := DefaultConfig()
			senderConfig.Mode = tt.mode
			sender := New(senderConfig)

			receiverConfig := DefaultConfig()
			receiverConfig.Mode = tt.mode
			receiverConfig.BlockSize = tt.blockSize
			receiver := New(receiverConfig)

			payload := testPayload(tt.size)
			got := roundTrip(t, sender, receiver, payload)

			if !bytes.Equal(got, payload) {
				t.Errorf("Payload mismatch: %d bytes in, %d bytes out", len(payload), len(got))
			}
			if receiver.IsReceiving() {
				t.Error("Receiver still in receiving state after completion")
			}
		})
	}
}

// TestSequenceWraparound verifies transfers spanning more than 16
// consecutive frames wrap the sequence counter without error
func TestSequenceWraparound(t *testing.T) {
	config := DefaultConfig()
	sender := New(config)
	receiver := New(config)

	// 300 bytes classic: 6 in the first frame + 42 consecutive frames,
	// wrapping the 4-bit counter twice
	payload := testPayload(300)
	got := roundTrip(t, sender, receiver, payload)

	if !bytes.Equal(got, payload) {
		t.Errorf("Payload mismatch after wraparound")
	}
}

// TestFramePadding verifies every produced frame is padded to the
// capacity (data) or to 8 bytes (flow control)
func TestFramePadding(t *testing.T) {
	config := DefaultConfig()
	config.Mode = ModeExtended
	sender := New(config)

	frames, err := sender.Send(testPayload(200))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	batch, err := sender.SendConsecutiveFrames(0)
	if err != nil {
		t.Fatalf("SendConsecutiveFrames failed: %v", err)
	}

	for _, frame := range append(frames, batch...) {
		if len(frame) != ExtendedFrameSize {
			t.Errorf("Data frame length %d, expected %d", len(frame), ExtendedFrameSize)
		}
	}

	fc, err := sender.CreateFlowControlFrame(FlowStatusCTS, 4, 10)
	if err != nil {
		t.Fatalf("CreateFlowControlFrame failed: %v", err)
	}
	if len(fc) != FlowControlFrameSize {
		t.Errorf("Flow control frame length %d, expected %d even on extended bus", len(fc), FlowControlFrameSize)
	}
}

// TestPaddingDisabled verifies unpadded peers interoperate
func TestPaddingDisabled(t *testing.T) {
	senderConfig := DefaultConfig()
	senderConfig.PaddingEnabled = false
	sender := New(senderConfig)

	receiver := New(DefaultConfig())

	frames, err := sender.Send([]byte{0x11, 0x22, 0x33})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(frames[0]) != 4 {
		t.Errorf("Expected unpadded 4-byte frame, got %d bytes", len(frames[0]))
	}

	got, _, err := receiver.Receive(frames[0])
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0x11, 0x22, 0x33}) {
		t.Errorf("Payload mismatch: %X", got)
	}

	// Multi-frame, both unpadded
	receiverConfig := DefaultConfig()
	receiverConfig.PaddingEnabled = false
	receiver2 := New(receiverConfig)

	payload := testPayload(50)
	got = roundTrip(t, sender, receiver2, payload)
	if !bytes.Equal(got, payload) {
		t.Error("Unpadded multi-frame round trip failed")
	}
}

// TestSendBoundaries pins the single/multi frame switchover and the
// payload size limits
func TestSendBoundaries(t *testing.T) {
	classic := New(DefaultConfig())

	// 7 bytes: single frame
	frames, err := classic.Send(testPayload(7))
	if err != nil {
		t.Fatalf("Send(7) failed: %v", err)
	}
	if frameType, _ := TypeOf(frames[0]); frameType != FrameSingle {
		t.Errorf("7 bytes: expected single frame, got %s", frameType)
	}

	// 8 bytes: forces first frame + flow control handshake
	frames, err = classic.Send(testPayload(8))
	if err != nil {
		t.Fatalf("Send(8) failed: %v", err)
	}
	if frameType, _ := TypeOf(frames[0]); frameType != FrameFirst {
		t.Errorf("8 bytes: expected first frame, got %s", frameType)
	}
	if !classic.HasPendingTransfer() {
		t.Error("8 bytes: expected pending transfer")
	}

	extendedConfig := DefaultConfig()
	extendedConfig.Mode = ModeExtended
	extended := New(extendedConfig)

	// 62 bytes: single frame on extended bus
	frames, err = extended.Send(testPayload(62))
	if err != nil {
		t.Fatalf("Send(62) failed: %v", err)
	}
	if frameType, _ := TypeOf(frames[0]); frameType != FrameSingle {
		t.Errorf("62 bytes extended: expected single frame, got %s", frameType)
	}

	// 4095 bytes: largest accepted payload
	if _, err := extended.Send(testPayload(MaxPayloadSize)); err != nil {
		t.Errorf("Send(4095) failed: %v", err)
	}

	// 4096 bytes: rejected
	if _, err := extended.Send(testPayload(MaxPayloadSize + 1)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Send(4096): expected ErrInvalidPayload, got %v", err)
	}

	// Empty payload: rejected
	if _, err := classic.Send(nil); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Send(empty): expected ErrInvalidPayload, got %v", err)
	}
}

// TestReceiveFrameLengthValidation covers empty and oversize frames
func TestReceiveFrameLengthValidation(t *testing.T) {
	adapter := New(DefaultConfig())

	if _, _, err := adapter.Receive(nil); !errors.Is(err, ErrFrameLength) {
		t.Errorf("Empty frame: expected ErrFrameLength, got %v", err)
	}

	if _, _, err := adapter.Receive(make([]byte, ClassicFrameSize+1)); !errors.Is(err, ErrFrameLength) {
		t.Errorf("Oversize frame: expected ErrFrameLength, got %v", err)
	}
}

// TestSequenceError verifies out-of-order frames reset the receiver
func TestSequenceError(t *testing.T) {
	sender := New(DefaultConfig())
	receiver := New(DefaultConfig())

	frames, err := sender.Send(testPayload(100))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, _, err := receiver.Receive(frames[0]); err != nil {
		t.Fatalf("First frame rejected: %v", err)
	}

	batch, err := sender.SendConsecutiveFrames(0)
	if err != nil {
		t.Fatalf("SendConsecutiveFrames failed: %v", err)
	}

	// Deliver frame 0, skip frame 1, deliver frame 2
	if _, _, err := receiver.Receive(batch[0]); err != nil {
		t.Fatalf("Frame 0 rejected: %v", err)
	}
	_, _, err = receiver.Receive(batch[2])
	if !errors.Is(err, ErrSequence) {
		t.Fatalf("Expected ErrSequence, got %v", err)
	}

	if receiver.IsReceiving() {
		t.Error("Receiver not reset to idle after sequence error")
	}
	if receiver.Statistics().SequenceErrors() != 1 {
		t.Errorf("Expected 1 sequence error, got %d", receiver.Statistics().SequenceErrors())
	}

	// A fresh first frame starts a clean transfer
	frames, err = sender.Send(testPayload(20))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, _, err := receiver.Receive(frames[0]); err != nil {
		t.Fatalf("Receiver did not recover after sequence error: %v", err)
	}
}

// TestConsecutiveWhileIdle verifies the protocol violation path
func TestConsecutiveWhileIdle(t *testing.T) {
	receiver := New(DefaultConfig())

	frame := []byte{0x21, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	_, _, err := receiver.Receive(frame)
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected ErrProtocol, got %v", err)
	}
}

// TestFlowControlOverflow verifies OVERFLOW propagation to the sender
func TestFlowControlOverflow(t *testing.T) {
	sender := New(DefaultConfig())
	receiver := New(DefaultConfig())

	if _, err := sender.Send(testPayload(100)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	overflow, err := receiver.CreateFlowControlFrame(FlowStatusOverflow, 0, 0)
	if err != nil {
		t.Fatalf("CreateFlowControlFrame failed: %v", err)
	}

	_, _, err = sender.Receive(overflow)
	if !errors.Is(err, ErrFlowControlOverflow) {
		t.Errorf("Expected ErrFlowControlOverflow, got %v", err)
	}
	if sender.Statistics().OverflowsReceived() != 1 {
		t.Errorf("Expected 1 overflow recorded, got %d", sender.Statistics().OverflowsReceived())
	}
}

// TestFlowControlNegotiation verifies the sender learns peer parameters
func TestFlowControlNegotiation(t *testing.T) {
	sender := New(DefaultConfig())
	receiver := New(DefaultConfig())

	fc, err := receiver.CreateFlowControlFrame(FlowStatusCTS, 5, 0x14)
	if err != nil {
		t.Fatalf("CreateFlowControlFrame failed: %v", err)
	}

	if _, _, err := sender.Receive(fc); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if sender.PeerFlowStatus() != FlowStatusCTS {
		t.Errorf("Expected CTS, got %s", sender.PeerFlowStatus())
	}
	if sender.PeerBlockSize() != 5 {
		t.Errorf("Expected block size 5, got %d", sender.PeerBlockSize())
	}
	if sender.PeerSeparationTime() != 0x14 {
		t.Errorf("Expected STmin 0x14, got 0x%02X", sender.PeerSeparationTime())
	}
}

// TestIntermediateFlowControl verifies block-boundary re-grants,
// including cadence past 16 frames
func TestIntermediateFlowControl(t *testing.T) {
	senderConfig := DefaultConfig()
	sender := New(senderConfig)

	receiverConfig := DefaultConfig()
	receiverConfig.BlockSize = 4
	receiver := New(receiverConfig)

	// 100 bytes classic: first frame carries 6, then 14 consecutive
	// frames. Grants expected after frames 4, 8, and 12.
	frames, err := sender.Send(testPayload(100))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	_, fc, err := receiver.Receive(frames[0])
	if err != nil {
		t.Fatalf("First frame rejected: %v", err)
	}
	if fc == nil {
		t.Fatal("First frame produced no flow control")
	}
	if _, _, err := sender.Receive(fc); err != nil {
		t.Fatalf("Sender rejected flow control: %v", err)
	}

	grants := 0
	var payload []byte
	for sender.HasPendingTransfer() {
		batch, err := sender.SendConsecutiveFrames(0)
		if err != nil {
			t.Fatalf("SendConsecutiveFrames failed: %v", err)
		}
		if len(batch) > 4 {
			t.Fatalf("Block size not honored: %d frames in one block", len(batch))
		}
		for _, frame := range batch {
			got, fc, err := receiver.Receive(frame)
			if err != nil {
				t.Fatalf("Receive failed: %v", err)
			}
			if got != nil {
				payload = got
			}
			if fc != nil {
				grants++
				if _, _, err := sender.Receive(fc); err != nil {
					t.Fatalf("Sender rejected re-grant: %v", err)
				}
			}
		}
	}

	if payload == nil {
		t.Fatal("Transfer did not complete")
	}
	if grants != 3 {
		t.Errorf("Expected 3 intermediate grants, got %d", grants)
	}
}

// TestSendConsecutiveFrames_MaxFrames verifies the caller-supplied
// frame limit and the no-pending error
func TestSendConsecutiveFrames_MaxFrames(t *testing.T) {
	sender := New(DefaultConfig())

	if _, err := sender.SendConsecutiveFrames(0); !errors.Is(err, ErrNoPendingTransfer) {
		t.Errorf("Expected ErrNoPendingTransfer, got %v", err)
	}

	// 100 bytes: 94 remaining after the first frame, 14 consecutive
	// frames total
	if _, err := sender.Send(testPayload(100)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	batch, err := sender.SendConsecutiveFrames(5)
	if err != nil {
		t.Fatalf("SendConsecutiveFrames failed: %v", err)
	}
	if len(batch) != 5 {
		t.Errorf("Expected 5 frames, got %d", len(batch))
	}
	if !sender.HasPendingTransfer() {
		t.Error("Transfer should still be pending after partial batch")
	}

	batch, err = sender.SendConsecutiveFrames(0)
	if err != nil {
		t.Fatalf("SendConsecutiveFrames failed: %v", err)
	}
	if len(batch) != 9 {
		t.Errorf("Expected 9 remaining frames, got %d", len(batch))
	}
	if sender.HasPendingTransfer() {
		t.Error("Transfer should be complete")
	}
}

// TestFirstFrameRestartsReassembly verifies a new first frame abandons a
// partial transfer
func TestFirstFrameRestartsReassembly(t *testing.T) {
	sender := New(DefaultConfig())
	receiver := New(DefaultConfig())

	frames, err := sender.Send(testPayload(100))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, _, err := receiver.Receive(frames[0]); err != nil {
		t.Fatalf("First frame rejected: %v", err)
	}
	if !receiver.IsReceiving() {
		t.Fatal("Receiver not in receiving state")
	}

	// Abandon mid-transfer: a fresh transfer round-trips cleanly
	sender2 := New(DefaultConfig())
	payload := testPayload(40)
	got := roundTrip(t, sender2, receiver, payload)
	if !bytes.Equal(got, payload) {
		t.Error("Restarted transfer did not round-trip")
	}
}

// TestStatistics verifies frame and payload counters
func TestStatistics(t *testing.T) {
	sender := New(DefaultConfig())
	receiver := New(DefaultConfig())

	payload := testPayload(100)
	roundTrip(t, sender, receiver, payload)

	// 1 first frame + 14 consecutive frames
	if got := sender.Statistics().TxFrames(); got != 15 {
		t.Errorf("Expected 15 TX frames, got %d", got)
	}
	if got := sender.Statistics().TxPayloads(); got != 1 {
		t.Errorf("Expected 1 TX payload, got %d", got)
	}
	if got := receiver.Statistics().RxFrames(); got != 15 {
		t.Errorf("Expected 15 RX frames, got %d", got)
	}
	if got := receiver.Statistics().RxPayloads(); got != 1 {
		t.Errorf("Expected 1 RX payload, got %d", got)
	}
}

// TestReset verifies explicit receiver reset
func TestReset(t *testing.T) {
	sender := New(DefaultConfig())
	receiver := New(DefaultConfig())

	frames, err := sender.Send(testPayload(100))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, _, err := receiver.Receive(frames[0]); err != nil {
		t.Fatalf("First frame rejected: %v", err)
	}

	receiver.Reset()
	if receiver.IsReceiving() {
		t.Error("Receiver still receiving after Reset")
	}
}
