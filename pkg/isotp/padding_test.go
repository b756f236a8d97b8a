package isotp

import (
	"bytes"
	"testing"
	"time"
)

// TestPadFrame tests padding targets and fill byte selection
func TestPadFrame(t *testing.T) {
	tests := []struct {
		name      string
		frame     []byte
		frameType FrameType
		mode      Mode
		enabled   bool
		wantLen   int
		wantFill  uint8
	}{
		{
			name:      "Classic data frame pads to 8",
			frame:     []byte{0x02, 0x11, 0x22},
			frameType: FrameSingle,
			mode:      ModeClassic,
			enabled:   true,
			wantLen:   8,
			wantFill:  DataPaddingByte,
		},
		{
			name:      "Extended data frame pads to 64",
			frame:     []byte{0x21, 0x11},
			frameType: FrameConsecutive,
			mode:      ModeExtended,
			enabled:   true,
			wantLen:   64,
			wantFill:  DataPaddingByte,
		},
		{
			name:      "Flow control pads to 8 even on extended bus",
			frame:     []byte{0x30, 0x04, 0x00},
			frameType: FrameFlowControl,
			mode:      ModeExtended,
			enabled:   true,
			wantLen:   8,
			wantFill:  FlowControlPaddingByte,
		},
		{
			name:      "Padding disabled leaves frame alone",
			frame:     []byte{0x02, 0x11, 0x22},
			frameType: FrameSingle,
			mode:      ModeClassic,
			enabled:   false,
			wantLen:   3,
		},
		{
			name:      "Full frame is not extended",
			frame:     bytes.Repeat([]byte{0x01}, 8),
			frameType: FrameFirst,
			mode:      ModeClassic,
			enabled:   true,
			wantLen:   8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			padded := padFrame(tt.frame, tt.frameType, tt.mode, tt.enabled)

			if len(padded) != tt.wantLen {
				t.Fatalf("Expected length %d, got %d", tt.wantLen, len(padded))
			}

			// Original content preserved
			if !bytes.Equal(padded[:len(tt.frame)], tt.frame) {
				t.Errorf("Frame content altered: %X", padded)
			}

			// Fill bytes correct
			for i := len(tt.frame); i < len(padded); i++ {
				if padded[i] != tt.wantFill {
					t.Errorf("Byte %d: expected fill 0x%02X, got 0x%02X", i, tt.wantFill, padded[i])
				}
			}
		})
	}
}

// TestUnpad tests declared-length truncation
func TestUnpad(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33, 0xAA, 0xAA, 0xAA, 0xAA}

	got := unpad(data, 3)
	if !bytes.Equal(got, []byte{0x11, 0x22, 0x33}) {
		t.Errorf("Expected 3 bytes, got %X", got)
	}

	// Declared length beyond the data returns the data unchanged
	got = unpad(data, 10)
	if !bytes.Equal(got, data) {
		t.Errorf("Expected original data, got %X", got)
	}
}

// TestSeparationDuration tests STmin decoding ranges
func TestSeparationDuration(t *testing.T) {
	tests := []struct {
		stMin uint8
		want  time.Duration
	}{
		{0x00, 0},
		{0x01, 1 * time.Millisecond},
		{0x7F, 127 * time.Millisecond},
		{0xF1, 100 * time.Microsecond},
		{0xF9, 900 * time.Microsecond},
		{0x80, 127 * time.Millisecond}, // reserved
		{0xF0, 127 * time.Millisecond}, // reserved
		{0xFA, 127 * time.Millisecond}, // reserved
	}

	for _, tt := range tests {
		if got := SeparationDuration(tt.stMin); got != tt.want {
			t.Errorf("STmin 0x%02X: expected %s, got %s", tt.stMin, tt.want, got)
		}
	}
}
