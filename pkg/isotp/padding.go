package isotp

// fillByte selects the padding value for a frame type. Flow control
// frames carry a distinct fill so padding stays attributable on a trace.
func fillByte(frameType FrameType) uint8 {
	if frameType == FrameFlowControl {
		return FlowControlPaddingByte
	}
	return DataPaddingByte
}

// padFrame pads a frame to its target size. Data frames pad to the frame
// capacity of the mode; flow control frames always pad to 8 bytes,
// independent of classic/extended.
func padFrame(frame []byte, frameType FrameType, mode Mode, enabled bool) []byte {
	if !enabled {
		return frame
	}

	target := mode.FrameCapacity()
	if frameType == FrameFlowControl {
		target = FlowControlFrameSize
	}

	if len(frame) >= target {
		return frame
	}

	padded := make([]byte, target)
	n := copy(padded, frame)
	fill := fillByte(frameType)
	for i := n; i < target; i++ {
		padded[i] = fill
	}
	return padded
}

// unpad truncates frame content to the declared byte count, discarding
// trailing fill. The physical frame length is never trusted: if the frame
// carries fewer bytes than declared the caller has already rejected it,
// so the shorter slice is returned as-is.
func unpad(data []byte, declared int) []byte {
	if declared > len(data) {
		return data
	}
	return data[:declared]
}
