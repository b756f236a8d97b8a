package isotp

import "time"

// SeparationDuration converts a raw STmin byte to the minimum gap a
// sender must leave between consecutive frames.
//
//	0x00-0x7F  0-127 milliseconds
//	0xF1-0xF9  100-900 microseconds
//
// Reserved values decode to the maximum of 127ms, as ISO 15765-2
// requires of receivers.
func SeparationDuration(stMin uint8) time.Duration {
	switch {
	case stMin <= 0x7F:
		return time.Duration(stMin) * time.Millisecond
	case stMin >= 0xF1 && stMin <= 0xF9:
		return time.Duration(stMin-0xF0) * 100 * time.Microsecond
	default:
		return 127 * time.Millisecond
	}
}
