package isotp

import "sync/atomic"

// Statistics tracks adapter activity. All counters are safe for
// concurrent reads while the adapter mutates them.
type Statistics struct {
	txFrames   atomic.Uint64
	rxFrames   atomic.Uint64
	txPayloads atomic.Uint64
	rxPayloads atomic.Uint64

	sequenceErrors    atomic.Uint64
	lengthErrors      atomic.Uint64
	protocolErrors    atomic.Uint64
	overflowsReceived atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// TxFrames returns the number of frames produced
func (s *Statistics) TxFrames() uint64 { return s.txFrames.Load() }

// RxFrames returns the number of frames consumed
func (s *Statistics) RxFrames() uint64 { return s.rxFrames.Load() }

// TxPayloads returns the number of payloads fully segmented
func (s *Statistics) TxPayloads() uint64 { return s.txPayloads.Load() }

// RxPayloads returns the number of payloads fully reassembled
func (s *Statistics) RxPayloads() uint64 { return s.rxPayloads.Load() }

// SequenceErrors returns the number of out-of-order consecutive frames
func (s *Statistics) SequenceErrors() uint64 { return s.sequenceErrors.Load() }

// LengthErrors returns the number of malformed-length frames
func (s *Statistics) LengthErrors() uint64 { return s.lengthErrors.Load() }

// ProtocolErrors returns the number of structural protocol violations
func (s *Statistics) ProtocolErrors() uint64 { return s.protocolErrors.Load() }

// OverflowsReceived returns the number of OVERFLOW flow statuses received
func (s *Statistics) OverflowsReceived() uint64 { return s.overflowsReceived.Load() }

// Reset resets all counters to zero
func (s *Statistics) Reset() {
	s.txFrames.Store(0)
	s.rxFrames.Store(0)
	s.txPayloads.Store(0)
	s.rxPayloads.Store(0)
	s.sequenceErrors.Store(0)
	s.lengthErrors.Store(0)
	s.protocolErrors.Store(0)
	s.overflowsReceived.Store(0)
}
