package main

import (
	"context"
	"errors"

	"canio/isotp-go/pkg/channel"
	"canio/isotp-go/internal/logger"
	"canio/isotp-go/pkg/isotp"
)

// splitChannel owns all reads on one transport and demultiplexes inbound
// frames: flow control frames go to the outbound transfer client, data
// frames to the inbound transfer server. Both directions share the
// transport for writes, so one bidirectional link needs only one
// channel per side.
type splitChannel struct {
	ch  channel.FrameChannel
	log logger.Logger

	data chan []byte
	fc   chan []byte
}

func newSplitChannel(ch channel.FrameChannel, log logger.Logger) *splitChannel {
	return &splitChannel{
		ch:   ch,
		log:  log,
		data: make(chan []byte, 64),
		fc:   make(chan []byte, 64),
	}
}

// run pumps frames from the transport into the two queues until the
// context is cancelled or the transport closes.
func (s *splitChannel) run(ctx context.Context) error {
	for {
		frame, err := s.ch.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, channel.ErrChannelClosed) {
				return err
			}
			s.log.Warn("read failed: %v", err)
			continue
		}

		queue := s.data
		if frameType, ok := isotp.TypeOf(frame); ok && frameType == isotp.FrameFlowControl {
			queue = s.fc
		}

		select {
		case queue <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *splitChannel) dataView() channel.FrameChannel {
	return &frameView{src: s.data, under: s.ch}
}

func (s *splitChannel) fcView() channel.FrameChannel {
	return &frameView{src: s.fc, under: s.ch}
}

// frameView is one demultiplexed half of a splitChannel. Reads come from
// the splitter queue; writes, close, and statistics pass through to the
// underlying transport.
type frameView struct {
	src   <-chan []byte
	under channel.FrameChannel
}

func (v *frameView) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-v.src:
		return frame, nil
	}
}

func (v *frameView) Write(ctx context.Context, frame []byte) error {
	return v.under.Write(ctx, frame)
}

func (v *frameView) Close() error {
	return v.under.Close()
}

func (v *frameView) Statistics() channel.TransportStats {
	return v.under.Statistics()
}
