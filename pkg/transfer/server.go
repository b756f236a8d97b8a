package transfer

import (
	"context"
	"errors"
	"fmt"

	"canio/isotp-go/pkg/channel"
	"canio/isotp-go/internal/logger"
	"canio/isotp-go/pkg/isotp"
)

// Server receives payloads from a frame channel, answering first frames
// with flow control grants and delivering completed payloads to a
// handler.
type Server struct {
	adapter *isotp.Adapter
	ch      channel.FrameChannel
	handler PayloadHandler
	log     logger.Logger
}

// ServerConfig configures a transfer server
type ServerConfig struct {
	Adapter *isotp.Adapter       // Receiver-side adapter (required)
	Channel channel.FrameChannel // Frame transport (required)
	Handler PayloadHandler       // Called with each completed payload (required)
	Logger  logger.Logger
}

// NewServer creates a transfer server
func NewServer(config ServerConfig) (*Server, error) {
	if config.Adapter == nil {
		return nil, ErrNilAdapter
	}
	if config.Channel == nil {
		return nil, ErrNilChannel
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}

	return &Server{
		adapter: config.Adapter,
		ch:      config.Channel,
		handler: config.Handler,
		log:     config.Logger,
	}, nil
}

// Run processes inbound frames until the context is cancelled or the
// channel closes. Protocol errors reset the current transfer and are
// logged, not fatal: the next first frame starts clean.
func (s *Server) Run(ctx context.Context) error {
	for {
		frame, err := s.ch.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, channel.ErrChannelClosed) {
				return err
			}
			s.log.Warn("channel read failed: %v", err)
			continue
		}

		payload, fc, err := s.adapter.Receive(frame)
		if err != nil {
			s.log.Warn("frame rejected: %v", err)
			continue
		}

		if fc != nil {
			if err := s.ch.Write(ctx, fc); err != nil {
				s.log.Error("flow control write failed: %v", err)
				s.adapter.Reset()
				continue
			}
		}

		if payload != nil {
			s.log.Info("payload received: %d bytes", len(payload))
			s.handler(payload)
		}
	}
}
