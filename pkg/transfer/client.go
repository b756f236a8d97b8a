package transfer

import (
	"context"
	"fmt"
	"time"

	"canio/isotp-go/pkg/channel"
	"canio/isotp-go/internal/logger"
	"canio/isotp-go/pkg/isotp"
)

// Client sends payloads over a frame channel, driving the flow control
// handshake for multi-frame transfers. Not safe for concurrent Send
// calls.
type Client struct {
	adapter   *isotp.Adapter
	ch        channel.FrameChannel
	fcTimeout time.Duration
	log       logger.Logger
}

// ClientConfig configures a transfer client
type ClientConfig struct {
	Adapter *isotp.Adapter       // Sender-side adapter (required)
	Channel channel.FrameChannel // Frame transport (required)

	// FlowControlTimeout bounds each wait for a peer flow control
	// frame. Defaults to DefaultFlowControlTimeout.
	FlowControlTimeout time.Duration

	Logger logger.Logger
}

// NewClient creates a transfer client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Adapter == nil {
		return nil, ErrNilAdapter
	}
	if config.Channel == nil {
		return nil, ErrNilChannel
	}
	if config.FlowControlTimeout == 0 {
		config.FlowControlTimeout = DefaultFlowControlTimeout
	}
	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}

	return &Client{
		adapter:   config.Adapter,
		ch:        config.Channel,
		fcTimeout: config.FlowControlTimeout,
		log:       config.Logger,
	}, nil
}

// Send transmits one payload, blocking until the transfer is fully
// segmented onto the channel or an error aborts it.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	frames, err := c.adapter.Send(payload)
	if err != nil {
		return err
	}

	for _, frame := range frames {
		if err := c.ch.Write(ctx, frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}

	// Single frame transfers complete immediately
	if !c.adapter.HasPendingTransfer() {
		c.log.Debug("single frame transfer complete: %d bytes", len(payload))
		return nil
	}

	c.log.Info("multi-frame transfer started: %d bytes", len(payload))

	for c.adapter.HasPendingTransfer() {
		if err := c.awaitFlowControl(ctx); err != nil {
			return err
		}

		switch c.adapter.PeerFlowStatus() {
		case isotp.FlowStatusWait:
			c.log.Debug("peer requested WAIT, holding block")
			continue

		case isotp.FlowStatusCTS:
			if err := c.sendBlock(ctx); err != nil {
				return err
			}
		}
	}

	c.log.Info("multi-frame transfer complete: %d bytes", len(payload))
	return nil
}

// awaitFlowControl reads frames until a flow control frame arrives or
// the flow control timeout expires. Non-flow-control traffic read while
// waiting is fed to the adapter and otherwise ignored.
func (c *Client) awaitFlowControl(ctx context.Context) error {
	deadline := time.Now().Add(c.fcTimeout)

	for {
		readCtx, cancel := context.WithDeadline(ctx, deadline)
		frame, err := c.ch.Read(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrFlowControlTimeout, err)
		}

		frameType, ok := isotp.TypeOf(frame)
		if _, _, err := c.adapter.Receive(frame); err != nil {
			// OVERFLOW aborts the transfer; other receive errors on
			// a send-direction adapter are peer misbehavior
			return err
		}

		if ok && frameType == isotp.FrameFlowControl {
			return nil
		}
		c.log.Warn("unexpected %s while awaiting flow control", frameType)
	}
}

// sendBlock transmits one flow-control-granted block of consecutive
// frames, observing the peer's separation time between writes.
func (c *Client) sendBlock(ctx context.Context) error {
	frames, err := c.adapter.SendConsecutiveFrames(0) // peer block size
	if err != nil {
		return err
	}

	gap := isotp.SeparationDuration(c.adapter.PeerSeparationTime())

	for i, frame := range frames {
		if i > 0 {
			if err := sleep(ctx, gap); err != nil {
				return err
			}
		}
		if err := c.ch.Write(ctx, frame); err != nil {
			return fmt.Errorf("write consecutive frame: %w", err)
		}
	}

	c.log.Debug("block sent: %d frames, gap=%s", len(frames), gap)
	return nil
}
