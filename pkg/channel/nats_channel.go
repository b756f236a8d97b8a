package channel

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// NATSChannel implements FrameChannel over a NATS subject pair. Each
// message carries exactly one bus frame. Useful for bridging adapter
// endpoints through existing messaging infrastructure.
type NATSChannel struct {
	nc   *nats.Conn
	sub  *nats.Subscription
	msgs chan *nats.Msg

	// Configuration
	publishSubject string

	// Statistics
	stats struct {
		bytesSent     atomic.Uint64
		bytesReceived atomic.Uint64
		writeErrors   atomic.Uint64
		readErrors    atomic.Uint64
		connects      atomic.Uint64
		disconnects   atomic.Uint64
	}

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NATSChannelConfig configures a NATS channel
type NATSChannelConfig struct {
	URL              string // NATS server URL, defaults to nats.DefaultURL
	PublishSubject   string // Subject this endpoint writes frames to
	SubscribeSubject string // Subject this endpoint reads frames from
	Name             string // Optional connection name
}

// NewNATSChannel creates a new NATS channel
func NewNATSChannel(config NATSChannelConfig) (*NATSChannel, error) {
	if config.PublishSubject == "" || config.SubscribeSubject == "" {
		return nil, fmt.Errorf("publish and subscribe subjects are required")
	}
	if config.URL == "" {
		config.URL = nats.DefaultURL
	}

	opts := []nats.Option{}
	if config.Name != "" {
		opts = append(opts, nats.Name(config.Name))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	msgs := make(chan *nats.Msg, 256)
	sub, err := nc.ChanSubscribe(config.SubscribeSubject, msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", config.SubscribeSubject, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	nch := &NATSChannel{
		nc:             nc,
		sub:            sub,
		msgs:           msgs,
		publishSubject: config.PublishSubject,
		ctx:            ctx,
		cancel:         cancel,
	}
	nch.stats.connects.Add(1)

	return nch, nil
}

// Read implements FrameChannel.Read
func (nch *NATSChannel) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-nch.ctx.Done():
			return nil, ErrChannelClosed
		case msg := <-nch.msgs:
			// One message = one bus frame
			if len(msg.Data) == 0 || len(msg.Data) > MaxFrameSize {
				nch.stats.readErrors.Add(1)
				continue
			}
			nch.stats.bytesReceived.Add(uint64(len(msg.Data)))
			return msg.Data, nil
		}
	}
}

// Write implements FrameChannel.Write
func (nch *NATSChannel) Write(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-nch.ctx.Done():
		return ErrChannelClosed
	default:
	}

	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	if err := nch.nc.Publish(nch.publishSubject, frame); err != nil {
		nch.stats.writeErrors.Add(1)
		return err
	}

	nch.stats.bytesSent.Add(uint64(len(frame)))
	return nil
}

// Close implements FrameChannel.Close
func (nch *NATSChannel) Close() error {
	if !nch.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	nch.cancel()
	nch.sub.Unsubscribe()
	nch.nc.Close()
	nch.stats.disconnects.Add(1)

	return nil
}

// Statistics implements FrameChannel.Statistics
func (nch *NATSChannel) Statistics() TransportStats {
	return TransportStats{
		BytesSent:     nch.stats.bytesSent.Load(),
		BytesReceived: nch.stats.bytesReceived.Load(),
		WriteErrors:   nch.stats.writeErrors.Load(),
		ReadErrors:    nch.stats.readErrors.Load(),
		Connects:      nch.stats.connects.Load(),
		Disconnects:   nch.stats.disconnects.Load(),
	}
}

// IsConnected returns true if the NATS connection is open
func (nch *NATSChannel) IsConnected() bool {
	return nch.nc.IsConnected()
}
