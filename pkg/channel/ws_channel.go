package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSChannel implements FrameChannel over a WebSocket connection. Each
// binary message carries exactly one bus frame.
type WSChannel struct {
	// Connection
	conn      *websocket.Conn
	connLock  sync.RWMutex
	writeLock sync.Mutex // gorilla connections allow one concurrent writer

	// Configuration
	address      string
	path         string
	isServer     bool
	server       *http.Server
	readTimeout  time.Duration
	writeTimeout time.Duration

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
	wg     sync.WaitGroup
	closed atomic.Bool
}

// WSChannelConfig configures a WebSocket channel
type WSChannelConfig struct {
	Address      string        // "host:port" format
	Path         string        // URL path, defaults to "/frames"
	IsServer     bool          // true = serve upgrades, false = dial
	ReadTimeout  time.Duration // Read timeout (0 = no timeout)
	WriteTimeout time.Duration // Write timeout (0 = no timeout)
}

// NewWSChannel creates a new WebSocket channel
func NewWSChannel(config WSChannelConfig) (*WSChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	// Set defaults
	if config.Path == "" {
		config.Path = "/frames"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	wc := &WSChannel{
		address:      config.Address,
		path:         config.Path,
		isServer:     config.IsServer,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	if config.IsServer {
		if err := wc.startServer(); err != nil {
			cancel()
			return nil, err
		}
	} else {
		if err := wc.connect(); err != nil {
			cancel()
			return nil, err
		}
	}

	return wc, nil
}

// startServer serves WebSocket upgrades on the configured path
func (wc *WSChannel) startServer() error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  256,
		WriteBufferSize: 256,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wc.path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		// Replace any existing connection
		wc.connLock.Lock()
		if wc.conn != nil {
			wc.conn.Close()
			wc.stats.disconnects.Add(1)
		}
		wc.conn = conn
		wc.stats.connects.Add(1)
		wc.connLock.Unlock()
	})

	wc.server = &http.Server{Addr: wc.address, Handler: mux}

	wc.wg.Add(1)
	go func() {
		defer wc.wg.Done()
		wc.server.ListenAndServe()
	}()

	return nil
}

// connect dials the remote WebSocket server
func (wc *WSChannel) connect() error {
	url := "ws://" + wc.address + wc.path

	conn, _, err := websocket.DefaultDialer.DialContext(wc.ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	wc.connLock.Lock()
	wc.conn = conn
	wc.stats.connects.Add(1)
	wc.connLock.Unlock()

	return nil
}

// Read implements FrameChannel.Read
func (wc *WSChannel) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wc.ctx.Done():
			return nil, ErrChannelClosed
		default:
		}

		// Wait for connection if not available
		var conn *websocket.Conn
		for {
			wc.connLock.RLock()
			conn = wc.conn
			wc.connLock.RUnlock()

			if conn != nil {
				break
			}

			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-wc.ctx.Done():
				return nil, ErrChannelClosed
			}
		}

		// Set read deadline
		if wc.readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(wc.readTimeout))
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			wc.handleReadError(err)
			continue
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		// One binary message = one bus frame
		if len(data) == 0 || len(data) > MaxFrameSize {
			wc.stats.readErrors.Add(1)
			continue
		}

		wc.stats.bytesReceived.Add(uint64(len(data)))
		return data, nil
	}
}

// Write implements FrameChannel.Write
func (wc *WSChannel) Write(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wc.ctx.Done():
		return ErrChannelClosed
	default:
	}

	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	wc.connLock.RLock()
	conn := wc.conn
	wc.connLock.RUnlock()

	if conn == nil {
		wc.stats.writeErrors.Add(1)
		return ErrNoConnection
	}

	wc.writeLock.Lock()
	defer wc.writeLock.Unlock()

	// Set write deadline
	if wc.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(wc.writeTimeout))
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		wc.handleWriteError(err)
		return err
	}

	wc.stats.bytesSent.Add(uint64(len(frame)))
	return nil
}

// Close implements FrameChannel.Close
func (wc *WSChannel) Close() error {
	if !wc.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	wc.cancel()

	if wc.server != nil {
		wc.server.Close()
	}

	wc.connLock.Lock()
	if wc.conn != nil {
		wc.conn.Close()
		wc.stats.disconnects.Add(1)
		wc.conn = nil
	}
	wc.connLock.Unlock()

	wc.wg.Wait()

	return nil
}

// Statistics implements FrameChannel.Statistics
func (wc *WSChannel) Statistics() TransportStats {
	return TransportStats{
		BytesSent:     wc.stats.bytesSent.Load(),
		BytesReceived: wc.stats.bytesReceived.Load(),
		WriteErrors:   wc.stats.writeErrors.Load(),
		ReadErrors:    wc.stats.readErrors.Load(),
		Connects:      wc.stats.connects.Load(),
		Disconnects:   wc.stats.disconnects.Load(),
	}
}

// handleReadError handles read errors and manages connection state
func (wc *WSChannel) handleReadError(err error) {
	wc.stats.readErrors.Add(1)
	wc.dropConnection()
}

// handleWriteError handles write errors and manages connection state
func (wc *WSChannel) handleWriteError(err error) {
	wc.stats.writeErrors.Add(1)
	wc.dropConnection()
}

func (wc *WSChannel) dropConnection() {
	wc.connLock.Lock()
	defer wc.connLock.Unlock()

	if wc.conn != nil {
		wc.conn.Close()
		wc.stats.disconnects.Add(1)
		wc.conn = nil
	}
}

// IsConnected returns true if there is an active connection
func (wc *WSChannel) IsConnected() bool {
	wc.connLock.RLock()
	defer wc.connLock.RUnlock()
	return wc.conn != nil
}
