// Package transfer drives ISO-TP adapters over a frame channel. The
// adapter itself is a pure codec; this package supplies the wall-clock
// side of the protocol: separation-time pacing, flow control waits, and
// timeouts.
package transfer

import (
	"context"
	"errors"
	"time"
)

// PayloadHandler receives completed payloads from a Server.
type PayloadHandler func(payload []byte)

// Errors
var (
	ErrFlowControlTimeout = errors.New("timed out waiting for flow control")
	ErrNilAdapter         = errors.New("adapter is required")
	ErrNilChannel         = errors.New("channel is required")
)

// DefaultFlowControlTimeout bounds the wait for a peer's flow control
// frame. ISO 15765-2 names this timeout N_Bs and suggests 1 second.
const DefaultFlowControlTimeout = 1 * time.Second

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
