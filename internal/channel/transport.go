// Transport abstraction under the Agora event channel.

package channel

import (
	"Agora/internal/entity"
	"context"
)

// Transport dials one connection to the event server.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one established connection.
type Conn interface {
	// Send writes a single frame.
	Send(ctx context.Context, frame entity.Frame) error
	// Frames yields inbound frames in arrival order and is closed when the connection drops.
	Frames() <-chan entity.Frame
	// Err reports why Frames was closed.
	Err() error
	// Close tears the connection down.
	Close() error
}
