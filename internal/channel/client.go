// Client side of the Agora event channel.
// One goroutine (Run) owns the connection and invokes every listener, so handlers
// run to completion one at a time in arrival order.

package channel

import (
	"Agora/internal/entity"
	"Agora/internal/metrics"
	"Agora/pkg/log"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Upper bound for a single outbound write.
const sendTimeout = 5 * time.Second

// Client implements Channel on top of a Transport with reconnects.
type Client struct {
	transport      Transport
	reconnectDelay time.Duration
	metrics        metrics.Service
	logger         log.Logger

	// roomMu orders room frames on the wire, taken before mu
	roomMu    sync.Mutex
	mu        sync.RWMutex
	conn      Conn
	listeners map[string][]*Listener
	// Rooms the session wants to be in, re-sent after every reconnect
	rooms map[string]struct{}
}

// Returns a new Client. Nothing is dialed until Run is called.
func NewClient(transport Transport, reconnectDelay time.Duration, m metrics.Service, logger log.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &Client{
		transport:      transport,
		reconnectDelay: reconnectDelay,
		metrics:        m,
		logger:         logger,
		listeners:      make(map[string][]*Listener),
		rooms:          make(map[string]struct{}),
	}
}

// Run connects, dispatches inbound frames and reconnects until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Error occured while dialing, retry after a pause
			c.logger.WithCtx(ctx).Warn().Err(err).Msg("Couldn't connect to the event server")
		} else {
			c.attach(conn)
			c.metrics.Connected()
			c.logger.WithCtx(ctx).Info().Msg("Connected to the event server")

			lerr := c.listen(ctx, conn)
			c.detach(conn)
			if cerr := conn.Close(); cerr != nil {
				c.logger.WithCtx(ctx).Debug().Err(cerr).Msg("Error occured while closing the event connection")
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.WithCtx(ctx).Warn().Err(lerr).Msg("Event connection dropped")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

// listen dispatches frames until the connection drops or ctx is done.
func (c *Client) listen(ctx context.Context, conn Conn) error {
	for {
		select {
		case frame, ok := <-conn.Frames():
			if !ok {
				return conn.Err()
			}
			c.dispatch(ctx, frame)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch runs every listener of frame.Event in registration order.
func (c *Client) dispatch(ctx context.Context, frame entity.Frame) {
	c.mu.RLock()
	listeners := slices.Clone(c.listeners[frame.Event])
	c.mu.RUnlock()

	if len(listeners) == 0 {
		c.metrics.EventDropped(frame.Event, metrics.ReasonNoHandler)
		return
	}
	c.metrics.EventReceived(frame.Event)
	for _, l := range listeners {
		c.invoke(ctx, l, frame)
	}
}

// invoke keeps one faulty handler from killing the dispatch loop.
func (c *Client) invoke(ctx context.Context, l *Listener, frame entity.Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithCtx(ctx).Error().Interface("panic", r).Str("event", frame.Event).Msg("Event handler panicked")
		}
	}()
	l.Handle(ctx, frame.Payload)
}

// attach makes conn current and re-sends every wanted room.
func (c *Client) attach(conn Conn) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()

	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	slices.Sort(rooms)
	for _, room := range rooms {
		c.send(conn, entity.EmitJoinRoom, entity.RoomRequest{Room: room})
	}
}

func (c *Client) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Rooms lists the rooms the client currently wants to be in.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.RUnlock()
	slices.Sort(rooms)
	return rooms
}

func (c *Client) Join(room string) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()

	c.mu.Lock()
	if _, joined := c.rooms[room]; joined {
		c.mu.Unlock()
		return
	}
	c.rooms[room] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	c.metrics.RoomJoined()
	if conn != nil {
		c.send(conn, entity.EmitJoinRoom, entity.RoomRequest{Room: room})
	}
}

func (c *Client) Leave(room string) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()

	c.mu.Lock()
	if _, joined := c.rooms[room]; !joined {
		c.mu.Unlock()
		return
	}
	delete(c.rooms, room)
	conn := c.conn
	c.mu.Unlock()

	c.metrics.RoomLeft()
	if conn != nil {
		c.send(conn, entity.EmitLeaveRoom, entity.RoomRequest{Room: room})
	}
}

func (c *Client) On(l *Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.listeners[l.event], l) {
		return
	}
	c.listeners[l.event] = append(c.listeners[l.event], l)
}

func (c *Client) Off(l *Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listeners := c.listeners[l.event]
	if i := slices.Index(listeners, l); i >= 0 {
		listeners = slices.Delete(slices.Clone(listeners), i, i+1)
	}
	if len(listeners) == 0 {
		delete(c.listeners, l.event)
		return
	}
	c.listeners[l.event] = listeners
}

func (c *Client) Emit(event string, payload any) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		// Not connected, silently skipped
		c.metrics.Emitted(event, metrics.ResultNotConnected)
		return
	}
	c.send(conn, event, payload)
}

// send marshals and writes one frame; failures are logged and swallowed.
func (c *Client) send(conn Conn, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Couldn't marshal outbound payload")
		c.metrics.Emitted(event, metrics.ResultFailed)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := conn.Send(ctx, entity.Frame{Event: event, Payload: raw}); err != nil {
		c.logger.Debug().Err(err).Str("event", event).Msg("Outbound event not delivered")
		c.metrics.Emitted(event, metrics.ResultFailed)
		return
	}
	c.metrics.Emitted(event, metrics.ResultSent)
}

var _ Channel = (*Client)(nil)
