// WebSocket transport of the Agora event channel.

package channel

import (
	"Agora/internal/entity"
	"Agora/pkg/log"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Inbound frames buffered between the socket reader and the dispatch loop.
const frameBuffer = 64

type websocketTransport struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger log.Logger
}

// NewWebsocketTransport dials url, sending token as a bearer credential when set.
func NewWebsocketTransport(url, token string, logger log.Logger) Transport {
	return &websocketTransport{
		url:   url,
		token: token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		logger: logger,
	}
}

func (t *websocketTransport) Dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}
	ws, _, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		return nil, err
	}
	conn := &websocketConn{
		ws:     ws,
		frames: make(chan entity.Frame, frameBuffer),
		done:   make(chan struct{}),
		logger: t.logger,
	}
	go conn.readLoop()
	return conn, nil
}

type websocketConn struct {
	ws     *websocket.Conn
	frames chan entity.Frame
	done   chan struct{}
	logger log.Logger

	writeMu   sync.Mutex
	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

// readLoop decodes JSON frames until the socket fails or is closed.
func (c *websocketConn) readLoop() {
	defer close(c.frames)
	for {
		var frame entity.Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			c.setErr(err)
			return
		}
		if frame.Event == "" {
			// Frame without a name can't be routed
			c.logger.Debug().Msg("Dropped unnamed frame")
			continue
		}
		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *websocketConn) Send(ctx context.Context, frame entity.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sendTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(frame)
}

func (c *websocketConn) Frames() <-chan entity.Frame {
	return c.frames
}

func (c *websocketConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *websocketConn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *websocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		// Best-effort close handshake before dropping the socket
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
