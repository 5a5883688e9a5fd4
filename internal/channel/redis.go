// Redis Pub/Sub transport of the Agora event channel.
// join-room / leave-room become SUBSCRIBE / UNSUBSCRIBE on <prefix>room:<room>,
// every other outbound frame is PUBLISHed to <prefix>inbox for the forum server to consume.

package channel

import (
	"Agora/internal/entity"
	"Agora/pkg/db"
	"Agora/pkg/log"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

type redisTransport struct {
	db     *db.RedisDB
	prefix string
	logger log.Logger
}

// NewRedisTransport exchanges frames through redis channels named under prefix.
func NewRedisTransport(dbwrp *db.RedisDB, prefix string, logger log.Logger) Transport {
	return &redisTransport{db: dbwrp, prefix: prefix, logger: logger}
}

// RoomChannel is the redis channel carrying events scoped to room.
func RoomChannel(prefix, room string) string {
	return prefix + "room:" + room
}

// InboxChannel is the redis channel the forum server reads outbound events from.
func InboxChannel(prefix string) string {
	return prefix + "inbox"
}

func (t *redisTransport) Dial(ctx context.Context) (Conn, error) {
	if err := t.db.Client().Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("dial redis transport: %w", err)
	}
	// Subscriptions are added as rooms get joined
	pubsub := t.db.Client().Subscribe(ctx)
	conn := &redisConn{
		client: t.db.Client(),
		pubsub: pubsub,
		prefix: t.prefix,
		frames: make(chan entity.Frame, frameBuffer),
		done:   make(chan struct{}),
		logger: t.logger,
	}
	go conn.readLoop(pubsub.Channel())
	return conn, nil
}

type redisConn struct {
	client *redis.Client
	pubsub *redis.PubSub
	prefix string
	frames chan entity.Frame
	done   chan struct{}
	logger log.Logger

	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

func (c *redisConn) readLoop(messages <-chan *redis.Message) {
	defer close(c.frames)
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.setErr(fmt.Errorf("redis subscription closed"))
				return
			}
			var frame entity.Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil || frame.Event == "" {
				// Not a frame, ignore it
				c.logger.Debug().Str("channel", msg.Channel).Msg("Dropped undecodable redis message")
				continue
			}
			select {
			case c.frames <- frame:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *redisConn) Send(ctx context.Context, frame entity.Frame) error {
	switch frame.Event {
	case entity.EmitJoinRoom, entity.EmitLeaveRoom:
		var req entity.RoomRequest
		if err := json.Unmarshal(frame.Payload, &req); err != nil {
			return fmt.Errorf("decode %s payload: %w", frame.Event, err)
		}
		if strings.TrimSpace(req.Room) == "" {
			return fmt.Errorf("%s without room", frame.Event)
		}
		if frame.Event == entity.EmitJoinRoom {
			return c.pubsub.Subscribe(ctx, RoomChannel(c.prefix, req.Room))
		}
		return c.pubsub.Unsubscribe(ctx, RoomChannel(c.prefix, req.Room))
	default:
		raw, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		return c.client.Publish(ctx, InboxChannel(c.prefix), raw).Err()
	}
}

func (c *redisConn) Frames() <-chan entity.Frame {
	return c.frames
}

func (c *redisConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *redisConn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *redisConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.pubsub.Close()
	})
	return err
}
