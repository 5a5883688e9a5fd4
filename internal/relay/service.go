// Service layer of the internal package relay.
// The relay is the local surface the UI talks to: cache reads, screen lifecycle,
// navigation, emits and the change stream.

package relay

import (
	"Agora/internal/cache"
	"Agora/internal/emit"
	"Agora/internal/entity"
	"Agora/internal/errors"
	"Agora/internal/navigation"
	"Agora/internal/query"
	"Agora/internal/room"
	"Agora/internal/signal"
	"Agora/pkg/log"
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Connection reports the state of the event channel.
type Connection interface {
	Connected() bool
	Rooms() []string
}

// Components are the session parts the relay exposes.
type Components struct {
	Store   cache.Store
	Queries query.Service
	Signals signal.Service
	Rooms   *room.Manager
	Nav     *navigation.Tracker
	Emit    emit.Service
	Conn    Connection
	Session entity.Session
}

// CacheEntry is one cached view as returned to the UI.
type CacheEntry struct {
	Key   string      `json:"key"`
	Entry cache.Entry `json:"entry"`
}

// Status summarises the session.
type Status struct {
	User      string   `json:"user"`
	Path      string   `json:"path"`
	Connected bool     `json:"connected"`
	Rooms     []string `json:"rooms"`
	Screens   int      `json:"screens"`
}

// Service layer of internal package relay.
type Service interface {
	// Cached keys under prefix, every key when prefix is empty.
	CacheKeys(prefix string) []string
	// The cached entry of key.
	CacheEntry(key string) (CacheEntry, error)
	// Request state of key, or of every fetched key when key is empty.
	QueryStates(key string) []query.State
	// Point-in-time copy of the ephemeral signals.
	Signals() entity.SignalSnapshot
	// Mounts a screen: takes its room lease and starts its queries.
	Mount(ctx context.Context, req MountRequest) Screen
	// Unmounts a screen: releases its lease and cancels its queries.
	Unmount(ctx context.Context, id string) error
	// Live screens.
	Screens() []Screen
	// Moves the session to path.
	Navigate(ctx context.Context, path string) string
	// Validates and emits an outbound event from its JSON body.
	Emit(ctx context.Context, event string, body []byte) error
	// Session summary.
	Status() Status
}

// Object of this will be passed around from main to routers to API.
type service struct {
	c      Components
	root   context.Context
	logger log.Logger

	mu      sync.Mutex
	screens map[string]*mounted
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
// root bounds the lifetime of the queries started by mounted screens.
func NewService(root context.Context, c Components, logger log.Logger) Service {
	return &service{c: c, root: root, logger: logger, screens: make(map[string]*mounted)}
}

func (s *service) CacheKeys(prefix string) []string {
	keys := s.c.Store.KeysWithPrefix(cache.ParseKey(prefix))
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}

func (s *service) CacheEntry(key string) (CacheEntry, error) {
	if key == "" {
		return CacheEntry{}, errors.BadRequest("key is required")
	}
	entry, ok := s.c.Store.Read(cache.ParseKey(key))
	if !ok {
		return CacheEntry{}, errors.NotFound("nothing cached under " + key)
	}
	return CacheEntry{Key: key, Entry: entry}, nil
}

func (s *service) QueryStates(key string) []query.State {
	if key != "" {
		return []query.State{s.c.Queries.State(cache.ParseKey(key))}
	}
	return s.c.Queries.States()
}

func (s *service) Signals() entity.SignalSnapshot {
	return s.c.Signals.Snapshot()
}

func (s *service) Navigate(ctx context.Context, path string) string {
	if s.c.Nav.Navigate(path) {
		s.logger.WithCtx(ctx).Debug().Str("path", path).Msg("UI navigated")
	}
	return s.c.Nav.Current()
}

func (s *service) Status() Status {
	s.mu.Lock()
	screens := len(s.screens)
	s.mu.Unlock()
	rooms := s.c.Conn.Rooms()
	if rooms == nil {
		rooms = []string{}
	}
	return Status{
		User:      s.c.Session.Username,
		Path:      s.c.Nav.Current(),
		Connected: s.c.Conn.Connected(),
		Rooms:     rooms,
		Screens:   screens,
	}
}

func (s *service) Emit(ctx context.Context, event string, body []byte) error {
	switch event {
	case entity.EmitUserActivity:
		var ev entity.ActivityEvent
		if err := unmarshal(body, &ev); err != nil {
			return err
		}
		if ev.Username == "" {
			ev.Username = s.c.Session.Username
		}
		return s.c.Emit.UserActivity(ctx, ev)
	case entity.EmitPostShare:
		var ev entity.PostShare
		if err := unmarshal(body, &ev); err != nil {
			return err
		}
		return s.c.Emit.PostShare(ctx, ev)
	case entity.EmitMention:
		var ev entity.Mention
		if err := unmarshal(body, &ev); err != nil {
			return err
		}
		if ev.From == "" {
			ev.From = s.c.Session.Username
		}
		return s.c.Emit.Mention(ctx, ev)
	case entity.EmitBanUser, entity.EmitUnbanUser:
		var ev entity.BanRequest
		if err := unmarshal(body, &ev); err != nil {
			return err
		}
		if event == entity.EmitBanUser {
			return s.c.Emit.BanUser(ctx, ev)
		}
		return s.c.Emit.UnbanUser(ctx, ev)
	case entity.EmitSubthreadUpdate:
		var ev entity.SubthreadUpdate
		if err := unmarshal(body, &ev); err != nil {
			return err
		}
		return s.c.Emit.SubthreadUpdate(ctx, ev)
	default:
		return errors.NotFound("unknown event " + event)
	}
}

// Helper to decode a request body, an empty body decodes to the zero value.
func unmarshal(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.BadRequest("")
	}
	return nil
}

func (s *service) Screens() []Screen {
	s.mu.Lock()
	screens := make([]Screen, 0, len(s.screens))
	for _, m := range s.screens {
		screens = append(screens, m.screen)
	}
	s.mu.Unlock()
	sort.Slice(screens, func(i, j int) bool { return screens[i].ID < screens[j].ID })
	return screens
}
