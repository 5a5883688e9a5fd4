// Screen lifecycle of the Agora relay. A mounted screen owns one room lease and
// the queries it started; unmounting gives both back.

package relay

import (
	"Agora/internal/errors"
	"Agora/internal/query"
	"Agora/internal/room"
	"context"
	"net/url"
	"strconv"
	"strings"
)

// MountRequest is sent by the UI when a screen mounts.
type MountRequest struct {
	Path string `json:"path" valid:"required"`
	// Room defaults to the thread id found in Path.
	Room string `json:"room" valid:"optional,roomid"`
}

// Screen is a mounted screen as reported to the UI.
type Screen struct {
	ID      string   `json:"id"`
	Path    string   `json:"path"`
	Room    string   `json:"room,omitempty"`
	Joined  bool     `json:"joined"`
	Queries []string `json:"queries"`
}

type mounted struct {
	screen  Screen
	lease   *room.Lease
	queries []*query.Query
}

func (s *service) Mount(ctx context.Context, req MountRequest) Screen {
	view := parseView(req.Path)
	roomID := req.Room
	if roomID == "" {
		roomID = view.threadID
	}

	lease := s.c.Rooms.Acquire(view.path, roomID)
	s.c.Nav.Navigate(view.path)

	var queries []*query.Query
	switch {
	case view.threadID != "" && !view.banned:
		queries = append(queries,
			s.c.Queries.FetchThread(s.root, view.threadID),
			s.c.Queries.FetchSubscribers(s.root, view.threadID),
		)
		if s.c.Session.Username != "" {
			queries = append(queries, s.c.Queries.FetchRole(s.root, view.threadID, s.c.Session.Username))
		}
	case view.list:
		queries = append(queries, s.c.Queries.FetchThreadPage(s.root, view.page))
	}

	screen := Screen{ID: lease.ID, Path: view.path, Room: roomID, Joined: lease.Joined, Queries: []string{}}
	for _, q := range queries {
		screen.Queries = append(screen.Queries, q.Key().String())
	}

	s.mu.Lock()
	s.screens[screen.ID] = &mounted{screen: screen, lease: lease, queries: queries}
	s.mu.Unlock()

	s.logger.WithCtx(ctx).Debug().Str("screen", screen.ID).Str("path", screen.Path).Bool("joined", screen.Joined).
		Msg("Screen mounted")
	return screen
}

func (s *service) Unmount(ctx context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.screens[id]
	delete(s.screens, id)
	// Keys still rendered by another screen keep loading
	shared := make(map[string]bool)
	for _, other := range s.screens {
		for _, key := range other.screen.Queries {
			shared[key] = true
		}
	}
	s.mu.Unlock()
	if !ok {
		return errors.NotFound("no mounted screen " + id)
	}

	m.lease.Release()
	for _, q := range m.queries {
		if !shared[q.Key().String()] {
			q.Cancel()
		}
	}
	s.logger.WithCtx(ctx).Debug().Str("screen", id).Msg("Screen unmounted")
	return nil
}

// view is what a screen path tells about the data it renders.
type view struct {
	path     string
	threadID string
	banned   bool
	list     bool
	page     int
}

// parseView understands /, /threads, /threads?page=N and /threads/<id>[/...].
func parseView(raw string) view {
	v := view{path: raw, page: 1}
	u, err := url.Parse(raw)
	if err != nil {
		return v
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/"
	}
	v.path = path

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case path == "/" || (len(parts) == 1 && parts[0] == "threads"):
		v.list = true
		if page, perr := strconv.Atoi(u.Query().Get("page")); perr == nil && page > 0 {
			v.page = page
		}
	case len(parts) >= 2 && parts[0] == "threads":
		v.threadID = parts[1]
		v.banned = parts[len(parts)-1] == "banned"
	}
	return v
}
