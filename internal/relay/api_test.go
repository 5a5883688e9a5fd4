// Relay API tests in Agora.

package relay

import (
	"Agora/internal/cache"
	"Agora/internal/emit"
	"Agora/internal/entity"
	"Agora/internal/metrics"
	"Agora/internal/navigation"
	"Agora/internal/query"
	"Agora/internal/room"
	"Agora/internal/signal"
	"Agora/internal/sse"
	"Agora/internal/test"
	"Agora/pkg/log"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router  *gin.Engine
	ch      *test.FakeChannel
	store   cache.Store
	signals signal.Service
	nav     *navigation.Tracker
	hub     sse.Service
}

// forumAPI answers every read the relay issues with a fixed body.
func forumAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/threads":
		_ = json.NewEncoder(w).Encode(entity.ThreadPage{Page: 1, Items: []entity.ThreadSummary{{ID: "42"}}})
	case strings.HasSuffix(r.URL.Path, "/subscribers"):
		_ = json.NewEncoder(w).Encode(entity.SubscriberList{ThreadID: "42", Usernames: []string{"root"}, Total: 1})
	case strings.Contains(r.URL.Path, "/roles/"):
		_ = json.NewEncoder(w).Encode(entity.UserRole{ThreadID: "42", Username: "alice", Role: entity.RoleMember})
	default:
		_ = json.NewEncoder(w).Encode(entity.Thread{ID: "42", Title: "Go tips", SubscriberCount: 10})
	}
}

// Helper to build a relay over a fake forum API and an in-memory channel.
func setup(t *testing.T) fixture {
	t.Helper()
	return setupWith(t, forumAPI)
}

func setupWith(t *testing.T, api http.HandlerFunc) fixture {
	t.Helper()
	forum := httptest.NewServer(api)
	t.Cleanup(forum.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewService(reg)
	ch := test.NewFakeChannel()
	store := cache.NewStore()
	signals := signal.NewService(signal.Options{})
	t.Cleanup(signals.Close)
	nav := navigation.NewTracker("/", log.Nop())

	hub := sse.NewService(log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Listen(ctx)
	stop := Forward(hub, store, signals, nav)
	t.Cleanup(func() {
		stop()
		cancel()
	})

	svc := NewService(context.Background(), Components{
		Store:   store,
		Queries: query.NewService(forum.URL, test.MockSession.Token, forum.Client(), store, log.Nop()),
		Signals: signals,
		Rooms:   room.NewManager(ch, room.NewPolicy(room.DefaultDenyPaths), log.Nop()),
		Nav:     nav,
		Emit:    emit.NewService(ch, 0, m, log.Nop()),
		Conn:    ch,
		Session: test.MockSession,
	}, log.Nop())

	router := test.MockRouter()
	APIHandlers(router, svc, reg, log.Nop())
	return fixture{router: router, ch: ch, store: store, signals: signals, nav: nav, hub: hub}
}

func TestMountAndUnmountThreadScreen(t *testing.T) {
	f := setup(t)

	w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/screens",
		Body:         MountRequest{Path: "/threads/42"},
		WantResponse: []int{http.StatusCreated},
	})
	var screen Screen
	test.DecodeBody(t, w, &screen)
	assert.True(t, screen.Joined)
	assert.Equal(t, "42", screen.Room)
	assert.Equal(t, []string{"thread:42", "thread:42:subscribers", "thread:42:role:alice"}, screen.Queries)
	assert.Equal(t, "/threads/42", f.nav.Current())

	assert.Eventually(t, func() bool {
		return len(f.store.KeysWithPrefix(cache.ThreadScope("42"))) == 3
	}, time.Second, 5*time.Millisecond)

	w = test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/status", WantResponse: []int{http.StatusOK},
	})
	var status Status
	test.DecodeBody(t, w, &status)
	assert.Equal(t, []string{"42"}, status.Rooms)
	assert.Equal(t, 1, status.Screens)
	assert.Equal(t, "alice", status.User)

	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodDelete, Path: "/api/screens/" + screen.ID, WantResponse: []int{http.StatusNoContent},
	})
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodDelete, Path: "/api/screens/" + screen.ID, WantResponse: []int{http.StatusNotFound},
	})
	assert.Len(t, f.ch.CallsOf("join-room"), 1)
	assert.Len(t, f.ch.CallsOf("leave-room"), 1)
}

func TestUnmountKeepsQueriesOfOtherScreens(t *testing.T) {
	gate := make(chan struct{})
	f := setupWith(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/threads/42" {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		forumAPI(w, r)
	})

	mount := func() Screen {
		w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
			Method:       http.MethodPost,
			Path:         "/api/screens",
			Body:         MountRequest{Path: "/threads/42"},
			WantResponse: []int{http.StatusCreated},
		})
		var screen Screen
		test.DecodeBody(t, w, &screen)
		return screen
	}
	first := mount()
	second := mount()
	require.NotEqual(t, first.ID, second.ID)

	// The thread is still on screen through the first mount
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodDelete, Path: "/api/screens/" + second.ID, WantResponse: []int{http.StatusNoContent},
	})
	close(gate)

	assert.Eventually(t, func() bool {
		_, ok := f.store.Read(cache.ThreadKey("42"))
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"42"}, f.ch.Rooms())
}

func TestDeniedScreenNeverJoins(t *testing.T) {
	f := setup(t)

	w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/screens",
		Body:         MountRequest{Path: "/settings", Room: "user:alice"},
		WantResponse: []int{http.StatusCreated},
	})
	var screen Screen
	test.DecodeBody(t, w, &screen)
	assert.False(t, screen.Joined)
	assert.Empty(t, screen.Queries)

	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodDelete, Path: "/api/screens/" + screen.ID, WantResponse: []int{http.StatusNoContent},
	})
	assert.Empty(t, f.ch.Calls())
}

func TestMountRejectsBadRequests(t *testing.T) {
	f := setup(t)
	for _, body := range []any{[]byte(`{"path":`), MountRequest{}, MountRequest{Path: "/threads/1", Room: "bad room"}} {
		test.ExecuteAPITest(t, f.router, test.RequestAPITest{
			Method: http.MethodPost, Path: "/api/screens", Body: body, WantResponse: []int{http.StatusBadRequest},
		})
	}
}

func TestListScreenFetchesRequestedPage(t *testing.T) {
	f := setup(t)
	w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/screens",
		Body:         MountRequest{Path: "/threads?page=3"},
		WantResponse: []int{http.StatusCreated},
	})
	var screen Screen
	test.DecodeBody(t, w, &screen)
	assert.Equal(t, []string{"threads:list:3"}, screen.Queries)
	assert.False(t, screen.Joined)
	assert.Eventually(t, func() bool {
		_, ok := f.store.Read(cache.ThreadListKey(3))
		return ok
	}, time.Second, 5*time.Millisecond)

	w = test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/queries/state?key=threads:list:3", WantResponse: []int{http.StatusOK},
	})
	var states struct {
		States []query.State `json:"states"`
	}
	test.DecodeBody(t, w, &states)
	require.Len(t, states.States, 1)
	assert.Equal(t, query.StatusSuccess, states.States[0].Status)
}

func TestCacheEndpoints(t *testing.T) {
	f := setup(t)
	f.store.Write(cache.ThreadKey("42"), entity.Thread{ID: "42", Title: "Go tips"})
	f.store.Write(cache.ThreadListKey(1), entity.ThreadPage{Page: 1})

	w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/cache", WantResponse: []int{http.StatusOK},
	})
	var keys struct {
		Keys []string `json:"keys"`
	}
	test.DecodeBody(t, w, &keys)
	assert.Equal(t, []string{"thread:42", "threads:list:1"}, keys.Keys)

	w = test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/cache?prefix=threads:list", WantResponse: []int{http.StatusOK},
	})
	test.DecodeBody(t, w, &keys)
	assert.Equal(t, []string{"threads:list:1"}, keys.Keys)

	w = test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/cache/entry?key=thread:42", WantResponse: []int{http.StatusOK},
	})
	assert.Contains(t, w.Body.String(), `"title":"Go tips"`)

	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/cache/entry?key=thread:7", WantResponse: []int{http.StatusNotFound},
	})
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/cache/entry", WantResponse: []int{http.StatusBadRequest},
	})
}

func TestEmitEndpoint(t *testing.T) {
	f := setup(t)

	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/emit/post-share",
		Body:         entity.PostShare{ThreadID: "42", PostID: "p1"},
		WantResponse: []int{http.StatusAccepted},
	})
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/emit/mention",
		Body:         entity.Mention{ThreadID: "42", Mentioned: "bob"},
		WantResponse: []int{http.StatusAccepted},
	})
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/emit/ban-user",
		Body:         entity.BanRequest{ThreadID: "42"},
		WantResponse: []int{http.StatusBadRequest},
	})
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/emit/subthread-update",
		Body:         []byte(`{"threadId":`),
		WantResponse: []int{http.StatusBadRequest},
	})
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/emit/self-destruct",
		WantResponse: []int{http.StatusNotFound},
	})

	calls := f.ch.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, entity.EmitPostShare, calls[0].Event)
	// The sender defaults to the session user
	assert.Equal(t, "alice", calls[1].Payload.(entity.Mention).From)
}

func TestNavigationAndSignals(t *testing.T) {
	f := setup(t)

	w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/navigation",
		Body:         map[string]string{"path": "/threads/7"},
		WantResponse: []int{http.StatusOK},
	})
	assert.JSONEq(t, `{"path":"/threads/7"}`, w.Body.String())
	test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodPost, Path: "/api/navigation", Body: map[string]string{}, WantResponse: []int{http.StatusBadRequest},
	})

	f.signals.SetLiveUserCount(5)
	w = test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/api/signals", WantResponse: []int{http.StatusOK},
	})
	var snap entity.SignalSnapshot
	test.DecodeBody(t, w, &snap)
	assert.Equal(t, 5, snap.LiveUserCount)
}

func TestForwardPublishesNotices(t *testing.T) {
	f := setup(t)
	client := f.hub.Register(context.Background(), "ui")
	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	f.store.Write(cache.ThreadKey("42"), entity.Thread{ID: "42"})
	f.signals.SetLiveUserCount(3)
	f.nav.Navigate("/threads/42/banned")

	var kinds []string
	for len(kinds) < 3 {
		select {
		case notice := <-client.Channel:
			kinds = append(kinds, notice.Kind)
		case <-time.After(time.Second):
			t.Fatalf("got only %v", kinds)
		}
	}
	assert.Equal(t, []string{entity.NoticeCache, entity.NoticeSignal, entity.NoticeNavigate}, kinds)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)
	w := test.ExecuteAPITest(t, f.router, test.RequestAPITest{
		Method: http.MethodGet, Path: "/metrics", WantResponse: []int{http.StatusOK},
	})
	assert.Contains(t, w.Body.String(), "agora_room_joins_total")
}
