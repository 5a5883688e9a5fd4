// Service layer of the internal package query.
// Fetches forum views over HTTP into the read cache and tracks per-key request state.
// A newer fetch of the same key supersedes the older one; only the current
// request of a key may write its result.

package query

import (
	"Agora/internal/cache"
	"Agora/internal/entity"
	"Agora/internal/errors"
	"Agora/pkg/log"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status of the latest request of a key.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is what the UI reads to render loading and error affordances.
type State struct {
	Key       string                `json:"key"`
	Status    Status                `json:"status"`
	Err       *errors.ErrorResponse `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Service layer of internal package query which loads forum views into the cache.
type Service interface {
	// GET /api/threads/{id} into thread:<id>.
	FetchThread(ctx context.Context, threadID string) *Query
	// GET /api/threads?page=N into threads:list:<N>.
	FetchThreadPage(ctx context.Context, page int) *Query
	// GET /api/threads/{id}/subscribers into thread:<id>:subscribers.
	FetchSubscribers(ctx context.Context, threadID string) *Query
	// GET /api/threads/{id}/roles/{username} into thread:<id>:role:<username>.
	FetchRole(ctx context.Context, threadID, username string) *Query
	// State of key, Idle when it was never fetched.
	State(key cache.Key) State
	// States of every key fetched so far, ordered by key.
	States() []State
}

// Query is one in-flight request.
type Query struct {
	key    cache.Key
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Key returns the cache key the query writes to.
func (q *Query) Key() cache.Key {
	return q.key
}

// Cancel abandons the request; its result will not be written.
func (q *Query) Cancel() {
	q.cancel()
}

// Wait blocks until the request settled and returns its error, if any.
func (q *Query) Wait() error {
	<-q.done
	return q.err
}

// Done is closed once the request settled.
func (q *Query) Done() <-chan struct{} {
	return q.done
}

type tracked struct {
	gen   uint64
	state State
	query *Query
}

// Object of this will be passed around from main to the relay.
type service struct {
	baseURL string
	token   string
	client  *http.Client
	store   cache.Store
	logger  log.Logger

	// commitMu orders cache writes of settling requests, mu guards the states
	commitMu sync.Mutex
	mu       sync.Mutex
	keys     map[string]*tracked
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
func NewService(baseURL, token string, client *http.Client, store cache.Store, logger log.Logger) Service {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &service{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  client,
		store:   store,
		logger:  logger,
		keys:    make(map[string]*tracked),
	}
}

func (s *service) FetchThread(ctx context.Context, threadID string) *Query {
	return fetch[entity.Thread](ctx, s, cache.ThreadKey(threadID), "/api/threads/"+url.PathEscape(threadID))
}

func (s *service) FetchThreadPage(ctx context.Context, page int) *Query {
	return fetch[entity.ThreadPage](ctx, s, cache.ThreadListKey(page), fmt.Sprintf("/api/threads?page=%d", page))
}

func (s *service) FetchSubscribers(ctx context.Context, threadID string) *Query {
	return fetch[entity.SubscriberList](ctx, s, cache.SubscribersKey(threadID),
		"/api/threads/"+url.PathEscape(threadID)+"/subscribers")
}

func (s *service) FetchRole(ctx context.Context, threadID, username string) *Query {
	return fetch[entity.UserRole](ctx, s, cache.RoleKey(threadID, username),
		"/api/threads/"+url.PathEscape(threadID)+"/roles/"+url.PathEscape(username))
}

func (s *service) State(key cache.Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.keys[key.String()]; ok {
		return t.state
	}
	return State{Key: key.String(), Status: StatusIdle}
}

func (s *service) States() []State {
	s.mu.Lock()
	states := make([]State, 0, len(s.keys))
	for _, t := range s.keys {
		states = append(states, t.state)
	}
	s.mu.Unlock()
	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states
}

// fetch starts a request for key and supersedes any earlier one.
func fetch[T any](ctx context.Context, s *service, key cache.Key, path string) *Query {
	qctx, cancel := context.WithCancel(ctx)
	q := &Query{key: key, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	t, ok := s.keys[key.String()]
	if !ok {
		t = &tracked{}
		s.keys[key.String()] = t
	}
	if t.query != nil {
		// Superseded, its result must never land
		t.query.cancel()
	}
	t.gen++
	gen := t.gen
	t.query = q
	t.state = State{Key: key.String(), Status: StatusLoading, UpdatedAt: time.Now()}
	s.mu.Unlock()

	go func() {
		defer close(q.done)
		defer cancel()
		var value T
		err := s.get(qctx, path, &value)
		q.err = s.settle(qctx, key, gen, value, err)
	}()
	return q
}

// settle writes the result of generation gen if it is still the current request of key.
func (s *service) settle(ctx context.Context, key cache.Key, gen uint64, value any, err error) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	t := s.keys[key.String()]
	if t.gen != gen {
		s.mu.Unlock()
		return context.Canceled
	}
	t.query = nil
	if ctx.Err() != nil {
		// Cancelled by the caller, nothing was loaded
		t.state = State{Key: key.String(), Status: StatusIdle, UpdatedAt: time.Now()}
		s.mu.Unlock()
		return ctx.Err()
	}
	if err != nil {
		resp := errors.As(err)
		t.state = State{Key: key.String(), Status: StatusError, Err: &resp, UpdatedAt: time.Now()}
		s.mu.Unlock()
		s.logger.WithCtx(ctx).Warn().Err(err).Str("key", key.String()).Msg("Fetch failed, cache left unchanged")
		return resp
	}
	t.state = State{Key: key.String(), Status: StatusSuccess, UpdatedAt: time.Now()}
	s.mu.Unlock()

	s.store.Write(key, value)
	return nil
}

// get performs one GET against the forum API and decodes the JSON body into out.
func (s *service) get(ctx context.Context, path string, out any) error {
	req, reqerr := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if reqerr != nil {
		return errors.InternalServerError(reqerr.Error())
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, httperr := s.client.Do(req)
	if httperr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Error occured while reaching the forum API
		return errors.ErrorResponse{Status: http.StatusBadGateway, Message: httperr.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Upstream(resp.StatusCode, path)
	}
	if decerr := json.NewDecoder(resp.Body).Decode(out); decerr != nil {
		return errors.ErrorResponse{Status: http.StatusBadGateway, Message: "undecodable response from " + path}
	}
	return nil
}
