// Service layer of Server Side Events (SSE) in Agora.
// One hub fans change notices out to every connected UI stream.

package sse

import (
	"Agora/internal/entity"
	"Agora/pkg/log"
	"context"
	"sync"
)

// Notices buffered per client before it is considered too slow and skipped.
const clientBuffer = 64

type Service interface {
	// Registers a new client, the returned channel is closed by Unregister or shutdown.
	Register(ctx context.Context, id string) entity.SSEClient
	// Removes a client.
	Unregister(ctx context.Context, client entity.SSEClient)
	// Publish hands a notice to every client. It never blocks the caller.
	Publish(notice entity.Notice)
	// Launch a listener for SSE, preferably in a goroutine for non-blockage.
	// Returns when ctx is done, closing every client channel.
	Listen(ctx context.Context)
	// Number of connected clients.
	Clients() int
}

// Object of this will be passed around from main to routers to API.
type service struct {
	logger log.Logger

	message       chan entity.Notice
	newClients    chan entity.SSEClient
	closedClients chan entity.SSEClient
	quit          chan struct{}

	mu      sync.RWMutex
	clients map[string]chan entity.Notice
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
func NewService(logger log.Logger) Service {
	return &service{
		logger:        logger,
		message:       make(chan entity.Notice, clientBuffer),
		newClients:    make(chan entity.SSEClient),
		closedClients: make(chan entity.SSEClient),
		quit:          make(chan struct{}),
		clients:       make(map[string]chan entity.Notice),
	}
}

func (s *service) Register(ctx context.Context, id string) entity.SSEClient {
	client := entity.SSEClient{ID: id, Channel: make(chan entity.Notice, clientBuffer)}
	select {
	case s.newClients <- client:
	case <-s.quit:
		close(client.Channel)
	case <-ctx.Done():
		close(client.Channel)
	}
	return client
}

func (s *service) Unregister(ctx context.Context, client entity.SSEClient) {
	select {
	case s.closedClients <- client:
	case <-s.quit:
	case <-ctx.Done():
	}
}

func (s *service) Publish(notice entity.Notice) {
	select {
	case s.message <- notice:
	default:
		s.logger.Warn().Str("kind", notice.Kind).Msg("SSE hub saturated, notice dropped")
	}
}

func (s *service) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *service) Listen(ctx context.Context) {
	defer s.shutdown()
	for {
		select {
		// Add new available client
		case client := <-s.newClients:
			s.mu.Lock()
			s.clients[client.ID] = client.Channel
			s.mu.Unlock()
			s.logger.WithCtx(ctx).Info().Msgf("Added client %s into Agora SSE event channel", client.ID)

		// Remove closed client
		case client := <-s.closedClients:
			s.mu.Lock()
			if ch, ok := s.clients[client.ID]; ok {
				close(ch)
				delete(s.clients, client.ID)
			}
			s.mu.Unlock()
			s.logger.WithCtx(ctx).Info().Msgf("Removed client %s from Agora SSE event channel", client.ID)

		// Broadcast to every client
		case notice := <-s.message:
			s.mu.RLock()
			for id, ch := range s.clients {
				select {
				case ch <- notice:
				default:
					s.logger.Debug().Str("client", id).Msg("Slow SSE client skipped a notice")
				}
			}
			s.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

// shutdown closes open stream connections.
func (s *service) shutdown() {
	close(s.quit)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
}
