// Service layer of the internal package realtime.
// Binds one handler per inbound event name and turns events into cache and signal updates.

package realtime

import (
	"Agora/internal/cache"
	"Agora/internal/channel"
	"Agora/internal/entity"
	"Agora/internal/metrics"
	"Agora/internal/navigation"
	"Agora/internal/room"
	"Agora/internal/signal"
	"Agora/pkg/log"
	"Agora/pkg/validation"
	"context"
	"encoding/json"
)

// Service layer of internal package realtime which keeps the read cache in sync with server events.
type Service interface {
	// Registers every handler on the channel and joins the session's personal room.
	// Closing the returned Subscription removes the handlers and leaves the personal room.
	Start(ctx context.Context) *channel.Subscription
}

// Object of this will be passed around from main to the relay.
// Helps to access the service layer interface and call methods.
type service struct {
	ch      channel.Channel
	rooms   *room.Manager
	store   cache.Store
	signals signal.Service
	nav     *navigation.Tracker
	session entity.Session
	metrics metrics.Service
	logger  log.Logger
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
func NewService(ch channel.Channel, rooms *room.Manager, store cache.Store, signals signal.Service, nav *navigation.Tracker,
	session entity.Session, m metrics.Service, logger log.Logger) Service {
	validation.RegisterCustomValidations()
	return service{ch, rooms, store, signals, nav, session, m, logger.With("user", session.Username)}
}

func (s service) Start(ctx context.Context) *channel.Subscription {
	sub := channel.Subscribe(s.ch,
		channel.NewListener(entity.EventMemberJoined, s.memberJoined),
		channel.NewListener(entity.EventMemberLeft, s.memberLeft),
		channel.NewListener(entity.EventModeratorAdded, s.moderatorAdded),
		channel.NewListener(entity.EventModeratorRemoved, s.moderatorRemoved),
		channel.NewListener(entity.EventUserBanned, s.userBanned),
		channel.NewListener(entity.EventUserUnbanned, s.userUnbanned),
		channel.NewListener(entity.EventAdminTransferred, s.adminTransferred),
		channel.NewListener(entity.EventContentCreated, s.contentCreated),
		channel.NewListener(entity.EventSubthreadUpdated, s.subthreadUpdated),
		channel.NewListener(entity.EventLiveUserCount, s.liveUserCount),
		channel.NewListener(entity.EventActiveUsers, s.activeUsers),
		channel.NewListener(entity.EventUserActivity, s.userActivity),
		channel.NewListener(entity.EventSystemStatus, s.systemStatus),
		channel.NewListener(entity.EventPerformanceAlert, s.performanceAlert),
	)
	// Ban and role events addressed to this user arrive on the personal room
	if personal := s.session.UserRoom(); personal != "" {
		sub.OnClose(s.rooms.Hold(personal).Release)
	}
	s.logger.WithCtx(ctx).Info().Strs("events", sub.Events()).Msg("Realtime handlers registered")
	return sub
}

// decode unmarshals and validates a payload. Malformed or invalid payloads are
// logged, counted and reported as not ok so the handler does nothing.
func decode[T any](ctx context.Context, s service, event string, payload json.RawMessage) (T, bool) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		s.logger.WithCtx(ctx).Warn().Err(err).Str("event", event).Msg("Dropped malformed event payload")
		s.metrics.EventDropped(event, metrics.ReasonMalformed)
		return v, false
	}
	if errs := validation.Validate(v); errs != nil {
		s.logger.WithCtx(ctx).Warn().Errs("errors", errs).Str("event", event).Msg("Dropped invalid event payload")
		s.metrics.EventDropped(event, metrics.ReasonInvalid)
		return v, false
	}
	return v, true
}

// commit runs fn as one cache batch and counts it when anything was written.
func (s service) commit(ctx context.Context, event string, fn func(tx cache.Tx) bool) {
	var wrote bool
	s.store.Batch(func(tx cache.Tx) {
		wrote = fn(tx)
	})
	if wrote {
		s.metrics.CacheWritten(event)
		s.logger.WithCtx(ctx).Debug().Str("event", event).Msg("Cache updated from event")
	}
}

func (s service) isSelf(username string) bool {
	return s.session.Username != "" && username == s.session.Username
}
