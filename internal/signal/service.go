// Ephemeral signal state of Agora: live counts, activity feed, status banner and alerts.
// Signals are owned by the session and never written to the shared cache.

package signal

import (
	"Agora/internal/entity"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Kind names the signal that changed.
type Kind string

const (
	KindLiveUserCount     Kind = "liveUserCount"
	KindActiveUsers       Kind = "activeUsers"
	KindUserActivity      Kind = "userActivity"
	KindSystemStatus      Kind = "systemStatus"
	KindPerformanceAlerts Kind = "performanceAlerts"
)

// Options of the signal service.
type Options struct {
	ActivityTimeout   time.Duration
	ActivityFeedMax   int
	StatusTimeout     time.Duration
	AlertMax          int
	AlertDropInterval time.Duration
}

// DefaultOptions returns the timings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ActivityTimeout:   30 * time.Second,
		ActivityFeedMax:   20,
		StatusTimeout:     5 * time.Second,
		AlertMax:          10,
		AlertDropInterval: 10 * time.Second,
	}
}

type Service interface {
	// Last event wins.
	SetLiveUserCount(count int)
	// Last event wins.
	SetActiveUsers(usernames []string)
	// Adds an activity for ev.Username, replacing and re-timing that user's previous one.
	PushActivity(ev entity.ActivityEvent) entity.Activity
	// Replaces the status banner and restarts its clear timer.
	SetSystemStatus(ev entity.SystemStatusEvent) entity.SystemStatus
	// Adds an alert at the head of the capped queue.
	PushAlert(ev entity.PerformanceAlertEvent) entity.PerformanceAlert
	// Point-in-time copy of every signal.
	Snapshot() entity.SignalSnapshot
	// Watch calls fn after every signal change until cancel is called.
	Watch(fn func(kind Kind)) (cancel func())
	// Stops every timer. The service keeps answering Snapshot with empty state.
	Close()
}

type service struct {
	opts Options

	mu            sync.RWMutex
	liveUserCount int
	activeUsers   []string

	activity *Feed[entity.Activity]
	status   *Slot[entity.SystemStatus]
	alerts   *Feed[entity.PerformanceAlert]

	watchMu  sync.RWMutex
	watchers map[uint64]func(Kind)
	nextID   uint64
}

// Returns a new signal Service. Zero fields of opts fall back to DefaultOptions.
func NewService(opts Options) Service {
	def := DefaultOptions()
	if opts.ActivityTimeout <= 0 {
		opts.ActivityTimeout = def.ActivityTimeout
	}
	if opts.ActivityFeedMax <= 0 {
		opts.ActivityFeedMax = def.ActivityFeedMax
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = def.StatusTimeout
	}
	if opts.AlertMax <= 0 {
		opts.AlertMax = def.AlertMax
	}
	if opts.AlertDropInterval <= 0 {
		opts.AlertDropInterval = def.AlertDropInterval
	}

	s := &service{opts: opts, watchers: make(map[uint64]func(Kind))}
	s.activity = NewFeed[entity.Activity](FeedOptions{
		Max:    opts.ActivityFeedMax,
		TTL:    opts.ActivityTimeout,
		Expiry: ExpirePerItem,
	}, func() { s.notify(KindUserActivity) })
	s.status = NewSlot[entity.SystemStatus](opts.StatusTimeout, func() { s.notify(KindSystemStatus) })
	s.alerts = NewFeed[entity.PerformanceAlert](FeedOptions{
		Max:    opts.AlertMax,
		TTL:    opts.AlertDropInterval,
		Expiry: ExpireOldest,
	}, func() { s.notify(KindPerformanceAlerts) })
	return s
}

func (s *service) SetLiveUserCount(count int) {
	if count < 0 {
		count = 0
	}
	s.mu.Lock()
	s.liveUserCount = count
	s.mu.Unlock()
	s.notify(KindLiveUserCount)
}

func (s *service) SetActiveUsers(usernames []string) {
	s.mu.Lock()
	s.activeUsers = slices.Clone(usernames)
	s.mu.Unlock()
	s.notify(KindActiveUsers)
}

func (s *service) PushActivity(ev entity.ActivityEvent) entity.Activity {
	activity := entity.Activity{
		ID:           xid.New().String(),
		Username:     ev.Username,
		Action:       ev.Action,
		ThreadID:     ev.ThreadID,
		CreatedAt:    time.Now(),
		ExpiresAfter: s.opts.ActivityTimeout,
	}
	s.activity.Push(ev.Username, activity)
	return activity
}

func (s *service) SetSystemStatus(ev entity.SystemStatusEvent) entity.SystemStatus {
	status := entity.SystemStatus{
		ID:           xid.New().String(),
		Status:       ev.Status,
		Message:      ev.Message,
		CreatedAt:    time.Now(),
		ExpiresAfter: s.opts.StatusTimeout,
	}
	s.status.Set(status)
	return status
}

func (s *service) PushAlert(ev entity.PerformanceAlertEvent) entity.PerformanceAlert {
	alert := entity.PerformanceAlert{
		ID:        xid.New().String(),
		Metric:    ev.Metric,
		Value:     ev.Value,
		Threshold: ev.Threshold,
		Message:   ev.Message,
		CreatedAt: time.Now(),
	}
	// Alert ids are unique so alerts never replace each other
	s.alerts.Push(alert.ID, alert)
	return alert
}

func (s *service) Snapshot() entity.SignalSnapshot {
	s.mu.RLock()
	snap := entity.SignalSnapshot{
		LiveUserCount: s.liveUserCount,
		ActiveUsers:   slices.Clone(s.activeUsers),
	}
	s.mu.RUnlock()
	if snap.ActiveUsers == nil {
		snap.ActiveUsers = []string{}
	}
	snap.UserActivity = s.activity.Items()
	snap.PerformanceAlerts = s.alerts.Items()
	if status, ok := s.status.Get(); ok {
		snap.SystemStatus = &status
	}
	return snap
}

func (s *service) Watch(fn func(kind Kind)) func() {
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.watchMu.Unlock()
	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *service) notify(kind Kind) {
	s.watchMu.RLock()
	fns := make([]func(Kind), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.RUnlock()
	for _, fn := range fns {
		fn(kind)
	}
}

func (s *service) Close() {
	s.activity.Close()
	s.status.Close()
	s.alerts.Close()
}
