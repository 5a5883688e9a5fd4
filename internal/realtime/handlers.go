// Event handlers of the internal package realtime.
// Every handler updates only entries already in the cache and replaces them with modified copies.

package realtime

import (
	"Agora/internal/cache"
	"Agora/internal/entity"
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

func (s service) memberJoined(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.MembershipEvent](ctx, s, entity.EventMemberJoined, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventMemberJoined, func(tx cache.Tx) bool {
		if list, ok := cachedSubscribers(tx, ev.ThreadID); ok && ev.Username != "" &&
			slices.Contains(list.Usernames, ev.Username) {
			// Redelivered join, already counted
			return false
		}
		wrote := s.adjustCounters(tx, ev.ThreadID, func(subscribers, posts *int) { *subscribers++ })
		if ev.Username != "" {
			wrote = updateSubscribers(tx, ev.ThreadID, func(list *entity.SubscriberList) bool {
				if slices.Contains(list.Usernames, ev.Username) {
					return false
				}
				list.Usernames = append(list.Usernames, ev.Username)
				list.Total++
				return true
			}) || wrote
		}
		return wrote
	})
}

func (s service) memberLeft(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.MembershipEvent](ctx, s, entity.EventMemberLeft, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventMemberLeft, func(tx cache.Tx) bool {
		if list, ok := cachedSubscribers(tx, ev.ThreadID); ok && ev.Username != "" &&
			!slices.Contains(list.Usernames, ev.Username) && list.Total <= len(list.Usernames) {
			// A complete list without the user, the leave was already applied
			return false
		}
		wrote := s.adjustCounters(tx, ev.ThreadID, func(subscribers, posts *int) { *subscribers = clamp(*subscribers - 1) })
		if ev.Username != "" {
			wrote = updateSubscribers(tx, ev.ThreadID, func(list *entity.SubscriberList) bool {
				if i := slices.Index(list.Usernames, ev.Username); i >= 0 {
					list.Usernames = slices.Delete(list.Usernames, i, i+1)
					list.Total = clamp(list.Total - 1)
					return true
				}
				// A partial list may not show everyone counted in Total
				if list.Total > len(list.Usernames) {
					list.Total--
					return true
				}
				return false
			}) || wrote
		}
		return wrote
	})
}

func (s service) moderatorAdded(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.UserScopeEvent](ctx, s, entity.EventModeratorAdded, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventModeratorAdded, func(tx cache.Tx) bool {
		wrote := updateThread(tx, ev.ThreadID, func(t *entity.Thread) bool {
			if slices.Contains(t.Moderators, ev.Username) {
				return false
			}
			t.Moderators = append(t.Moderators, ev.Username)
			return true
		})
		return updateRole(tx, ev.ThreadID, ev.Username, func(role string) string {
			if role == entity.RoleAdmin {
				return role
			}
			return entity.RoleModerator
		}) || wrote
	})
}

func (s service) moderatorRemoved(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.UserScopeEvent](ctx, s, entity.EventModeratorRemoved, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventModeratorRemoved, func(tx cache.Tx) bool {
		wrote := updateThread(tx, ev.ThreadID, func(t *entity.Thread) bool {
			i := slices.Index(t.Moderators, ev.Username)
			if i < 0 {
				return false
			}
			t.Moderators = slices.Delete(t.Moderators, i, i+1)
			return true
		})
		return updateRole(tx, ev.ThreadID, ev.Username, func(role string) string {
			if role == entity.RoleModerator {
				return entity.RoleMember
			}
			return role
		}) || wrote
	})
}

// userBanned drops everything cached for the thread and moves the session
// to the thread's banned screen. Bans of other users are not this session's concern.
func (s service) userBanned(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.UserScopeEvent](ctx, s, entity.EventUserBanned, payload)
	if !ok || !s.isSelf(ev.Username) {
		return
	}
	evicted := s.store.EvictPrefix(cache.ThreadScope(ev.ThreadID))
	if evicted > 0 {
		s.metrics.CacheWritten(entity.EventUserBanned)
	}
	target := bannedPath(ev.ThreadID)
	navigated := s.nav.Navigate(target)
	s.logger.WithCtx(ctx).Info().Str("thread", ev.ThreadID).Int("evicted", evicted).Bool("navigated", navigated).
		Msg("Session user banned from thread")
}

func (s service) userUnbanned(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.UserScopeEvent](ctx, s, entity.EventUserUnbanned, payload)
	if !ok || !s.isSelf(ev.Username) {
		return
	}
	s.commit(ctx, entity.EventUserUnbanned, func(tx cache.Tx) bool {
		return updateRole(tx, ev.ThreadID, ev.Username, func(role string) string {
			if role == entity.RoleBanned {
				return entity.RoleMember
			}
			return role
		})
	})
	// Leave the banned screen of that thread if it is still shown
	if s.nav.Current() == bannedPath(ev.ThreadID) {
		s.nav.Navigate(threadPath(ev.ThreadID))
	}
}

func (s service) adminTransferred(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.AdminTransferEvent](ctx, s, entity.EventAdminTransferred, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventAdminTransferred, func(tx cache.Tx) bool {
		wrote := updateThread(tx, ev.ThreadID, func(t *entity.Thread) bool {
			changed := t.Admin != ev.NewAdmin
			t.Admin = ev.NewAdmin
			if i := slices.Index(t.Moderators, ev.NewAdmin); i >= 0 {
				t.Moderators = slices.Delete(t.Moderators, i, i+1)
				changed = true
			}
			return changed
		})
		if ev.PreviousAdmin != "" && ev.PreviousAdmin != ev.NewAdmin {
			wrote = updateRole(tx, ev.ThreadID, ev.PreviousAdmin, func(string) string {
				return entity.RoleMember
			}) || wrote
		}
		return updateRole(tx, ev.ThreadID, ev.NewAdmin, func(string) string {
			return entity.RoleAdmin
		}) || wrote
	})
}

// contentCreated only bumps counters; lists are never refetched from here.
func (s service) contentCreated(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.ContentEvent](ctx, s, entity.EventContentCreated, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventContentCreated, func(tx cache.Tx) bool {
		return s.adjustCounters(tx, ev.ThreadID, func(subscribers, posts *int) { *posts++ })
	})
}

func (s service) subthreadUpdated(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.SubthreadEvent](ctx, s, entity.EventSubthreadUpdated, payload)
	if !ok {
		return
	}
	s.commit(ctx, entity.EventSubthreadUpdated, func(tx cache.Tx) bool {
		wrote := updateThread(tx, ev.ThreadID, func(t *entity.Thread) bool {
			t.Title = ev.Title
			return true
		})
		return updateListItems(tx, ev.ThreadID, func(item *entity.ThreadSummary) {
			item.Title = ev.Title
		}) || wrote
	})
}

func (s service) liveUserCount(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.LiveUserCountEvent](ctx, s, entity.EventLiveUserCount, payload)
	if !ok {
		return
	}
	if ev.Count == nil {
		s.logger.WithCtx(ctx).Warn().Msg("Dropped live-user-count without count")
		return
	}
	s.signals.SetLiveUserCount(*ev.Count)
}

func (s service) activeUsers(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.ActiveUsersEvent](ctx, s, entity.EventActiveUsers, payload)
	if !ok {
		return
	}
	s.signals.SetActiveUsers(ev.Usernames)
}

func (s service) userActivity(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.ActivityEvent](ctx, s, entity.EventUserActivity, payload)
	if !ok {
		return
	}
	s.signals.PushActivity(ev)
}

func (s service) systemStatus(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.SystemStatusEvent](ctx, s, entity.EventSystemStatus, payload)
	if !ok {
		return
	}
	s.signals.SetSystemStatus(ev)
}

func (s service) performanceAlert(ctx context.Context, payload json.RawMessage) {
	ev, ok := decode[entity.PerformanceAlertEvent](ctx, s, entity.EventPerformanceAlert, payload)
	if !ok {
		return
	}
	s.signals.PushAlert(ev)
}

// adjustCounters applies fn to the thread detail and to every cached list row of
// the thread inside the same batch, so the two views never disagree.
func (s service) adjustCounters(tx cache.Tx, threadID string, fn func(subscribers, posts *int)) bool {
	wrote := updateThread(tx, threadID, func(t *entity.Thread) bool {
		fn(&t.SubscriberCount, &t.PostCount)
		return true
	})
	return updateListItems(tx, threadID, func(item *entity.ThreadSummary) {
		fn(&item.SubscriberCount, &item.PostCount)
	}) || wrote
}

// updateThread replaces the cached thread with a modified copy; fn reports whether it changed anything.
func updateThread(tx cache.Tx, threadID string, fn func(t *entity.Thread) bool) bool {
	return tx.Update(cache.ThreadKey(threadID), func(current cache.Entry) cache.Entry {
		thread, ok := current.(entity.Thread)
		if !ok {
			return cache.Missing
		}
		next := thread.Clone()
		if !fn(&next) {
			return cache.Missing
		}
		return next
	})
}

// updateListItems rewrites every cached list page holding threadID.
func updateListItems(tx cache.Tx, threadID string, fn func(item *entity.ThreadSummary)) bool {
	var wrote bool
	for _, key := range tx.KeysWithPrefix(cache.ThreadListPrefix) {
		wrote = tx.Update(key, func(current cache.Entry) cache.Entry {
			page, ok := current.(entity.ThreadPage)
			if !ok {
				return cache.Missing
			}
			i := slices.IndexFunc(page.Items, func(item entity.ThreadSummary) bool { return item.ID == threadID })
			if i < 0 {
				return cache.Missing
			}
			next := page.Clone()
			fn(&next.Items[i])
			return next
		}) || wrote
	}
	return wrote
}

func cachedSubscribers(tx cache.Tx, threadID string) (entity.SubscriberList, bool) {
	entry, found := tx.Read(cache.SubscribersKey(threadID))
	if !found {
		return entity.SubscriberList{}, false
	}
	list, ok := entry.(entity.SubscriberList)
	return list, ok
}

func updateSubscribers(tx cache.Tx, threadID string, fn func(list *entity.SubscriberList) bool) bool {
	return tx.Update(cache.SubscribersKey(threadID), func(current cache.Entry) cache.Entry {
		list, ok := current.(entity.SubscriberList)
		if !ok {
			return cache.Missing
		}
		next := list.Clone()
		if !fn(&next) {
			return cache.Missing
		}
		return next
	})
}

// updateRole rewrites a cached role; roles that were never fetched stay absent.
func updateRole(tx cache.Tx, threadID, username string, fn func(role string) string) bool {
	return tx.Update(cache.RoleKey(threadID, username), func(current cache.Entry) cache.Entry {
		role, ok := current.(entity.UserRole)
		if !ok {
			return cache.Missing
		}
		next := fn(role.Role)
		if next == role.Role {
			return cache.Missing
		}
		role.Role = next
		return role
	})
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func threadPath(threadID string) string {
	return fmt.Sprintf("/threads/%s", threadID)
}

func bannedPath(threadID string) string {
	return threadPath(threadID) + "/banned"
}
