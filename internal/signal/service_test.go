// Ephemeral signal tests in Agora.

package signal

import (
	"Agora/internal/entity"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func usernames(items []entity.Activity) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Username
	}
	return out
}

func TestFeedCapsNewestFirst(t *testing.T) {
	feed := NewFeed[int](FeedOptions{Max: 3, Expiry: ExpirePerItem, TTL: time.Hour}, nil)
	defer feed.Close()
	for i := 1; i <= 5; i++ {
		feed.Push(fmt.Sprint(i), i)
	}
	assert.Equal(t, []int{5, 4, 3}, feed.Items())

	// Same key moves to the head instead of duplicating
	feed.Push("4", 40)
	assert.Equal(t, []int{40, 5, 3}, feed.Items())
}

func TestActivityExpiresPerUser(t *testing.T) {
	svc := NewService(Options{ActivityTimeout: 200 * time.Millisecond})
	defer svc.Close()

	svc.PushActivity(entity.ActivityEvent{Username: "alice", Action: "typing"})
	svc.PushActivity(entity.ActivityEvent{Username: "bob", Action: "viewing"})
	assert.Equal(t, []string{"bob", "alice"}, usernames(svc.Snapshot().UserActivity))

	time.Sleep(120 * time.Millisecond)
	// Restarts alice's timer only
	refreshed := svc.PushActivity(entity.ActivityEvent{Username: "alice", Action: "posting"})

	assert.Eventually(t, func() bool {
		return len(svc.Snapshot().UserActivity) == 1
	}, time.Second, 5*time.Millisecond)
	items := svc.Snapshot().UserActivity
	require.Len(t, items, 1)
	assert.Equal(t, refreshed.ID, items[0].ID)
	assert.Equal(t, "posting", items[0].Action)

	assert.Eventually(t, func() bool {
		return len(svc.Snapshot().UserActivity) == 0
	}, time.Second, 5*time.Millisecond)
	// Expired entries never come back
	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, svc.Snapshot().UserActivity)
}

func TestSystemStatusClearsUnlessReplaced(t *testing.T) {
	svc := NewService(Options{StatusTimeout: 150 * time.Millisecond})
	defer svc.Close()

	svc.SetSystemStatus(entity.SystemStatusEvent{Status: "degraded", Message: "slow replies"})
	time.Sleep(100 * time.Millisecond)
	svc.SetSystemStatus(entity.SystemStatusEvent{Status: "ok"})
	time.Sleep(80 * time.Millisecond)

	// The first timer would have fired by now
	snap := svc.Snapshot()
	require.NotNil(t, snap.SystemStatus)
	assert.Equal(t, "ok", snap.SystemStatus.Status)

	assert.Eventually(t, func() bool {
		return svc.Snapshot().SystemStatus == nil
	}, time.Second, 5*time.Millisecond)
}

func TestAlertQueueCappedAtTen(t *testing.T) {
	svc := NewService(Options{AlertDropInterval: time.Hour})
	defer svc.Close()

	var first entity.PerformanceAlert
	for i := 0; i < 10; i++ {
		alert := svc.PushAlert(entity.PerformanceAlertEvent{Metric: fmt.Sprintf("m%d", i), Value: float64(i)})
		if i == 0 {
			first = alert
		}
	}
	latest := svc.PushAlert(entity.PerformanceAlertEvent{Metric: "m10", Value: 10})

	alerts := svc.Snapshot().PerformanceAlerts
	require.Len(t, alerts, 10)
	assert.Equal(t, latest.ID, alerts[0].ID)
	assert.Equal(t, "m1", alerts[9].Metric)
	for _, a := range alerts {
		assert.NotEqual(t, first.ID, a.ID)
	}
}

func TestAlertsDropOldestOnTick(t *testing.T) {
	svc := NewService(Options{AlertDropInterval: 60 * time.Millisecond})
	defer svc.Close()

	svc.PushAlert(entity.PerformanceAlertEvent{Metric: "old"})
	svc.PushAlert(entity.PerformanceAlertEvent{Metric: "new"})

	assert.Eventually(t, func() bool {
		alerts := svc.Snapshot().PerformanceAlerts
		return len(alerts) == 1 && alerts[0].Metric == "new"
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(svc.Snapshot().PerformanceAlerts) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCountsLastEventWins(t *testing.T) {
	svc := NewService(Options{})
	defer svc.Close()

	svc.SetLiveUserCount(12)
	svc.SetLiveUserCount(4)
	svc.SetLiveUserCount(-3)
	svc.SetActiveUsers([]string{"alice", "bob"})
	svc.SetActiveUsers([]string{"carol"})

	snap := svc.Snapshot()
	assert.Equal(t, 0, snap.LiveUserCount)
	assert.Equal(t, []string{"carol"}, snap.ActiveUsers)
	assert.Nil(t, snap.SystemStatus)
	assert.Empty(t, snap.UserActivity)
}

func TestWatchReportsKinds(t *testing.T) {
	svc := NewService(Options{})
	defer svc.Close()

	var mu sync.Mutex
	var kinds []Kind
	cancel := svc.Watch(func(kind Kind) {
		mu.Lock()
		kinds = append(kinds, kind)
		mu.Unlock()
	})
	svc.SetLiveUserCount(1)
	svc.PushActivity(entity.ActivityEvent{Username: "alice", Action: "typing"})
	cancel()
	svc.SetActiveUsers(nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{KindLiveUserCount, KindUserActivity}, kinds)
}

func TestCloseStopsTimers(t *testing.T) {
	svc := NewService(Options{ActivityTimeout: time.Hour, StatusTimeout: time.Hour, AlertDropInterval: time.Hour})
	svc.PushActivity(entity.ActivityEvent{Username: "alice", Action: "typing"})
	svc.SetSystemStatus(entity.SystemStatusEvent{Status: "ok"})
	svc.PushAlert(entity.PerformanceAlertEvent{Metric: "cpu"})
	svc.Close()
	svc.Close()

	snap := svc.Snapshot()
	assert.Empty(t, snap.UserActivity)
	assert.Empty(t, snap.PerformanceAlerts)
	assert.Nil(t, snap.SystemStatus)
	goleak.VerifyNone(t)
}
