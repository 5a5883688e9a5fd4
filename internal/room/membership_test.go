// Room membership tests in Agora.

package room

import (
	"Agora/internal/channel"
	"Agora/internal/test"
	"Agora/pkg/log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*Manager, *test.FakeChannel) {
	ch := test.NewFakeChannel()
	return NewManager(ch, NewPolicy(DefaultDenyPaths), log.Nop()), ch
}

func TestPolicyPermits(t *testing.T) {
	policy := NewPolicy(DefaultDenyPaths)
	cases := map[string]bool{
		"/threads/42":          true,
		"/threads/42/":         true,
		"/":                    true,
		"/settings":            false,
		"/settings/privacy":    false,
		"/settings?tab=2":      false,
		"/settingsx":           true,
		"/login":               false,
		"/auth/callback":       false,
		"/banned":              false,
		"/threads/42/banned":   false,
		"/threads/42/banned/":  false,
		"/threads/42/unbanned": true,
		"profile":              false,
	}
	for path, want := range cases {
		assert.Equal(t, want, policy.Permits(path), path)
	}
}

func TestPolicyCustomPrefixes(t *testing.T) {
	policy := NewPolicy([]string{" admin/ ", ""})
	assert.False(t, policy.Permits("/admin"))
	assert.False(t, policy.Permits("/admin/users"))
	assert.True(t, policy.Permits("/settings"))
	// Banned screens stay denied regardless of configuration
	assert.False(t, policy.Permits("/threads/1/banned"))
}

func TestJoinLeavePairedPerMount(t *testing.T) {
	manager, ch := setup()

	lease := manager.Acquire("/threads/42", "42")
	assert.True(t, lease.Joined)
	assert.NotEmpty(t, lease.ID)
	assert.Len(t, ch.CallsOf("join-room"), 1)

	lease.Release()
	lease.Release()
	assert.Len(t, ch.CallsOf("leave-room"), 1)
	assert.Equal(t, []test.Call{
		{Event: "join-room", Payload: "42"},
		{Event: "leave-room", Payload: "42"},
	}, ch.Calls())

	// Remount joins again
	again := manager.Acquire("/threads/42", "42")
	again.Release()
	assert.Len(t, ch.CallsOf("join-room"), 2)
	assert.Len(t, ch.CallsOf("leave-room"), 2)
}

func TestSharedRoomLeftByLastRelease(t *testing.T) {
	manager, ch := setup()

	page := manager.Acquire("/threads/42", "42")
	sidebar := manager.Acquire("/threads/42/members", "42")
	assert.Equal(t, 2, manager.Holders("42"))
	assert.Len(t, ch.CallsOf("join-room"), 1)

	page.Release()
	assert.Empty(t, ch.CallsOf("leave-room"))
	sidebar.Release()
	assert.Len(t, ch.CallsOf("leave-room"), 1)
	assert.Zero(t, manager.Holders("42"))
}

func TestDeniedScreenEmitsNothing(t *testing.T) {
	manager, ch := setup()

	lease := manager.Acquire("/settings", "user:alice")
	assert.False(t, lease.Joined)
	lease.Release()
	assert.Empty(t, ch.Calls())

	banned := manager.Acquire("/threads/42/banned", "42")
	assert.False(t, banned.Joined)
	banned.Release()
	assert.Empty(t, ch.Calls())
}

func TestReleaseByID(t *testing.T) {
	manager, ch := setup()

	lease := manager.Acquire("/threads/7", "7")
	leases := manager.Leases()
	require.Len(t, leases, 1)
	assert.Equal(t, lease.ID, leases[0].ID)

	assert.True(t, manager.Release(lease.ID))
	assert.False(t, manager.Release(lease.ID))
	assert.Empty(t, manager.Leases())
	assert.Len(t, ch.CallsOf("leave-room"), 1)
}

func TestHoldIgnoresPolicy(t *testing.T) {
	manager, ch := setup()

	personal := manager.Hold("user:alice")
	assert.True(t, personal.Joined)
	screen := manager.Acquire("/threads/1", "user:alice")
	assert.Equal(t, 2, manager.Holders("user:alice"))

	personal.Release()
	assert.Empty(t, ch.CallsOf("leave-room"))
	screen.Release()
	assert.Equal(t, []test.Call{
		{Event: "join-room", Payload: "user:alice"},
		{Event: "leave-room", Payload: "user:alice"},
	}, ch.Calls())
}

// slowLeaveChannel blocks every Leave until the gate opens.
type slowLeaveChannel struct {
	*test.FakeChannel
	leaving chan struct{}
	gate    chan struct{}
}

func (c *slowLeaveChannel) Leave(room string) {
	close(c.leaving)
	<-c.gate
	c.FakeChannel.Leave(room)
}

var _ channel.Channel = (*slowLeaveChannel)(nil)

func TestAcquireDuringLastReleaseKeepsRoomJoined(t *testing.T) {
	ch := &slowLeaveChannel{
		FakeChannel: test.NewFakeChannel(),
		leaving:     make(chan struct{}),
		gate:        make(chan struct{}),
	}
	manager := NewManager(ch, NewPolicy(DefaultDenyPaths), log.Nop())

	first := manager.Acquire("/threads/42", "42")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		first.Release()
	}()
	select {
	case <-ch.leaving:
	case <-time.After(time.Second):
		t.Fatal("release never reached the channel")
	}

	var second *Lease
	go func() {
		defer wg.Done()
		second = manager.Acquire("/threads/42/members", "42")
	}()
	close(ch.gate)
	wg.Wait()

	require.True(t, second.Joined)
	assert.Equal(t, 1, manager.Holders("42"))
	// The live lease's room is still joined on the channel
	assert.Equal(t, []string{"42"}, ch.Rooms())
	assert.Equal(t, []test.Call{
		{Event: "join-room", Payload: "42"},
		{Event: "leave-room", Payload: "42"},
		{Event: "join-room", Payload: "42"},
	}, ch.Calls())
}

func TestConcurrentMountsStayPaired(t *testing.T) {
	manager, ch := setup()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease := manager.Acquire("/threads/42", "42")
			lease.Release()
		}()
	}
	wg.Wait()

	assert.Zero(t, manager.Holders("42"))
	assert.Empty(t, ch.Rooms())
	assert.Equal(t, len(ch.CallsOf("join-room")), len(ch.CallsOf("leave-room")))
	// Calls alternate, a room is never joined twice or left twice in a row
	for i, call := range ch.Calls() {
		want := "join-room"
		if i%2 == 1 {
			want = "leave-room"
		}
		assert.Equal(t, want, call.Event, i)
	}
}
