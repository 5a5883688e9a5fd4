// Emit API tests in Agora.

package emit

import (
	"Agora/internal/entity"
	"Agora/internal/errors"
	"Agora/internal/metrics"
	"Agora/internal/test"
	"Agora/pkg/log"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Global context
var ctx context.Context = context.Background()

func setup(pingsPerSecond float64) (Service, *test.FakeChannel) {
	ch := test.NewFakeChannel()
	return NewService(ch, pingsPerSecond, metrics.NewService(nil), log.Nop()), ch
}

func TestEmitsValidPayloads(t *testing.T) {
	svc, ch := setup(0)

	require.NoError(t, svc.PostShare(ctx, entity.PostShare{ThreadID: "42", PostID: "p1", Channel: "link"}))
	require.NoError(t, svc.Mention(ctx, entity.Mention{ThreadID: "42", From: "alice", Mentioned: "bob"}))
	require.NoError(t, svc.BanUser(ctx, entity.BanRequest{ThreadID: "42", Username: "mallory", Reason: "spam"}))
	require.NoError(t, svc.UnbanUser(ctx, entity.BanRequest{ThreadID: "42", Username: "mallory"}))
	require.NoError(t, svc.SubthreadUpdate(ctx, entity.SubthreadUpdate{ThreadID: "42", Title: "New title"}))
	require.NoError(t, svc.UserActivity(ctx, entity.ActivityEvent{Username: "alice", Action: "typing"}))

	var events []string
	for _, c := range ch.Calls() {
		events = append(events, c.Event)
	}
	assert.Equal(t, []string{
		entity.EmitPostShare, entity.EmitMention, entity.EmitBanUser,
		entity.EmitUnbanUser, entity.EmitSubthreadUpdate, entity.EmitUserActivity,
	}, events)
}

func TestInvalidPayloadIsReturned(t *testing.T) {
	svc, ch := setup(0)

	err := svc.BanUser(ctx, entity.BanRequest{ThreadID: "42"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.As(err).Status)

	assert.Error(t, svc.Mention(ctx, entity.Mention{ThreadID: "42", From: "al ice", Mentioned: "bob"}))
	assert.Error(t, svc.UserActivity(ctx, entity.ActivityEvent{Username: "alice"}))
	assert.Empty(t, ch.Calls())
}

func TestOfflineEmitIsSilent(t *testing.T) {
	svc, ch := setup(0)
	ch.SetOffline(true)
	assert.NoError(t, svc.PostShare(ctx, entity.PostShare{ThreadID: "42", PostID: "p1"}))
	assert.Empty(t, ch.Calls())
}

func TestActivityPingsAreThrottled(t *testing.T) {
	// One token, refilled every 1000s
	svc, ch := setup(0.001)
	for i := 0; i < 5; i++ {
		assert.NoError(t, svc.UserActivity(ctx, entity.ActivityEvent{Username: "alice", Action: "typing"}))
	}
	assert.Len(t, ch.CallsOf(entity.EmitUserActivity), 1)
}
