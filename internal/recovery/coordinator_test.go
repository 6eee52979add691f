package recovery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxroom/signaling/internal/domain"
)

type staticCounter int

func (c staticCounter) LiveParticipants(domain.RoomID) int { return int(c) }

func newTestCoordinator(t *testing.T, client *redis.Client, live int) (*Coordinator, *ParticipantTracker, *MessageBuffer) {
	t.Helper()
	tracker := NewParticipantTracker(client, 5*time.Minute)
	buffer := NewMessageBuffer(client, 50, 5*time.Minute)
	lifecycle := NewRoomLifecycle(client, staticCounter(live))
	return NewCoordinator(tracker, buffer, lifecycle), tracker, buffer
}

func TestHandleConnectFirstEverIsNewJoin(t *testing.T) {
	_, client := newTestStore(t)
	c, tracker, _ := newTestCoordinator(t, client, 1)
	ctx := context.Background()

	info := c.HandleConnect(ctx, "r1", "u1")
	assert.False(t, info.IsReconnect)
	assert.Empty(t, info.MissedMessages)

	st, err := tracker.GetState(ctx, "r1", "u1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.IsConnected)
}

func TestHandleConnectDuplicateOpenIsNewJoin(t *testing.T) {
	_, client := newTestStore(t)
	c, tracker, _ := newTestCoordinator(t, client, 1)
	ctx := context.Background()

	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", true, ""))

	info := c.HandleConnect(ctx, "r1", "u1")
	assert.False(t, info.IsReconnect, "already-connected state means duplicate open, not reconnect")
}

func TestHandleConnectReconnectReplaysMissed(t *testing.T) {
	_, client := newTestStore(t)
	c, tracker, buffer := newTestCoordinator(t, client, 1)
	ctx := context.Background()

	// u1 saw sequence 1, then dropped.
	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", true, ""))
	require.NoError(t, tracker.AdvanceWatermark(ctx, "r1", "u1", 1))
	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", false, ""))

	for seq, body := range map[uint64]string{1: "a", 2: "b", 3: "c"} {
		payload, _ := json.Marshal(map[string]string{"body": body})
		require.NoError(t, buffer.Append(ctx, "r1", seq, payload))
	}

	info := c.HandleConnect(ctx, "r1", "u1")
	require.True(t, info.IsReconnect)
	assert.GreaterOrEqual(t, info.DisconnectDuration, time.Duration(0))
	require.Len(t, info.MissedMessages, 2)
	assert.Equal(t, uint64(2), info.MissedMessages[0].Sequence)
	assert.Equal(t, uint64(3), info.MissedMessages[1].Sequence)

	st, err := tracker.GetState(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.True(t, st.IsConnected)
}

func TestHandleConnectAfterStateExpiryIsNewJoin(t *testing.T) {
	mr, client := newTestStore(t)
	c, tracker, _ := newTestCoordinator(t, client, 1)
	ctx := context.Background()

	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", false, ""))
	mr.FastForward(6 * time.Minute)

	info := c.HandleConnect(ctx, "r1", "u1")
	assert.False(t, info.IsReconnect, ">TTL offline is indistinguishable from a fresh join")
}

func TestHandleConnectStoreDownDegradesToNewJoin(t *testing.T) {
	mr, client := newTestStore(t)
	c, _, _ := newTestCoordinator(t, client, 1)

	mr.Close()

	info := c.HandleConnect(context.Background(), "r1", "u1")
	assert.False(t, info.IsReconnect)
	assert.Empty(t, info.MissedMessages)
}

func TestHandleDisconnectMarksStateAndCleansEmptyRoom(t *testing.T) {
	_, client := newTestStore(t)
	c, tracker, buffer := newTestCoordinator(t, client, 0)
	ctx := context.Background()

	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", true, ""))
	payload, _ := json.Marshal(map[string]string{"body": "x"})
	require.NoError(t, buffer.Append(ctx, "r1", 1, payload))

	c.HandleDisconnect(ctx, "r1", "u1")

	// Room went empty, so the lifecycle purged every key.
	st, err := tracker.GetState(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Nil(t, st)
	missed, err := buffer.MessagesSince(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestHandleDisconnectKeepsBusyRoom(t *testing.T) {
	_, client := newTestStore(t)
	c, tracker, _ := newTestCoordinator(t, client, 2)
	ctx := context.Background()

	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", true, ""))

	c.HandleDisconnect(ctx, "r1", "u1")

	st, err := tracker.GetState(ctx, "r1", "u1")
	require.NoError(t, err)
	require.NotNil(t, st, "others still live, nothing purged")
	assert.False(t, st.IsConnected)
}
