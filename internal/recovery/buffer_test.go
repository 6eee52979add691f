package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesSinceReturnsTail(t *testing.T) {
	_, client := newTestStore(t)
	b := NewMessageBuffer(client, 50, 5*time.Minute)
	ctx := context.Background()

	for seq, body := range map[uint64]string{1: "a", 2: "b", 3: "c"} {
		payload, _ := json.Marshal(map[string]string{"body": body})
		require.NoError(t, b.Append(ctx, "r1", seq, payload))
	}

	missed, err := b.MessagesSince(ctx, "r1", 1)
	require.NoError(t, err)
	require.Len(t, missed, 2)
	assert.Equal(t, uint64(2), missed[0].Sequence)
	assert.Equal(t, uint64(3), missed[1].Sequence)
	assert.JSONEq(t, `{"body":"b"}`, string(missed[0].Payload))
	assert.JSONEq(t, `{"body":"c"}`, string(missed[1].Payload))
}

func TestBufferBoundedToCapacity(t *testing.T) {
	_, client := newTestStore(t)
	b := NewMessageBuffer(client, 50, 5*time.Minute)
	ctx := context.Background()

	for seq := uint64(1); seq <= 60; seq++ {
		payload, _ := json.Marshal(map[string]uint64{"n": seq})
		require.NoError(t, b.Append(ctx, "r1", seq, payload))
	}

	all, err := b.MessagesSince(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, all, 50)
	assert.Equal(t, uint64(11), all[0].Sequence, "oldest ten must be evicted")
	assert.Equal(t, uint64(60), all[len(all)-1].Sequence)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].Sequence+1, all[i].Sequence, "no gaps, ascending")
	}
}

func TestMessagesSinceMissingBuffer(t *testing.T) {
	_, client := newTestStore(t)
	b := NewMessageBuffer(client, 50, 5*time.Minute)

	missed, err := b.MessagesSince(context.Background(), "ghost", 0)
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestMessagesSinceNothingNewer(t *testing.T) {
	_, client := newTestStore(t)
	b := NewMessageBuffer(client, 50, 5*time.Minute)
	ctx := context.Background()

	payload, _ := json.Marshal(map[string]string{"body": "x"})
	require.NoError(t, b.Append(ctx, "r1", 7, payload))

	missed, err := b.MessagesSince(ctx, "r1", 7)
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestBufferExpires(t *testing.T) {
	mr, client := newTestStore(t)
	ttl := 5 * time.Minute
	b := NewMessageBuffer(client, 50, ttl)
	ctx := context.Background()

	payload, _ := json.Marshal(map[string]string{"body": "gone"})
	require.NoError(t, b.Append(ctx, "r1", 1, payload))

	mr.FastForward(ttl + time.Second)

	missed, err := b.MessagesSince(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Empty(t, missed, "expired buffer reads as empty, not as an error")
}

func TestAppendSlidesExpiry(t *testing.T) {
	mr, client := newTestStore(t)
	ttl := 5 * time.Minute
	b := NewMessageBuffer(client, 50, ttl)
	ctx := context.Background()

	for seq := uint64(1); seq <= 3; seq++ {
		payload, _ := json.Marshal(map[string]string{"body": fmt.Sprintf("m%d", seq)})
		require.NoError(t, b.Append(ctx, "r1", seq, payload))
		mr.FastForward(4 * time.Minute)
	}

	// Still inside the last append's window: every entry survives because
	// each append slid the whole list's expiry forward.
	missed, err := b.MessagesSince(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Len(t, missed, 3)
}
