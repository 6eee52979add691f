package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/domain"
)

const (
	DefaultBufferCapacity int64 = 50
	DefaultRecoveryTTL          = 5 * time.Minute
)

// MessageBuffer keeps the most recent sequenced messages of a room in a
// bounded redis list with a sliding expiry. It is a best-effort replay
// source, not authoritative history: entries past the capacity or the TTL
// window are gone for good.
type MessageBuffer struct {
	client   *redis.Client
	capacity int64
	ttl      time.Duration
}

func NewMessageBuffer(client *redis.Client, capacity int64, ttl time.Duration) *MessageBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if ttl <= 0 {
		ttl = DefaultRecoveryTTL
	}
	return &MessageBuffer{client: client, capacity: capacity, ttl: ttl}
}

// Append stores one sequenced message, trims the list to capacity and
// slides the expiry. Callers never re-append the same sequence.
func (b *MessageBuffer) Append(ctx context.Context, roomID domain.RoomID, sequence uint64, payload json.RawMessage) error {
	msg := domain.BufferedMessage{
		Sequence:   sequence,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal buffered message seq %d: %w", sequence, err)
	}

	key := roomBufferKey(roomID)
	pipe := b.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, b.capacity-1)
	pipe.Expire(ctx, key, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to append to buffer for room %s: %w", roomID, err)
	}
	return nil
}

// MessagesSince returns every buffered entry with sequence > after, sorted
// ascending. A missing or expired buffer yields an empty slice, not an
// error.
func (b *MessageBuffer) MessagesSince(ctx context.Context, roomID domain.RoomID, after uint64) ([]domain.BufferedMessage, error) {
	key := roomBufferKey(roomID)
	raw, err := b.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read buffer for room %s: %w", roomID, err)
	}

	out := make([]domain.BufferedMessage, 0, len(raw))
	for _, entry := range raw {
		var msg domain.BufferedMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			log.Warn().Err(err).Str("module", "recovery.buffer").Str("room", string(roomID)).Msg("skipping undecodable buffer entry")
			continue
		}
		if msg.Sequence > after {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}
