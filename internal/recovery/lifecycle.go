package recovery

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/domain"
)

// ParticipantCounter reports how many participants are live in a room
// right now. Implemented by the in-process room registry.
type ParticipantCounter interface {
	LiveParticipants(roomID domain.RoomID) int
}

// RoomLifecycle purges all per-room keys once the last participant left.
// Cleanup is best-effort and idempotent; the sliding TTLs reclaim
// everything eventually even if it never runs.
type RoomLifecycle struct {
	client  *redis.Client
	counter ParticipantCounter
}

func NewRoomLifecycle(client *redis.Client, counter ParticipantCounter) *RoomLifecycle {
	return &RoomLifecycle{client: client, counter: counter}
}

// OnPossibleEmptyRoom checks the live count and cleans up when it is zero.
func (l *RoomLifecycle) OnPossibleEmptyRoom(ctx context.Context, roomID domain.RoomID) {
	if l.counter != nil && l.counter.LiveParticipants(roomID) > 0 {
		return
	}
	if err := l.Cleanup(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("module", "recovery.lifecycle").Str("room", string(roomID)).Msg("room cleanup failed, TTLs will reclaim")
		return
	}
	log.Info().Str("module", "recovery.lifecycle").Str("room", string(roomID)).Msg("room cleaned up")
}

// Cleanup deletes the sequence counter, the message buffer and every
// participant record under the room prefix.
func (l *RoomLifecycle) Cleanup(ctx context.Context, roomID domain.RoomID) error {
	pattern := roomKeyPattern(roomID)
	var cursor uint64
	for {
		keys, next, err := l.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis: failed to scan room keys %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := l.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis: failed to delete room keys %s: %w", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
