package recovery

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voxroom/signaling/internal/domain"
)

// Sequencer issues per-room, strictly increasing message sequence numbers.
// The counter lives in redis and is advanced with INCR, so numbers are
// collision-free even when several server processes serve the same room.
type Sequencer struct {
	client *redis.Client
}

func NewSequencer(client *redis.Client) *Sequencer {
	return &Sequencer{client: client}
}

// Next atomically increments the room counter and returns the new value.
// The first sequence for a room is 1; 0 means "nothing consumed yet".
func (s *Sequencer) Next(ctx context.Context, roomID domain.RoomID) (uint64, error) {
	key := roomSeqKey(roomID)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to increment sequence for room %s: %w", roomID, err)
	}
	return uint64(n), nil
}
