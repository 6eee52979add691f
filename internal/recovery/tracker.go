package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxroom/signaling/internal/domain"
)

// ParticipantTracker maintains the per (room, user) recovery record in
// redis. Every write slides the record's expiry, so an inactive pair
// disappears on its own after the TTL.
type ParticipantTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewParticipantTracker(client *redis.Client, ttl time.Duration) *ParticipantTracker {
	if ttl <= 0 {
		ttl = DefaultRecoveryTTL
	}
	return &ParticipantTracker{client: client, ttl: ttl}
}

// RecordState upserts the participant record. On the first write for a
// pair the watermark starts at 0. Pass domain.QualityGrade("") to leave
// the stored grade untouched.
func (t *ParticipantTracker) RecordState(ctx context.Context, roomID domain.RoomID, userID domain.UserID, connected bool, quality domain.QualityGrade) error {
	st, err := t.GetState(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if st == nil {
		st = &domain.ParticipantState{
			RoomID:            roomID,
			UserID:            userID,
			ConnectionQuality: domain.QualityUnknown,
		}
	}
	st.IsConnected = connected
	st.LastSeen = time.Now().UTC()
	if quality != "" {
		st.ConnectionQuality = quality
	}
	return t.save(ctx, st)
}

// AdvanceWatermark raises the user's consumed-sequence watermark to
// sequence if it is higher than the stored one. No record, no write: the
// record is created by the connect path, not here.
func (t *ParticipantTracker) AdvanceWatermark(ctx context.Context, roomID domain.RoomID, userID domain.UserID, sequence uint64) error {
	st, err := t.GetState(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if st == nil || sequence <= st.LastSequence {
		return nil
	}
	st.LastSequence = sequence
	return t.save(ctx, st)
}

// RecordQuality stores a new grade on an existing record, leaving the
// connected flag and watermark alone. Absent record, no write: a grade
// for a participant the connect path never saw would make the next join
// look like a reconnect.
func (t *ParticipantTracker) RecordQuality(ctx context.Context, roomID domain.RoomID, userID domain.UserID, quality domain.QualityGrade) error {
	st, err := t.GetState(ctx, roomID, userID)
	if err != nil || st == nil {
		return err
	}
	st.ConnectionQuality = quality
	return t.save(ctx, st)
}

// GetState returns the participant record, or (nil, nil) when none exists
// (never written, expired, or cleaned up).
func (t *ParticipantTracker) GetState(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.ParticipantState, error) {
	key := participantKey(roomID, userID)
	data, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: failed to get participant state %s: %w", key, err)
	}
	var st domain.ParticipantState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("redis: failed to decode participant state %s: %w", key, err)
	}
	return &st, nil
}

func (t *ParticipantTracker) save(ctx context.Context, st *domain.ParticipantState) error {
	key := participantKey(st.RoomID, st.UserID)
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal participant state %s: %w", key, err)
	}
	if err := t.client.Set(ctx, key, data, t.ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to save participant state %s: %w", key, err)
	}
	return nil
}
