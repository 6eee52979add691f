package domain

import (
	"encoding/json"
	"time"
)

// BufferedMessage is one sequenced outbound message held for replay.
// Immutable once written; dropped by ring eviction or TTL expiry.
type BufferedMessage struct {
	Sequence   uint64          `json:"sequence"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ParticipantState is the per (room, user) recovery record.
// LastSequence is the user's watermark: the highest sequence the user is
// known to have consumed. It only ever moves forward.
type ParticipantState struct {
	RoomID            RoomID       `json:"room_id"`
	UserID            UserID       `json:"user_id"`
	IsConnected       bool         `json:"is_connected"`
	LastSeen          time.Time    `json:"last_seen"`
	LastSequence      uint64       `json:"last_sequence"`
	ConnectionQuality QualityGrade `json:"connection_quality"`
}
