// Package recovery implements the session reconnection and state-recovery
// layer: per-room message sequencing, a bounded replay buffer, participant
// watermark tracking and room key cleanup. All coordination goes through
// redis so correctness holds across server processes.
package recovery

import (
	"fmt"

	"github.com/voxroom/signaling/internal/domain"
)

const keyPrefix = "vox:"

func roomSeqKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s:seq", keyPrefix, roomID)
}

func roomBufferKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s:buffer", keyPrefix, roomID)
}

func participantKey(roomID domain.RoomID, userID domain.UserID) string {
	return fmt.Sprintf("%sroom:%s:participant:%s", keyPrefix, roomID, userID)
}

func roomKeyPattern(roomID domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s:*", keyPrefix, roomID)
}
