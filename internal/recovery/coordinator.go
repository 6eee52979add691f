package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/domain"
)

// ReconnectInfo is what the transport layer gets back from HandleConnect.
// On a reconnect it carries everything needed to drive the replay:
// how long the user was gone and the ordered missed messages.
type ReconnectInfo struct {
	IsReconnect        bool
	DisconnectDuration time.Duration
	MissedMessages     []domain.BufferedMessage
}

// Coordinator is the orchestration entry point for every connection-open
// and connection-close event. It decides new-join vs reconnect and
// computes the missed-message set from the stored watermark.
//
// Nothing here may block or fail the primary delivery path: every store
// failure degrades to "ordinary fresh join" and is only logged.
type Coordinator struct {
	tracker   *ParticipantTracker
	buffer    *MessageBuffer
	lifecycle *RoomLifecycle
}

func NewCoordinator(tracker *ParticipantTracker, buffer *MessageBuffer, lifecycle *RoomLifecycle) *Coordinator {
	return &Coordinator{tracker: tracker, buffer: buffer, lifecycle: lifecycle}
}

// HandleConnect classifies a connection-open event.
//
// New join: no prior record (never connected, or the record expired), or
// the prior record still says connected (duplicate open).
//
// Reconnect: prior record says disconnected. A watermark older than the
// oldest surviving buffer entry silently yields a partial replay; that is
// the accepted data-loss boundary, not an error.
func (c *Coordinator) HandleConnect(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ReconnectInfo {
	info := ReconnectInfo{}

	prior, err := c.tracker.GetState(ctx, roomID, userID)
	if err != nil {
		log.Warn().Err(err).Str("module", "recovery.coordinator").
			Str("room", string(roomID)).Str("user", string(userID)).
			Msg("state read failed, degrading to fresh join")
		prior = nil
	}

	if prior != nil && !prior.IsConnected {
		info.IsReconnect = true
		info.DisconnectDuration = time.Since(prior.LastSeen)

		missed, err := c.buffer.MessagesSince(ctx, roomID, prior.LastSequence)
		if err != nil {
			log.Warn().Err(err).Str("module", "recovery.coordinator").
				Str("room", string(roomID)).Str("user", string(userID)).
				Msg("buffer read failed, reconnecting without replay")
		} else {
			info.MissedMessages = missed
		}
		log.Info().Str("module", "recovery.coordinator").
			Str("room", string(roomID)).Str("user", string(userID)).
			Dur("offline", info.DisconnectDuration).Int("missed", len(info.MissedMessages)).
			Msg("reconnect detected")
	}

	if err := c.tracker.RecordState(ctx, roomID, userID, true, ""); err != nil {
		log.Warn().Err(err).Str("module", "recovery.coordinator").
			Str("room", string(roomID)).Str("user", string(userID)).
			Msg("failed to record connected state")
	}
	return info
}

// HandleDisconnect marks the participant disconnected and lets the
// lifecycle manager reclaim the room if it went empty.
func (c *Coordinator) HandleDisconnect(ctx context.Context, roomID domain.RoomID, userID domain.UserID) {
	if err := c.tracker.RecordState(ctx, roomID, userID, false, ""); err != nil {
		log.Warn().Err(err).Str("module", "recovery.coordinator").
			Str("room", string(roomID)).Str("user", string(userID)).
			Msg("failed to record disconnected state")
	}
	if c.lifecycle != nil {
		c.lifecycle.OnPossibleEmptyRoom(ctx, roomID)
	}
}
