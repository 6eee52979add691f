package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
)

// reconnectAck is sent before replay begins so the client can show a
// "catching up" state instead of treating the backlog as fresh traffic.
type reconnectAck struct {
	Type                string  `json:"type"`
	DisconnectDurationS float64 `json:"disconnect_duration_seconds"`
	MissedMessageCount  int     `json:"missed_message_count"`
}

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.SessionID,
	conn *wsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}
	if p.Room == "" {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "empty room",
		})
		return
	}

	if p.Name != "" {
		if err := ctl.Orch.Registry.UpdateUsername(sid, p.Name); err == nil {
			log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename on join")
		}
	}

	roomID := domain.RoomID(p.Room)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.Room).Msg("join")
	info := ctl.Orch.Join(ctx, sid, roomID)

	room := ctl.Orch.Rooms.GetOrCreate(roomID)
	clientResp := struct {
		Type     string           `json:"type"`
		Room     domain.RoomID    `json:"room"`
		RoomName domain.RoomName  `json:"room_name"`
		Members  []core.MemberDTO `json:"members"`
		Count    int              `json:"count"`
	}{
		Type:     "room_state",
		Room:     room.Room().ID,
		RoomName: room.Room().Name,
		Members:  room.MembersSnapshot(),
		Count:    room.MemberCount(),
	}
	ctl.sendJSON(conn, clientResp)

	user := ctl.Orch.Registry.GetOrCreateUser(sid)

	if info.IsReconnect {
		ctl.sendJSON(conn, reconnectAck{
			Type:                "reconnection-detected",
			DisconnectDurationS: info.DisconnectDuration.Seconds(),
			MissedMessageCount:  len(info.MissedMessages),
		})
		go ctl.replayMissed(ctx, roomID, user.ID, conn, info.MissedMessages)
	}

	broadcastResp := struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{
		Type: "member_joined",
		User: *user,
	}
	ctl.BroadcastFrom(sid, broadcastResp)
}

// replayMissed pushes the missed backlog to one client in ascending
// sequence order, pacing sends so the receive buffer is not flooded.
// If the connection dies mid-replay the rest is abandoned; the next
// reconnect recomputes the gap from whatever watermark stuck.
func (ctl *SignalWSController) replayMissed(
	ctx context.Context,
	roomID domain.RoomID,
	userID domain.UserID,
	conn *wsSignalConn,
	missed []domain.BufferedMessage,
) {
	var highest uint64
	for _, m := range missed {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("user", string(userID)).Msg("replay abandoned, ctx done")
			ctl.commitReplayWatermark(roomID, userID, highest)
			return
		case <-time.After(ctl.ReplayDelay):
		}
		if err := conn.TrySend(core.Frame(m.Payload)); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("user", string(userID)).Uint64("seq", m.Sequence).Msg("replay abandoned on send")
			break
		}
		highest = m.Sequence
	}
	ctl.commitReplayWatermark(roomID, userID, highest)
}

func (ctl *SignalWSController) commitReplayWatermark(roomID domain.RoomID, userID domain.UserID, highest uint64) {
	if highest == 0 {
		return
	}
	// Deliberately not the connection ctx: the watermark write should
	// survive the connection that triggered it.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ctl.Orch.Tracker.AdvanceWatermark(ctx, roomID, userID, highest); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(userID)).Uint64("seq", highest).Msg("replay watermark advance failed")
	}
}

// handleLeave — leaves the current room, the connection stays open.
func (ctl *SignalWSController) handleLeave(
	ctx context.Context,
	sid core.SessionID,
	conn *wsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	roomID, _, ok := ctl.Orch.Registry.RoomOf(sid)

	ctl.Orch.Leave(ctx, sid)
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})

	if ok {
		user := ctl.Orch.Registry.GetOrCreateUser(sid)

		broadcastResp := struct {
			Type string      `json:"type"`
			User domain.User `json:"user"`
		}{
			Type: "member_left",
			User: *user,
		}
		ctl.BroadcastRoom(roomID, broadcastResp)
	}
}

func (ctl *SignalWSController) BroadcastFrom(sid core.SessionID, v any) {
	for _, roomMate := range ctl.Orch.Registry.RoomMates(sid) {
		ctl.sendToSession(roomMate.Session, v)
	}
}

func (ctl *SignalWSController) BroadcastRoom(roomID domain.RoomID, v any) {
	for _, snap := range ctl.Orch.Registry.MembersOfRoom(roomID) {
		ctl.sendToSession(snap.Session, v)
	}
}

func (ctl *SignalWSController) sendToSession(sess core.MemberSession, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	_ = sess.Signal().TrySend(b)
}
