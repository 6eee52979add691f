package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
)

func (ctl *SignalWSController) handleRename(
	sid core.SessionID,
	conn *wsSignalConn,
	data []byte,
) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	if err := ctl.Orch.Registry.UpdateUsername(sid, p.Name); err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "invalid_name",
		})
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")

	ctl.handleWhoAmI(sid, conn)
	user := ctl.Orch.Registry.GetOrCreateUser(sid)

	broadcastResp := struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{
		Type: "member_updated",
		User: *user,
	}
	ctl.BroadcastFrom(sid, broadcastResp)
}

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *wsSignalConn,
) {
	user := ctl.Orch.Registry.GetOrCreateUser(sid)

	resp := struct {
		Type     string          `json:"type"`
		Username string          `json:"username"`
		Room     domain.RoomID   `json:"room,omitempty"`
		RoomName domain.RoomName `json:"room_name,omitempty"`
	}{
		Type:     "whoami",
		Username: user.Username,
	}
	if roomID, _, ok := ctl.Orch.Registry.RoomOf(sid); ok {
		if room, ok := ctl.Orch.Rooms.Get(roomID); ok {
			resp.Room = roomID
			resp.RoomName = room.Room().Name
		}
	}
	ctl.sendJSON(conn, resp)
}
