package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
)

// relaySignal forwards SDP offers/answers and ICE candidates between two
// peers in the same room. The server never terminates media; it only
// rewrites the addressing so the receiver knows who is calling.
func (ctl *SignalWSController) relaySignal(
	sid core.SessionID,
	conn *wsSignalConn,
	data []byte,
) {
	var addr struct {
		Type string `json:"type"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &addr); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad relay payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}
	if addr.To == "" {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "missing target",
		})
		return
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	msg["from"] = string(user.ID)
	delete(msg, "to")

	out, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("relay marshal")
		return
	}

	if !ctl.Orch.RelayTo(sid, domain.UserID(addr.To), out) {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "peer_unavailable",
		})
	}
}
