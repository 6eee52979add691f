package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/app/orch"
	"github.com/voxroom/signaling/internal/core"
)

// handleChat is the outbound-message hook: every room message goes through
// the orchestrator, which sequences it, buffers it for replay and fans it
// out to live members.
func (ctl *SignalWSController) handleChat(
	ctx context.Context,
	sid core.SessionID,
	conn *wsSignalConn,
	data []byte,
) {
	type chatPayload struct {
		Type string `json:"type"`
		Body string `json:"body"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}
	if p.Body == "" {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "empty body",
		})
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	if ctl.Limiter != nil && !ctl.Limiter.Allow(user.ID) {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "rate_limited",
		})
		return
	}

	seq, err := ctl.Orch.PublishChat(ctx, sid, p.Body)
	if err != nil {
		if errors.Is(err, orch.ErrNotInRoom) {
			ctl.sendJSON(conn, map[string]any{
				"type":  "error",
				"error": "not_in_room",
			})
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("publish chat")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "send_failed",
		})
		return
	}

	ctl.sendJSON(conn, struct {
		Type     string `json:"type"`
		Sequence uint64 `json:"sequence"`
	}{
		Type:     "chat_sent",
		Sequence: seq,
	})
}
