package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
	"github.com/voxroom/signaling/internal/recovery"
)

func (ctl *SignalWSController) handleQuality(
	ctx context.Context,
	sid core.SessionID,
	conn *wsSignalConn,
	data []byte,
) {
	var p struct {
		Type string `json:"type"`
		domain.QualityMetrics
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad quality payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	report := recovery.Classify(p.QualityMetrics)

	if roomID, sess, ok := ctl.Orch.Registry.RoomOf(sid); ok {
		uid := sess.User().ID
		if err := ctl.Orch.Tracker.RecordQuality(ctx, roomID, uid, report.Quality); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("failed to store quality grade")
		}
	}

	ctl.sendJSON(conn, struct {
		Type            string              `json:"type"`
		Quality         domain.QualityGrade `json:"quality"`
		Recommendations []string            `json:"recommendations"`
	}{
		Type:            "quality",
		Quality:         report.Quality,
		Recommendations: report.Recommendations,
	})
}
