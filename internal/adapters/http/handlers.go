package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
	"github.com/voxroom/signaling/internal/recovery"
)

type API struct {
	Tracker *recovery.ParticipantTracker
	Rooms   core.RoomManager
}

func NewAPI(tracker *recovery.ParticipantTracker, rooms core.RoomManager) *API {
	return &API{Tracker: tracker, Rooms: rooms}
}

func (a *API) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.Rooms.List()})
}

// ReportQuality classifies a client metrics sample and stores the grade
// on the caller's participant record. Idempotent; the grade is the only
// side effect.
func (a *API) ReportQuality(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room"))
	userID := domain.UserID(c.GetString("user_id"))

	var metrics domain.QualityMetrics
	if err := c.ShouldBindJSON(&metrics); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metrics payload"})
		return
	}

	report := recovery.Classify(metrics)

	// Best effort: a dead store must not fail the report.
	if err := a.Tracker.RecordQuality(c.Request.Context(), roomID, userID, report.Quality); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("room", string(roomID)).Str("user", string(userID)).Msg("failed to store quality grade")
	}

	c.JSON(http.StatusOK, gin.H{
		"quality":         report.Quality,
		"recommendations": report.Recommendations,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// ReconnectionState is a read-only diagnostic: the raw participant record
// for a (room, user) pair, 404 when nothing is stored.
func (a *API) ReconnectionState(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room"))
	userID := domain.UserID(c.Param("user"))

	st, err := a.Tracker.GetState(c.Request.Context(), roomID, userID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(roomID)).Str("user", string(userID)).Msg("state read failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "state store unavailable"})
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reconnection state"})
		return
	}
	c.JSON(http.StatusOK, st)
}
