package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxroom/signaling/internal/app"
	"github.com/voxroom/signaling/internal/domain"
	"github.com/voxroom/signaling/internal/recovery"
)

func newTestRouter(t *testing.T) (*gin.Engine, *recovery.ParticipantTracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tracker := recovery.NewParticipantTracker(client, 5*time.Minute)
	api := NewAPI(tracker, app.NewRoomManager())

	r := gin.New()
	authed := r.Group("/api", BearerAuthMiddleware())
	authed.GET("/rooms", api.ListRooms)
	authed.POST("/rooms/:room/quality", api.ReportQuality)
	authed.GET("/rooms/:room/participants/:user/reconnection", api.ReconnectionState)
	return r, tracker
}

func TestReportQuality(t *testing.T) {
	r, tracker := newTestRouter(t)
	ctx := context.Background()

	// u1 is a known participant; the report should stick to their record.
	require.NoError(t, tracker.RecordState(ctx, "r1", "u1", true, ""))

	body, _ := json.Marshal(domain.QualityMetrics{LatencyMS: 300, PacketLossPercent: 0, JitterMS: 10, BandwidthKbps: 1500})
	req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/quality", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Quality         domain.QualityGrade `json:"quality"`
		Recommendations []string            `json:"recommendations"`
		Timestamp       string              `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.QualityPoor, resp.Quality)
	assert.NotEmpty(t, resp.Recommendations)
	assert.NotEmpty(t, resp.Timestamp)

	st, err := tracker.GetState(ctx, "r1", "u1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, domain.QualityPoor, st.ConnectionQuality)
}

func TestReportQualityBadPayload(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/quality", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconnectionStateFound(t *testing.T) {
	r, tracker := newTestRouter(t)

	require.NoError(t, tracker.RecordState(context.Background(), "r1", "u1", false, domain.QualityFair))

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/participants/u1/reconnection", nil)
	req.Header.Set("Authorization", "Bearer anyone")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var st domain.ParticipantState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, domain.RoomID("r1"), st.RoomID)
	assert.False(t, st.IsConnected)
	assert.Equal(t, domain.QualityFair, st.ConnectionQuality)
}

func TestReconnectionStateNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/participants/ghost/reconnection", nil)
	req.Header.Set("Authorization", "Bearer anyone")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBearerRequired(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
