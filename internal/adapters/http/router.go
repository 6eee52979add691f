package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/adapters/signal"
	"github.com/voxroom/signaling/internal/app/orch"
	"github.com/voxroom/signaling/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// BearerAuthMiddleware resolves the caller identity for the REST API.
// Real authentication is out of scope: the bearer token (or the client
// token cookie) doubles as the user id.
func BearerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if token == "" {
			token, _ = c.Cookie("ct")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		c.Set("user_id", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VoxSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	limiter := signal.NewRoomRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	ctrl := signal.NewSignalWSController(o, limiter, cfg.ReplayDelay)
	ctrl.ReadLimit = cfg.ReadLimit
	ctrl.PingPeriod = cfg.PingPeriod
	api := NewAPI(o.Tracker, o.Rooms)

	apiGroup := r.Group("/api")

	apiGroup.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	authed := apiGroup.Group("", BearerAuthMiddleware())
	authed.GET("/rooms", api.ListRooms)
	authed.POST("/rooms/:room/quality", api.ReportQuality)
	authed.GET("/rooms/:room/participants/:user/reconnection", api.ReconnectionState)

	return r
}
