package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/voxroom/signaling/internal/adapters/http"
	"github.com/voxroom/signaling/internal/app"
	"github.com/voxroom/signaling/internal/app/orch"
	"github.com/voxroom/signaling/internal/config"
	"github.com/voxroom/signaling/internal/recovery"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	// A dead store only disables recovery, never live delivery, so a
	// failed ping is worth a warning and nothing more.
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, reconnection recovery degraded")
	}
	pingCancel()

	manager := app.NewRoomManager()
	reg := app.NewRegistry()

	tracker := recovery.NewParticipantTracker(rdb, cfg.RecoveryTTL)
	buffer := recovery.NewMessageBuffer(rdb, cfg.BufferCapacity, cfg.RecoveryTTL)
	lifecycle := recovery.NewRoomLifecycle(rdb, manager)
	coordinator := recovery.NewCoordinator(tracker, buffer, lifecycle)

	o := &orch.Orchestrator{
		Registry:  reg,
		Rooms:     manager,
		Policy:    app.SimplePolicy{},
		Sequencer: recovery.NewSequencer(rdb),
		Buffer:    buffer,
		Tracker:   tracker,
		Recovery:  coordinator,
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
