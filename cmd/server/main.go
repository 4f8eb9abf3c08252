package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/devcord-rt/internal/adapters/http"
	"github.com/dkeye/devcord-rt/internal/adapters/identity"
	wssignal "github.com/dkeye/devcord-rt/internal/adapters/signal"
	"github.com/dkeye/devcord-rt/internal/app"
	"github.com/dkeye/devcord-rt/internal/app/orch"
	"github.com/dkeye/devcord-rt/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		// JSON lines for the log collector.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	reg := app.NewRegistry(app.PolicyFromMode(cfg.Backpressure))
	rooms := app.NewRoomManager(reg)
	chat := app.NewChatRelay(reg, rooms)
	o := orch.New(reg, rooms, chat)

	var id identity.Identity = identity.NewJWTIdentity(cfg.Secret)
	if cfg.Auth == config.AuthStatic {
		log.Warn().Msg("static identity enabled, clients choose their own user id")
		id = identity.StaticIdentity{}
	}

	ctrl := wssignal.NewSignalWSController(o, wssignal.OptionsFrom(cfg))
	r := router.SetupRouter(ctx, cfg, o, ctrl, id)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("realtime server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Hijacked WebSocket connections survive Shutdown.
	n := reg.CloseAll()
	ctrl.Wait()
	log.Info().Int("closed", n).Msg("Server exited gracefully")
}
