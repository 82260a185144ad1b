package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskrooms/taskrooms/internal/api"
	"github.com/taskrooms/taskrooms/internal/auth"
	"github.com/taskrooms/taskrooms/internal/broker"
	"github.com/taskrooms/taskrooms/internal/config"
	"github.com/taskrooms/taskrooms/internal/platform/factory"
	"github.com/taskrooms/taskrooms/internal/platform/logger"
	"github.com/taskrooms/taskrooms/internal/ws"
)

func main() {
	log := logger.New("taskrooms")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Taskrooms service starting…")

	// -------- Storage layer -----------------
	st, err := factory.NewStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Storage adapter unavailable")
	}
	pinger, ok := st.(api.Pinger)
	if !ok {
		log.Fatal().Msg("store does not support health pings")
	}

	// -------- Realtime core ----------------
	authSvc := auth.New(st)
	b, err := broker.New(log, st, broker.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("Broker initialization failed")
	}
	wsHandler := ws.NewHandler(log, authSvc, b, cfg.SendBuffer)

	// -------- Router & Server --------------
	router := api.NewRouter(authSvc, st, pinger, wsHandler)
	server := &http.Server{
		Addr:        cfg.GetHTTPAddr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived websocket connections.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server…")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
