package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tunetrail/tunetrail/internal/app"
	"github.com/tunetrail/tunetrail/internal/config"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
	"github.com/tunetrail/tunetrail/internal/provider/spotify"
)

func main() {
	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "ruta a config.yaml (opcional)")
		envFile    = flag.String("env-file", ".env", "ruta a .env")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no .env loaded (%v); using process environment", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "tunetrail"})
	defer logger.Sync()
	lg := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn("cleanup error", logger.Err(err))
		}
	}()

	if cfg.SpotifyConfigured() {
		// warm-up: el primer search no paga el client_credentials
		go func() {
			wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if _, err := a.AppTokens.Get(wctx, spotify.Provider); err != nil {
				lg.Warn("spotify app token warm-up failed", logger.Err(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server failed", logger.Err(err))
		}
	case <-ctx.Done():
		lg.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			lg.Warn("graceful shutdown incomplete", logger.Err(err))
		}
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
