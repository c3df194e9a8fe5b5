package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhive/internal/auth"
	"taskhive/internal/config"
	"taskhive/internal/httpapi"
	"taskhive/internal/notify"
	"taskhive/internal/obs"
	"taskhive/internal/store/pg"
	"taskhive/internal/todo"
)

var version = "0.3.1"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	obs.Init()
	logger := obs.SetupLogger(cfg.Env)
	logger.Info("starting taskhive-api",
		slog.String("version", version),
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.HTTP.Addr),
	)

	ctx := context.Background()
	store, err := pg.Open(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open database", obs.Err(err))
		os.Exit(1)
	}

	authSvc, err := auth.NewService(store.Users(), store.RefreshTokens(),
		auth.WithSigningKey([]byte(cfg.JWT.SigningKey), cfg.JWT.Issuer, cfg.JWT.Audience),
		auth.WithAccessTTL(cfg.JWT.AccessTTL),
		auth.WithRefreshTTL(cfg.JWT.RefreshTTL),
		auth.WithNotifier(notify.Log{Logger: logger}),
		auth.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build auth service", obs.Err(err))
		os.Exit(1)
	}
	todoSvc, err := todo.NewService(logger, store.Todos())
	if err != nil {
		logger.Error("failed to build todo service", obs.Err(err))
		os.Exit(1)
	}

	api := httpapi.New(logger, authSvc, todoSvc,
		httpapi.ReadyProbe{DB: store.DB()},
		httpapi.Options{
			Version:      version,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
			RateBurst:    cfg.Rate.Burst,
			RatePerSec:   float64(cfg.Rate.PerSec),
		},
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", obs.Err(err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = store.Close()
	logger.Info("stopped")
}
