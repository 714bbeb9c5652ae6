package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prodlens/prodlens/internal/api/bedrock"
	"github.com/prodlens/prodlens/internal/config"
	"github.com/prodlens/prodlens/internal/frontdoor"
	"github.com/prodlens/prodlens/internal/pipeline"
	"github.com/prodlens/prodlens/internal/screenshot"
	"github.com/prodlens/prodlens/internal/server"
	"github.com/prodlens/prodlens/internal/stage"
	"github.com/prodlens/prodlens/internal/storage"
	"github.com/prodlens/prodlens/internal/storage/memory"
	"github.com/prodlens/prodlens/internal/storage/sqlite"
	"github.com/prodlens/prodlens/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("prodlens", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	configPath := os.Getenv("PRODLENS_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	var clientOpts []bedrock.ClientOption
	if cfg.Model.BaseURL != "" {
		clientOpts = append(clientOpts, bedrock.WithBaseURL(cfg.Model.BaseURL))
	}
	client := bedrock.NewClient(cfg.Model.APIKey, clientOpts...)

	stageTimeout, err := time.ParseDuration(cfg.Model.StageTimeout)
	if err != nil {
		log.Fatalf("Invalid model.stage_timeout: %v", err)
	}
	stageOpts := stage.Options{
		Client:  client,
		ModelID: cfg.Model.ModelID,
		Timeout: stageTimeout,
	}

	def := pipeline.NewDefinition(
		stage.NewVisual(stageOpts),
		stage.NewPattern(stageOpts),
		stage.NewAssessment(stageOpts),
	)
	orch, err := pipeline.NewOrchestrator(def, store, logger)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	var screenshots screenshot.Store
	if cfg.Screenshots.Enabled {
		screenshots, err = screenshot.NewMinioStore(screenshot.Config{
			Endpoint:  cfg.Screenshots.Endpoint,
			AccessKey: cfg.Screenshots.AccessKey,
			SecretKey: cfg.Screenshots.SecretKey,
			Bucket:    cfg.Screenshots.Bucket,
			UseSSL:    cfg.Screenshots.UseSSL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize screenshot store: %v", err)
		}
	}

	requestTimeout, err := time.ParseDuration(cfg.Server.RequestTimeout)
	if err != nil {
		log.Fatalf("Invalid server.request_timeout: %v", err)
	}
	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: requestTimeout,
		Throttle:       server.NewThrottle(cfg.Throttle.RatePerSecond, cfg.Throttle.Burst, cfg.Throttle.DailyQuota),
	}, logger)

	frontdoor.NewHandler(orch, store, screenshots, logger).Register(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}
}

func newStore(cfg *config.Config) (storage.ExecutionStore, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLite.Path)
	default:
		return memory.New(), nil
	}
}
