// Cityline - conversational municipal services server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/cityline/internal/api"
	"github.com/ashureev/cityline/internal/config"
	"github.com/ashureev/cityline/internal/conversation"
	"github.com/ashureev/cityline/internal/convlog"
	"github.com/ashureev/cityline/internal/flow"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/middleware"
	"github.com/ashureev/cityline/internal/records"
	"github.com/ashureev/cityline/internal/store"
	"github.com/ashureev/cityline/internal/sweeper"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "session_backend", cfg.SessionBackend)

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Error("Failed to close session backend", "error", closeErr)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = backend.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("session backend health check: %w", err)
	}
	slog.Info("Session backend connected")

	table, err := loadRecords(cfg.RecordsPath)
	if err != nil {
		return err
	}

	turnLog, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}
	defer func() {
		if closeErr := turnLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	sessions := store.NewSessions(backend)
	classifier := intent.New()
	orch, err := conversation.New(conversation.Config{
		Sessions:   sessions,
		Classifier: classifier,
		Flows: flow.All(flow.Deps{
			Lookup:            records.NewGuarded(table, cfg.LookupTimeout, logger),
			Registry:          table,
			AutoContinueDelay: cfg.AutoContinueDelay,
			DefaultTicketID:   cfg.DefaultTicketID,
			Logger:            logger,
		}),
		Logger:         logger,
		TurnLogger:     turnLog,
		ReceiptBaseURL: cfg.ReceiptBaseURL,
	})
	if err != nil {
		return fmt.Errorf("initialize orchestrator: %w", err)
	}

	handler := api.NewHandler(orch, sessions, backend, classifier.Rules(), api.Options{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
		AllowedOrigins:     cfg.AllowedOrigins,
	}, logger)
	defer handler.Close()

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.New(backend, cfg.SessionTTL, cfg.SweepInterval, logger).Run(gctx)
	})
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return store.NewRedis(client, cfg.SessionTTL), nil
	default:
		s, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		return s, nil
	}
}

func loadRecords(path string) (*records.Table, error) {
	if path == "" {
		slog.Info("Using built-in municipal records")
		return records.NewTable(records.DefaultData()), nil
	}
	table, err := records.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	slog.Info("Loaded municipal records", "path", path)
	return table, nil
}
