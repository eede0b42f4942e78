/*
Package main is the entry point for the roomlink server.

It is responsible for loading configuration, initializing the global logging system,
wiring the realtime engine to its persistence and blob storage backends, serving HTTP and
WebSocket traffic, and gracefully handling operating system interrupt signals (SIGINT,
SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"roomlink/internal/app/account"
	"roomlink/internal/app/db"
	"roomlink/internal/app/hub"
	"roomlink/internal/app/invite"
	"roomlink/internal/app/message"
	"roomlink/internal/app/relay"
	"roomlink/internal/app/room"
	"roomlink/internal/app/session"
	"roomlink/internal/app/storage"
	"roomlink/internal/app/store"
	"roomlink/internal/configs"
	"roomlink/internal/handler"
	"roomlink/internal/pkg/logx"
)

func main() {
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("invite_ttl", cfg.InviteTTL).
		Bool("postgres", cfg.DatabaseDSN != "").
		Bool("blob_storage", cfg.S3BucketName != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal(err, "Server stopped with error")
	}

	logx.Info("Server gracefully stopped.")
}

func run(ctx context.Context, cfg *configs.AppConfig) error {
	persistence, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var blobs storage.BlobStore
	storageCfg := storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3Region:          cfg.S3Region,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	}
	if storageCfg.Enabled() {
		if blobs, err = storage.NewBlobStore(ctx, storageCfg); err != nil {
			return err
		}
	}

	connections := hub.New(cfg.SendQueueSize)
	accounts := account.NewService(persistence, bcrypt.DefaultCost)
	sessions := session.NewRegistry(accounts, persistence, connections, cfg.JWTSecret, cfg.SessionTTL)
	connections.SetPresenceHook(sessions.OnPresence)
	defer sessions.Shutdown()

	rooms := room.NewStore(persistence, persistence, connections)
	if err := rooms.Load(ctx); err != nil {
		return fmt.Errorf("restore rooms: %w", err)
	}

	invites := invite.NewManager(persistence, persistence, rooms, connections, cfg.InviteTTL)
	if err := invites.Load(ctx); err != nil {
		return fmt.Errorf("restore invites: %w", err)
	}
	defer invites.Shutdown()

	messages := message.NewPipeline(rooms, persistence, connections, blobs, message.Limits{
		MaxContentBytes:    cfg.MaxContentBytes,
		MaxAttachments:     cfg.MaxAttachments,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
	})

	deps := &handler.AppDeps{
		Config:   cfg,
		Accounts: accounts,
		Sessions: sessions,
		Hub:      connections,
		Rooms:    rooms,
		Invites:  invites,
		Messages: messages,
		Relay:    relay.New(rooms, connections),
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logx.Info(fmt.Sprintf("roomlink server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logx.Info("Received shutdown signal. Starting graceful shutdown...")

		connections.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore connects to PostgreSQL when DATABASE_URL is set and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *configs.AppConfig) (store.Store, func(), error) {
	if cfg.DatabaseDSN == "" {
		if !cfg.IsDevelopment() {
			logx.Warn("DATABASE_URL is not set; state will be lost on restart.")
		}
		return store.NewMemory(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}

	return db.NewStore(pool), pool.Close, nil
}
