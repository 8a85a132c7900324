package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/ayudame/internal/backup"
	"github.com/dukerupert/ayudame/internal/config"
	"github.com/dukerupert/ayudame/internal/database"
	"github.com/dukerupert/ayudame/internal/email"
	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/identity"
	"github.com/dukerupert/ayudame/internal/logging"
	"github.com/dukerupert/ayudame/internal/server"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	if !emailClient.Configured() {
		slog.Warn("postmark token not set, verification emails disabled")
	}

	eng := engine.New(db, cfg.Engine(), engine.WithLogger(logger))
	provider := identity.New(db, emailClient, identity.WithLogger(logger))

	// Repair in-progress counters left behind by a previous crash
	if n, err := eng.Reconcile(context.Background(), ""); err != nil {
		slog.Error("reconcile stats", "error", err)
	} else if n > 0 {
		slog.Info("reconciled stats", "users", n)
	}

	srv := server.New(db, eng, provider, server.Config{
		SecureCookies:  cfg.SecureCookies(),
		OriginPatterns: cfg.Origins,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessions, codes, err := srv.Provider().Cleanup(cleanupCtx)
				if err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if sessions+codes > 0 {
					slog.Info("cleaned up expired sessions", "sessions", sessions, "codes", codes)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	backups := backup.NewManager(cfg.S3, db, logger)
	if cfg.BackupsEnabled() {
		backups.Start(cleanupCtx, cfg.BackupInterval, cfg.BackupPassphrase, cfg.BackupRetention)
		slog.Info("scheduled backups enabled", "bucket", cfg.S3.Bucket, "every", cfg.BackupInterval)
	}

	go func() {
		slog.Info("ayudame starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	backups.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
