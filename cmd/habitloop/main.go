package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rosevale/habitloop/internal/config"
	"github.com/rosevale/habitloop/internal/database"
	"github.com/rosevale/habitloop/internal/logging"
	"github.com/rosevale/habitloop/internal/notify"
	"github.com/rosevale/habitloop/internal/server"
	"github.com/rosevale/habitloop/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Ephemeral keys when none are configured. Browser subscriptions
	// will not survive a restart in that mode.
	pub, priv := cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey
	if pub == "" || priv == "" {
		pub, priv, err = notify.GenerateVAPIDKeys()
		if err != nil {
			logger.Error("generate vapid keys", "error", err)
			os.Exit(1)
		}
		logger.Warn("using ephemeral VAPID keys, set HABITLOOP_VAPID_PUBLIC_KEY and HABITLOOP_VAPID_PRIVATE_KEY")
	}
	sender := notify.NewWebPushSender(pub, priv, "mailto:"+cfg.EmailFrom)

	fallback, err := notify.OpenFileStore(filepath.Join(cfg.DataDir, "notify-fallback.json"))
	if err != nil {
		logger.Error("open fallback store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := notify.NewChannelBus(cfg.NotifyBusSize, logger)
	defer bus.Close()

	worker := notify.NewWorker(bus, sender, store.NewPushStore(db), logger)
	go worker.Run(ctx)

	srv := server.New(cfg, db, bus, sender, fallback, logger)

	if srv.BackupManager().Enabled() {
		srv.BackupManager().Start(ctx)
		defer srv.BackupManager().Stop()
	}

	go cleanupLoop(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("habitloop listening", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// cleanupLoop expires sessions, login codes, invites and rate limit
// windows hourly.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("cleanup sessions", "error", err)
			} else if n > 0 {
				logger.Info("cleaned up sessions", "count", n)
			}
			if _, err := srv.MagicLinkStore().DeleteExpired(); err != nil {
				logger.Error("cleanup login codes", "error", err)
			}
			if _, err := srv.InviteStore().DeleteExpired(); err != nil {
				logger.Error("cleanup invites", "error", err)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
