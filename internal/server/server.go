package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rosevale/habitloop/internal/backup"
	"github.com/rosevale/habitloop/internal/billing"
	"github.com/rosevale/habitloop/internal/config"
	"github.com/rosevale/habitloop/internal/email"
	"github.com/rosevale/habitloop/internal/handler"
	"github.com/rosevale/habitloop/internal/middleware"
	"github.com/rosevale/habitloop/internal/notify"
	"github.com/rosevale/habitloop/internal/store"
	ws "github.com/rosevale/habitloop/internal/websocket"
)

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	authH    *handler.AuthHandler
	habitH   *handler.HabitHandler
	groupH   *handler.GroupHandler
	notifyH  *handler.NotificationHandler
	billingH *handler.BillingHandler
	backupH  *handler.BackupHandler

	sessionStore   *store.SessionStore
	groupStore     *store.GroupStore
	magicLinkStore *store.MagicLinkStore
	inviteStore    *store.InviteStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	logger         *slog.Logger
}

// New wires stores, services and handlers. The caller owns the bus and
// worker lifecycle; the server only publishes to the bus.
func New(
	cfg *config.Config,
	db *sql.DB,
	bus *notify.ChannelBus,
	sender *notify.WebPushSender,
	fallback *notify.FileStore,
	logger *slog.Logger,
) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	groupStore := store.NewGroupStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)
	inviteStore := store.NewInviteStore(db)
	habitStore := store.NewHabitStore(db)
	pushStore := store.NewPushStore(db)
	notifySettingsStore := store.NewNotifySettingsStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	backupStore := store.NewBackupStore(db)

	mailer := email.NewClient(cfg.EmailServerToken, cfg.EmailFrom, cfg.BaseURL)

	cache := notify.NewCache(notifySettingsStore, fallback, logger.With("component", "notify_cache"))
	perms := notify.NewStorePermissions(userStore, pushStore)
	notifier := notify.NewService(cache, bus, perms, logger.With("component", "notify"))

	billingClient := billing.NewClient(billing.Config{
		SecretKey:            cfg.StripeSecretKey,
		WebhookSecret:        cfg.StripeWebhookSecret,
		PremiumPriceID:       cfg.StripePremiumPriceID,
		PremiumAnnualPriceID: cfg.StripePremiumAnnualPrice,
		SuccessURL:           cfg.BaseURL + "/billing/success",
		CancelURL:            cfg.BaseURL + "/billing/cancel",
	})

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
		DBPath:       cfg.DBPath,
		Passphrase:   cfg.BackupPassphrase,
		ScheduleHour: cfg.BackupScheduleHour,
		Keep:         cfg.BackupKeep,
	}, db, backupStore, logger)

	return &Server{
		db:  db,
		hub: hub,
		authH: handler.NewAuthHandler(userStore, groupStore, sessionStore, magicLinkStore,
			mailer, cfg.SecureCookies, logger.With("component", "auth")),
		habitH: handler.NewHabitHandler(habitStore, subscriptionStore, notifier, hub,
			logger.With("component", "habit")),
		groupH: handler.NewGroupHandler(groupStore, userStore, inviteStore, sessionStore,
			subscriptionStore, mailer, hub, logger.With("component", "group")),
		notifyH: handler.NewNotificationHandler(pushStore, userStore, notifier, sender,
			logger.With("component", "notification")),
		billingH: handler.NewBillingHandler(billingClient, subscriptionStore, userStore,
			logger.With("component", "billing")),
		backupH: handler.NewBackupHandler(backupMgr, backupStore,
			logger.With("component", "backup_handler")),
		sessionStore:   sessionStore,
		groupStore:     groupStore,
		magicLinkStore: magicLinkStore,
		inviteStore:    inviteStore,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinkStore
}

// InviteStore returns the invite store for cleanup tasks.
func (s *Server) InviteStore() *store.InviteStore {
	return s.inviteStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("POST /webhooks/stripe", s.billingH.Webhook)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.groupStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Habit routes
	mux.HandleFunc("GET /api/habits", s.habitH.List)
	mux.HandleFunc("POST /api/habits", s.habitH.Create)
	mux.HandleFunc("GET /api/habits/{id}", s.habitH.Get)
	mux.HandleFunc("PUT /api/habits/{id}", s.habitH.Update)
	mux.HandleFunc("DELETE /api/habits/{id}", s.habitH.Delete)
	mux.HandleFunc("POST /api/habits/{id}/logs", s.habitH.UpsertLog)
	mux.HandleFunc("DELETE /api/habits/{id}/logs/{date}", s.habitH.DeleteLog)
	mux.HandleFunc("GET /api/habits/{id}/stats", s.habitH.Stats)
	mux.HandleFunc("GET /api/habits/{id}/heatmap", s.habitH.Heatmap)

	// Group routes
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("PUT /api/groups/current", s.groupH.Update)
	mux.HandleFunc("POST /api/groups/{id}/switch", s.groupH.Switch)
	mux.HandleFunc("GET /api/groups/current/members", s.groupH.ListMembers)
	mux.HandleFunc("DELETE /api/groups/current/members/{userID}", s.groupH.RemoveMember)
	mux.Handle("POST /api/invites", middleware.RequireAdmin(http.HandlerFunc(s.groupH.Invite)))
	mux.HandleFunc("POST /api/invites/accept", s.groupH.AcceptInvite)

	// Push + notification routes
	mux.HandleFunc("GET /api/push/vapid-key", s.notifyH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.notifyH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.notifyH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.notifyH.Unsubscribe)
	mux.HandleFunc("GET /api/notifications/settings", s.notifyH.GetSettings)
	mux.HandleFunc("PUT /api/notifications/settings", s.notifyH.UpdateSettings)
	mux.HandleFunc("PUT /api/notifications/toggles", s.notifyH.Toggle)
	mux.HandleFunc("POST /api/notifications/permission", s.notifyH.Permission)

	// Billing routes
	mux.HandleFunc("GET /api/billing", s.billingH.Status)
	mux.HandleFunc("POST /api/billing/checkout", s.billingH.Checkout)
	mux.HandleFunc("POST /api/billing/portal", s.billingH.Portal)

	// Backup routes (admin only)
	mux.Handle("GET /api/backup", middleware.RequireAdmin(http.HandlerFunc(s.backupH.List)))
	mux.Handle("POST /api/backup/run", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Run)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "ws_handler")))
}
