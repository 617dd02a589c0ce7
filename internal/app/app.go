package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/linkora/core/internal/config"
	"github.com/linkora/core/internal/database"
	"github.com/linkora/core/internal/middleware"
	"github.com/linkora/core/internal/modules/auth"
	"github.com/linkora/core/internal/modules/gateway/gateway"
	"github.com/linkora/core/internal/modules/gateway/notify"
	"github.com/linkora/core/internal/modules/notifications"
	"github.com/linkora/core/internal/modules/session"
	"github.com/linkora/core/internal/pkg/jwt"
	pkgredis "github.com/linkora/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies. Everything is explicitly
// constructed here and passed by reference; there is no ambient global
// service state.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client
	sessions *session.Service
	hub      *gateway.Hub
	notify   *notify.Service
	records  *notifications.Service
	authSvc  *auth.Service
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// New wires the application together: database, redis, session service,
// gateway hub, notification dispatcher and routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var store session.Store
	rc, err := pkgredis.Connect(cfg.ResolveRedisURL())
	switch {
	case err == nil:
		store = session.NewRedisStore(rc)
	case cfg.IsDev():
		// Single-instance dev fallback: sessions live in process memory
		// and do not survive restarts.
		logger.Warn("redis unavailable, using in-memory session store", zap.Error(err))
		store = session.NewMemoryStore()
	default:
		return nil, fmt.Errorf("redis: %w", err)
	}

	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		secret = "linkora-secret-change-me"
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
	signer := jwt.NewSigner(secret, cfg.SessionTTL())

	sessions := session.NewService(store, signer, logger, session.Options{
		TTL:        cfg.SessionTTL(),
		MaxPerUser: cfg.MaxSessionsPerUser(),
	})

	authSvc := auth.NewService(db, sessions)

	hub := gateway.NewHub(sessions, authSvc.RoleResolver(), rc, logger, gateway.HubOptions{
		HandshakeTimeout: cfg.HandshakeTimeout(),
	})
	// A destroyed session (logout, eviction, expiry) must immediately pull
	// down any connection it was backing.
	sessions.OnDestroy(hub.CloseSessionConnections)

	notifySvc := notify.New(hub, logger)
	records := notifications.NewService(db)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		rc:       rc,
		sessions: sessions,
		hub:      hub,
		notify:   notifySvc,
		records:  records,
		authSvc:  authSvc,
		logger:   logger,
		cancel:   cancel,
	}
	app.registerRoutes()
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Notify exposes the dispatcher for the domain layer.
func (a *App) Notify() *notify.Service { return a.notify }

// Notifications exposes the durable notification recorder. The domain layer
// records through it before dispatching.
func (a *App) Notifications() *notifications.Service { return a.records }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }

func buildCORSConfig(cfg *config.AppConfig) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsConfig
}

// extractOriginHost returns the "host[:port]" portion of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// matchOriginPattern reports whether host matches the given wildcard pattern.
func matchOriginPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(host, suffix)
	}
	if strings.HasSuffix(pattern, ":*") {
		prefix := pattern[:len(pattern)-1]
		return strings.HasPrefix(host, prefix)
	}
	return false
}
