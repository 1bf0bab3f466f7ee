package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/weiawesome/sync-party/internal/auth"
	"github.com/weiawesome/sync-party/internal/chat"
	"github.com/weiawesome/sync-party/internal/config"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/handler"
	"github.com/weiawesome/sync-party/internal/hub"
	"github.com/weiawesome/sync-party/internal/jobs"
	"github.com/weiawesome/sync-party/internal/media"
	"github.com/weiawesome/sync-party/internal/party"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/pkg/database"
	pkglog "github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/middleware"
	"github.com/weiawesome/sync-party/pkg/pubsub"
	"github.com/weiawesome/sync-party/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	logger = logger.With().Str("instance", instanceID).Logger()

	// Only the log level is applied live; other changes need a restart.
	if cfg.Watch(func(next *config.Config) {
		lvl := pkglog.SetLevel(next.Log.Level)
		logger.Info().Str("level", lvl.String()).Msg("config reloaded")
	}) {
		logger.Info().Msg("watching config file")
	}

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("blob storage ready")

	// Initialize session store based on config
	var (
		sessionStore auth.SessionStore
		memSessions  *auth.MemorySessionStore
	)
	switch cfg.Session.Store {
	case "redis":
		store, err := auth.NewRedisSessionStore(cfg.Session.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create redis session store")
		}
		defer store.Close()
		sessionStore = store
		logger.Info().Str("address", cfg.Session.Redis.Address).Msg("using redis session store")
	default:
		memSessions = auth.NewMemorySessionStore()
		sessionStore = memSessions
		logger.Info().Msg("using in-memory session store")
	}

	users := repository.NewGormUserRepository(db)
	parties := party.NewService(repository.NewGormPartyRepository(db), users)
	mediaRepo := repository.NewGormMediaItemRepository(db)
	registry := media.NewRegistry(mediaRepo, parties, blobs, media.Config{MaxUploadBytes: cfg.Media.MaxUploadBytes})

	signer, err := auth.NewTokenSigner(cfg.Session.Secret, cfg.Session.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token signer")
	}
	if cfg.Session.Secret == "" {
		logger.Warn().Msg("session.secret not set, using a random key; sessions end on restart")
	}
	authority, err := auth.NewAuthority(users, auth.NewBcryptHasher(cfg.Session.BcryptCost), signer, sessionStore, cfg.Session.TTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session authority")
	}
	sessions := auth.NewMiddleware(authority, cfg.Server.SecureCookie)

	channel := chat.NewChannel(parties, cfg.Chat)

	// Cross-instance relay
	if cfg.PubSub.Enabled() {
		busCfg := cfg.PubSub
		busCfg.Kafka.GroupID = busCfg.Kafka.GroupID + "-" + instanceID
		bus, err := pubsub.NewPubSub(busCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize pubsub")
		}
		defer bus.Close()

		if err := chat.NewRelay(bus, instanceID).Attach(ctx, channel); err != nil {
			logger.Fatal().Err(err).Msg("failed to attach chat relay")
		}
		logger.Info().Str("driver", cfg.PubSub.Driver).Msg("chat relay attached")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	// Background jobs
	scheduler := jobs.NewScheduler()
	reconciler := media.NewReconciler(mediaRepo, blobs, cfg.Media.OrphanGrace)
	mustAdd(scheduler, jobs.Job{
		Name:     "media-reconcile",
		Schedule: cfg.Media.ReconcileSchedule,
		Timeout:  10 * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := reconciler.Run(ctx)
			return err
		},
	})
	mustAdd(scheduler, jobs.Job{
		Name:     "ratelimit-sweep",
		Schedule: "@every 1m",
		Run: func(context.Context) error {
			limiter.Sweep()
			return nil
		},
	})
	if memSessions != nil {
		mustAdd(scheduler, jobs.Job{
			Name:     "session-cleanup",
			Schedule: cfg.Session.CleanupSchedule,
			Run: func(ctx context.Context) error {
				if n := memSessions.CleanupExpired(); n > 0 {
					l := pkglog.Ctx(ctx)
					l.Debug().Int("removed", n).Msg("expired sessions removed")
				}
				return nil
			},
		})
	}
	scheduler.Start()
	defer scheduler.Stop()

	wsHub := hub.NewHub()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(sessions.Resolve())

	handler.NewHandler(authority, sessions, registry, parties, limiter).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, channel, sessions, cfg.WebSocket, cfg.Server.AllowedOrigins).RegisterRoutes(r)

	if local, ok := blobs.(*storage.LocalStorage); ok && cfg.Storage.Local.URLPrefix != "" {
		files := r.Group(cfg.Storage.Local.URLPrefix, sessions.RequireAuth())
		files.Static("/", local.BasePath())
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("party-server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down party-server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	wsHub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	channel.Close()
	cancel()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info().Msg("party-server stopped")
}

func mustAdd(s *jobs.Scheduler, job jobs.Job) {
	if err := s.Add(job); err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Str("job", job.Name).Msg("failed to schedule job")
	}
}
