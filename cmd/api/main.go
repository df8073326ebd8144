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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"qrattendance/internal/apperr"
	"qrattendance/internal/attendance"
	"qrattendance/internal/auth"
	"qrattendance/internal/config"
	"qrattendance/internal/course"
	"qrattendance/internal/handler"
	"qrattendance/internal/httpmiddleware"
	"qrattendance/internal/logging"
	"qrattendance/internal/metrics"
	"qrattendance/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("rate_limiter", cfg.RateLimiter),
	)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		if apperr.Is(err, apperr.KindFatalConfig) {
			logger.Error("fatal configuration", zap.Error(err))
		} else {
			logger.Error("http server failed", zap.Error(err))
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}

// backends holds the storage implementations selected by STORE_BACKEND.
type backends struct {
	users    auth.Repository
	courses  course.Repository
	sessions func(course.Repository) attendance.Store
	db       *store.DB
}

func openBackends(ctx context.Context, cfg config.App, logger *zap.Logger) (backends, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		courses := course.NewMemoryRepository()
		return backends{
			users:   auth.NewMemoryRepository(),
			courses: courses,
			sessions: func(course.Repository) attendance.Store {
				sessions := attendance.NewMemoryStore(func(ctx context.Context, id string) (string, string) {
					c, err := courses.Get(ctx, id)
					if err != nil {
						return "", ""
					}
					return c.Code, c.Name
				})
				courses.SetUsageCheck(sessions.HasSessions)
				return sessions
			},
		}, nil
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return backends{}, apperr.FatalConfig("database not reachable", err)
	}
	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx, db); err != nil {
			db.Close()
			return backends{}, apperr.FatalConfig("apply migrations", err)
		}
		logger.Info("database migrations applied")
	}
	return backends{
		users:    auth.NewPostgresRepository(db),
		courses:  course.NewPostgresRepository(db),
		sessions: func(course.Repository) attendance.Store { return attendance.NewPostgresStore(db) },
		db:       db,
	}, nil
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		redisClient *store.Redis
		denylist    auth.Denylist = auth.NewMemoryDenylist()
		limiter     httpmiddleware.Limiter
	)
	if cfg.RedisAddr != "" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		if !redisClient.Healthy(ctx) {
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
		denylist = auth.NewRedisDenylist(redisClient.Client)
	}
	if cfg.RateLimitPerMin > 0 {
		if cfg.RateLimiter == "redis" && redisClient != nil {
			limiter = httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin)
		} else {
			limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		}
	}

	authSvc := auth.NewService(b.users, denylist, logger, auth.Options{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
	})
	if cfg.AdminMatricule != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminMatricule, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}
	courses := course.NewService(b.courses, logger)
	att := attendance.NewService(b.sessions(b.courses), courses, logger, attendance.Options{
		Policy:   cfg.LatenessPolicy(),
		TokenTTL: cfg.QRTokenTTL,
		Location: cfg.Location(),
		Metrics:  m,
	})

	var checks []handler.HealthCheck
	if b.db != nil {
		checks = append(checks, handler.HealthCheck{Name: "db", Check: b.db.Healthy})
	}
	if redisClient != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: redisClient.Healthy})
	}

	r := handler.NewRouter(handler.New(authSvc, courses, att, checks...), handler.RouterOptions{
		Logger:         logger,
		Metrics:        m,
		Gatherer:       reg,
		Limiter:        limiter,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
