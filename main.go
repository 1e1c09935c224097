package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/devcamper/cache"
	"github.com/kevinaaaquil/devcamper/config"
	"github.com/kevinaaaquil/devcamper/handlers"
	"github.com/kevinaaaquil/devcamper/middleware"
	"github.com/kevinaaaquil/devcamper/service"
	"github.com/kevinaaaquil/devcamper/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	cfg.LogSummary(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Error("mongodb", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			logger.Warn("mongodb disconnect", "err", err)
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Error("mongodb indexes", "err", err)
		os.Exit(1)
	}

	var photos handlers.PhotoStore
	if cfg.S3Bucket != "" {
		s3Service, err := service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			logger.Error("s3", "err", err)
			os.Exit(1)
		}
		photos = s3Service
	} else {
		logger.Warn("AWS_S3_BUCKET not set; photo uploads are disabled")
	}

	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set; password reset emails will fail")
	}
	mailer := service.NewMailer(service.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.FromName,
		From:     cfg.FromEmail,
	})

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	auth := service.NewAuthService(db, mailer, service.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Expire: cfg.JWTExpire,
	}, cfg.BcryptCost, logger)

	router := handlers.NewRouter(handlers.Deps{
		Auth:         auth,
		DB:           db,
		Photos:       photos,
		MaxUpload:    cfg.MaxUploadSize,
		CookieExpire: cfg.CookieExpire(),
		SecureCookie: cfg.Production(),
		AuthLimiter:  limiter,
		CORSOrigins:  cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newLimiter prefers a shared Redis window so limits hold across replicas.
// Without Redis, or when it is unreachable at startup, each process keeps its own buckets.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (middleware.Limiter, func()) {
	if cfg.RateLimitPerMinute <= 0 {
		return nil, func() {}
	}
	if cfg.RedisAddr != "" {
		client := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx)
		cancel()
		if err == nil {
			logger.Info("rate limiting via redis", "addr", cfg.RedisAddr)
			return cache.NewWindowLimiter(client, "ratelimit:auth", cfg.RateLimitPerMinute, time.Minute, logger), func() {
				_ = client.Close()
			}
		}
		logger.Warn("redis unreachable; using in-process rate limiting", "err", err)
		_ = client.Close()
	}
	tb := service.PerMinute(cfg.RateLimitPerMinute)
	go tb.Run(ctx)
	return tb, func() {}
}
