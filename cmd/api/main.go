package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/Mayuresh-22/NimbusWave/internal/app/migrate"
	httpx "github.com/Mayuresh-22/NimbusWave/internal/http"
	"github.com/Mayuresh-22/NimbusWave/internal/repository/postgres"
	"github.com/Mayuresh-22/NimbusWave/internal/service/assets"
	"github.com/Mayuresh-22/NimbusWave/internal/service/assistant"
	"github.com/Mayuresh-22/NimbusWave/internal/service/deployment"
	"github.com/Mayuresh-22/NimbusWave/internal/service/identity"
	"github.com/Mayuresh-22/NimbusWave/internal/service/logs"
	"github.com/Mayuresh-22/NimbusWave/internal/service/project"
	"github.com/Mayuresh-22/NimbusWave/internal/service/rewrite"
	"github.com/Mayuresh-22/NimbusWave/internal/service/user"
	"github.com/Mayuresh-22/NimbusWave/internal/ws"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
	"github.com/Mayuresh-22/NimbusWave/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	logHub := ws.NewHub()

	var limiter httpx.RateLimiter = httpx.NewMemoryRateLimiter()
	var locker *redislock.Client
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-process rate limiting and deploy locks", "error", err)
			_ = redisClient.Close()
		} else {
			limiter = httpx.NewRedisRateLimiter(redisClient, log)
			locker = redislock.New(redisClient)
			defer redisClient.Close()
		}
	}

	verifier := identity.New(cfg, log)
	uploader := assets.New(cfg, log)
	logSvc := logs.New(logHub, log)
	userSvc := user.New(repo, log)
	projectSvc := project.New(repo, repo, log, cfg)
	deploySvc := deployment.New(repo, repo, repo, uploader, rewrite.DefaultRegistry(), locker, logSvc, log, cfg)
	assistantSvc := assistant.New(repo, assistant.NewGroqClient(cfg, log), log)

	router := httpx.NewRouter(log, verifier, userSvc, projectSvc, deploySvc, assistantSvc, logSvc, limiter, pool.Ping, cfg)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
