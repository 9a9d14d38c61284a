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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ajay73588/autopod/internal/app/migrate"
	httpx "github.com/Ajay73588/autopod/internal/http"
	"github.com/Ajay73588/autopod/internal/ports"
	"github.com/Ajay73588/autopod/internal/repository/postgres"
	"github.com/Ajay73588/autopod/internal/runtime"
	"github.com/Ajay73588/autopod/internal/service/deploy"
	"github.com/Ajay73588/autopod/internal/service/reconcile"
	"github.com/Ajay73588/autopod/internal/service/source"
	"github.com/Ajay73588/autopod/internal/workspace"
	"github.com/Ajay73588/autopod/internal/ws"
	"github.com/Ajay73588/autopod/pkg/config"
	"github.com/Ajay73588/autopod/pkg/logger"
)

func main() {
	cfg := config.LoadAutopodConfig()
	log := logger.New("autopod", slog.LevelInfo)

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
	gateway := newGateway(ctx, cfg.DockerHost, log)

	workdir, err := workspace.New(cfg.Workdir)
	if err != nil {
		log.Error("failed to prepare workspace root", "dir", cfg.Workdir, "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub()
	materializer := source.NewMaterializer(cfg.GitTimeout, log)
	reconciler := reconcile.New(gateway, repo, hub, log, cfg.LogTailLines)
	if cfg.SyncInterval > 0 {
		go reconciler.Run(ctx, cfg.SyncInterval)
	}
	deploySvc := deploy.New(gateway, materializer, workdir, reconciler, hub, ports.Allocate, log, cfg)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, deploySvc, reconciler, gateway, repo, hub, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("autopod server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("autopod server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// newGateway connects to the container daemon, falling back to the stub so
// the API and mirror endpoints stay up when the daemon is unreachable.
func newGateway(ctx context.Context, host string, log *slog.Logger) runtime.Gateway {
	docker, err := runtime.NewDocker(host)
	if err != nil {
		log.Warn("container runtime unavailable, using stub gateway", "host", host, "error", err)
		return runtime.Stub{}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := docker.Ping(pingCtx); err != nil {
		log.Warn("container runtime ping failed, using stub gateway", "host", host, "error", err)
		return runtime.Stub{}
	}
	return docker
}
