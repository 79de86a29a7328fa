package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/boardsync/server/internal/accounts"
	"github.com/boardsync/server/internal/auth"
	"github.com/boardsync/server/internal/bus"
	"github.com/boardsync/server/internal/config"
	"github.com/boardsync/server/internal/dbqueue"
	"github.com/boardsync/server/internal/health"
	"github.com/boardsync/server/internal/httpapi"
	"github.com/boardsync/server/internal/lifecycle"
	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/ratelimit"
	"github.com/boardsync/server/internal/registry"
	"github.com/boardsync/server/internal/storage"
	"github.com/boardsync/server/internal/tracing"
	"github.com/boardsync/server/internal/transport"
)

// allowedOriginsFromEnv splits a comma-separated ALLOWED_ORIGINS value,
// falling back to local-development defaults when unset.
func allowedOriginsFromEnv(raw string) []string {
	if raw == "" {
		slog.Warn("ALLOWED_ORIGINS not set, using default development origins")
		return []string{"http://localhost:3000"}
	}
	return strings.Split(raw, ",")
}

func main() {
	envPaths := []string{".env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment file", "path", path)
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if collectorAddr := os.Getenv("OTEL_COLLECTOR_ADDR"); collectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "boardsync-server", collectorAddr)
		if err != nil {
			logging.Error(ctx, "failed to initialize tracer", zap.Error(err))
		} else if tp != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	store, err := storage.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logging.Fatal(ctx, "failed to open storage", zap.Error(err))
	}
	defer store.Close()

	queue := dbqueue.New(store, cfg.DBQueueBatchSize, cfg.DBQueueIterPeriod)
	queue.Start(ctx)

	reg := registry.New(store, queue)

	var busService *bus.Service
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis bus", zap.Error(err))
		}
		defer busService.Close()
		redisClient = busService.Client()
	}

	httpLimiter, err := ratelimit.NewHTTPLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to build http rate limiter", zap.Error(err))
	}

	floodGuard := ratelimit.NewFloodGuard()
	if busService != nil {
		floodGuard.SetPublisher(busService)
		busService.Subscribe(ctx, func(evt bus.Event) {
			switch evt.Kind {
			case "ip_banned":
				floodGuard.ApplyRemoteBan(evt.IP, evt.Strict)
			case "ip_unbanned":
				floodGuard.ApplyRemoteUnban(evt.IP)
			}
		})
	}
	go floodGuard.Run(ctx)

	issuer := auth.NewIssuer(cfg.JWTSecret, store)
	accountsSvc := accounts.NewService(store)
	healthHandler := health.NewHandler(store, busService)

	allowedOrigins := allowedOriginsFromEnv(cfg.AllowedOrigins)
	transportHandler := transport.NewHandler(reg, allowedOrigins).WithFloodGuard(floodGuard)

	reaper := lifecycle.NewReaper(reg, cfg.ReaperInterval, cfg.RoomIdleGrace)
	go reaper.Run(ctx)

	monitor := lifecycle.NewMonitor(reg, cfg.ReaperInterval)
	go monitor.Run(ctx)

	go sweepExpiredJWTsPeriodically(ctx, store)

	router := httpapi.NewRouter(httpapi.Deps{
		Registry:       reg,
		Store:          store,
		Accounts:       accountsSvc,
		Issuer:         issuer,
		Limiter:        httpLimiter,
		FloodGuard:     floodGuard,
		Health:         healthHandler,
		Transport:      transportHandler,
		Bus:            busService,
		AllowedOrigins: allowedOrigins,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "boardsync server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(context.Background(), "http server forced to shutdown", zap.Error(err))
	}

	lifecycle.Shutdown(shutdownCtx, reg)
	logging.Info(context.Background(), "boardsync server exiting")
}

// sweepExpiredJWTsPeriodically reclaims the revocation table so it doesn't
// grow unbounded with every rotated/logged-out refresh token.
func sweepExpiredJWTsPeriodically(ctx context.Context, store storage.Store) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.SweepExpiredJWTs(ctx, store)
			if err != nil {
				logging.Error(ctx, "failed to sweep expired jwts", zap.Error(err))
				continue
			}
			if n > 0 {
				logging.Info(ctx, "swept expired jwts", zap.Int64("count", n))
			}
		}
	}
}
