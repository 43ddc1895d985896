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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procuredocs/procuredocs/cmd/procuredocs/cli"
	"github.com/procuredocs/procuredocs/internal/app"
	"github.com/procuredocs/procuredocs/internal/auth"
	"github.com/procuredocs/procuredocs/internal/observability"
	"github.com/procuredocs/procuredocs/internal/platform/cache"
	"github.com/procuredocs/procuredocs/internal/platform/db"
	"github.com/procuredocs/procuredocs/internal/suppliers"
	"github.com/procuredocs/procuredocs/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.LoadDotEnv()
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	var args []string
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	code := 0
	switch command {
	case "serve":
		code = serve(ctx, cfg, logger)
	case "migrate":
		code = cli.MigrateCommand(ctx, poolMigrator(cfg), args, cli.Streams{})
	case "token":
		code = cli.TokenCommand(auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer), args, cli.Streams{})
	case "enqueue", "trigger", "queue":
		ops := cli.NewJobsCLI(cfg.RedisAddr)
		switch command {
		case "enqueue":
			code = cli.EnqueueCommand(ctx, ops, args, cli.Streams{})
		case "trigger":
			code = cli.TriggerCommand(ctx, ops, args, cli.Streams{})
		default:
			code = cli.QueueCommand(ctx, ops, cli.Streams{})
		}
		if err := ops.Close(); err != nil {
			logger.Warn("close jobs cli", slog.Any("error", err))
		}
	default:
		logger.Error("unknown command", slog.String("command", command))
		code = 2
	}
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

func poolMigrator(cfg *app.Config) cli.Migrator {
	return func(ctx context.Context, command string, args ...string) error {
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.Migrate(ctx, pool, command, args...)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ConnectTimeout: cfg.StoreTimeout})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, pool, "up"); err != nil {
			logger.Error("auto migrate", slog.Any("error", err))
			return 1
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	supplierService := suppliers.NewService(suppliers.NewRepository(pool), suppliers.ServiceConfig{
		StoreTimeout: cfg.StoreTimeout,
		Recorder:     metrics,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SupplierHandler: suppliers.NewHandler(logger, supplierService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
		Verifier:        auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer),
		Readiness: app.NewReadiness(logger, 2*time.Second,
			app.Check{Name: "postgres", Ping: pingPool(pool)},
			app.Check{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("http server", slog.Any("error", err))
		code = 1
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return code
}

func pingPool(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
