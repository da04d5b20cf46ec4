package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/orgtask/orgtask/internal/app"
	"github.com/orgtask/orgtask/internal/observability"
	"github.com/orgtask/orgtask/internal/platform/cache"
	"github.com/orgtask/orgtask/internal/platform/db"
	"github.com/orgtask/orgtask/internal/roles"
	"github.com/orgtask/orgtask/internal/shared"
	"github.com/orgtask/orgtask/internal/tasks"
	"github.com/orgtask/orgtask/internal/users"
	"github.com/orgtask/orgtask/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)

	rolesRepo := roles.NewRepository(dbpool)
	rolesRegistry := roles.NewRegistry(redisClient, rolesRepo, logger)
	rolesService := roles.NewService(rolesRepo, rolesRegistry, logger)
	rolesHandler := roles.NewHandler(logger, rolesService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewAssignmentNotifier(jobsClient, logger)

	tasksRepo := tasks.NewRepository(dbpool)
	resolver := tasks.NewResolver(usersService, rolesRegistry)
	committer := tasks.NewCommitter(tasksRepo, notifier, logger)
	engine := tasks.NewEngine(resolver, committer, approvalRecorder, metrics, logger)
	tasksHandler := tasks.NewHandler(logger, engine, tasksRepo, approvalRecorder)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		RolesHandler: rolesHandler,
		UsersHandler: usersHandler,
		TasksHandler: tasksHandler,
		JobsHandler:  jobsHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
