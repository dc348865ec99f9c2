package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskstream/backend/api/handler"
	"github.com/taskstream/backend/internal/config"
	"github.com/taskstream/backend/internal/infrastructure/monitor"
	pgInfra "github.com/taskstream/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskstream/backend/internal/infrastructure/redis"
	"github.com/taskstream/backend/internal/middleware"
	"github.com/taskstream/backend/internal/router"
	"github.com/taskstream/backend/internal/services"
	"github.com/taskstream/backend/internal/services/lifecycle"
	"github.com/taskstream/backend/internal/ws"
	"github.com/taskstream/backend/pkg/httpcontext"
	"github.com/taskstream/backend/pkg/logger"
	"github.com/taskstream/backend/repository/postgres"
	redisRepo "github.com/taskstream/backend/repository/redis"
	authUC "github.com/taskstream/backend/usecase/auth"
	tagUC "github.com/taskstream/backend/usecase/tag"
	taskUC "github.com/taskstream/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	registry := ws.NewRegistry(cfg.WebSocket.HeartbeatTimeout, zapLogger)
	manager.Register("ws_registry", func(ctx context.Context) error {
		registry.CloseAll()
		return nil
	})

	mon := monitor.New(pool, redisClient, registry, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	tagRepo := postgres.NewTagRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.JWT.TTL)

	dispatcher := services.NewDispatcher(registry, zapLogger)

	authUseCase := authUC.New(userRepo, sessionRepo, authUC.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
	}, zapLogger)
	taskUseCase := taskUC.New(taskRepo, eventRepo, dispatcher, zapLogger)
	tagUseCase := tagUC.New(tagRepo, zapLogger)

	sweeper := services.NewReminderSweeper(taskRepo, dispatcher, zapLogger, services.SweeperConfig{
		Interval:  cfg.Scheduler.ReminderInterval,
		BatchSize: cfg.Scheduler.ReminderBatchSize,
	})

	scheduler := services.NewScheduler(zapLogger)
	if _, err := scheduler.ScheduleInterval(sweeper.Interval(), sweeper.Run); err != nil {
		zapLogger.Fatal("failed to schedule reminder sweep", zap.Error(err))
	}
	if _, err := scheduler.ScheduleInterval(cfg.WebSocket.SweepInterval, func() {
		if removed := registry.Sweep(); removed > 0 {
			zapLogger.Info("stale websocket connections removed", zap.Int("count", removed))
		}
	}); err != nil {
		zapLogger.Fatal("failed to schedule heartbeat sweep", zap.Error(err))
	}
	scheduler.Start()
	manager.Register("scheduler", func(ctx context.Context) error {
		scheduler.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth: apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Task: apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Tag:  apiHandler.NewTagHandler(tagUseCase, ctxAdapter, zapLogger),
		WS: apiHandler.NewWSHandler(registry, authUseCase, apiHandler.WSConfig{
			SendBuffer:   cfg.WebSocket.SendBuffer,
			WriteTimeout: cfg.WebSocket.WriteTimeout,
		}, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
