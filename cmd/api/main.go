package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cruzeta-api/internal/cache"
	"cruzeta-api/internal/config"
	"cruzeta-api/internal/handler"
	"cruzeta-api/internal/middleware"
	"cruzeta-api/internal/repository"
	"cruzeta-api/internal/router"
	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Environment, cfg.App.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Type {
	case "postgres":
		return repository.NewPostgresStore(ctx, cfg.Store.PostgresDSN(), log)
	case "mysql":
		dsn := repository.MySQLDSN(cfg.Store.MySQLUser, cfg.Store.MySQLPassword, cfg.Store.MySQLHost, cfg.Store.MySQLPort, cfg.Store.MySQLName)
		return repository.NewMySQLStore(ctx, dsn, log)
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		return repository.NewSQLiteStore(ctx, cfg.Store.SQLitePath, log)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	log.Info("starting", zap.String("app", cfg.App.Name), zap.String("version", cfg.App.Version), zap.String("env", cfg.App.Environment))

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Type, err)
	}
	defer store.Close()

	checks := map[string]service.Pinger{"store": store}

	var auditRepo repository.AuditRepository = store
	if cfg.Store.AuditStore == "mongodb" {
		mongoAudit, err := repository.NewMongoDBAuditRepository(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.Store.MongoCollection)
		if err != nil {
			return fmt.Errorf("failed to open MongoDB audit store: %w", err)
		}
		defer mongoAudit.Close()
		auditRepo = mongoAudit
		checks["audit"] = mongoAudit
		log.Info("audit log stored in MongoDB", zap.String("database", cfg.Store.MongoDatabase))
	}

	var c cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		rc := cache.NewRedisCache(client, cfg.Cache.RedisPrefix)
		checks["cache"] = rc
		c = rc
		log.Info("sessions stored in Redis", zap.String("addr", cfg.Cache.RedisAddress()))
	default:
		c = cache.NewMemoryCache()
	}
	defer c.Close()

	audit := service.NewAuditService(auditRepo, log)
	inventory := service.NewInventoryService(store, audit, log)
	workflow := service.NewRequestWorkflow(store, store, audit, service.WorkflowConfig{
		HighVolumeMultiplier: cfg.Workflow.HighVolumeMultiplier,
	}, log)
	reports := service.NewReportService(store, store, audit)
	users := service.NewUserService(store, c, cfg.Cache.TTL, audit, log)
	tokens := service.NewTokenService(c, cfg.Cache.SessionTTL)
	auth := service.NewAuthService(store, users, tokens, audit, log)

	if cfg.Bootstrap.AdminEmail != "" {
		if _, err := users.Bootstrap(ctx, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			return err
		}
	}

	healthServer := health.NewServer()
	monitor := service.NewReadinessMonitor(checks, cfg.Store.ReadinessInterval, log)
	monitor.OnChange(func(ready bool) {
		status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
		if ready {
			status = grpc_health_v1.HealthCheckResponse_SERVING
		}
		healthServer.SetServingStatus("", status)
		healthServer.SetServingStatus(cfg.App.Name, status)
	})
	monitor.Start()
	defer monitor.Stop()

	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddress(), err)
	}

	r := router.New(router.Config{
		Handler:          handler.New(monitor, cfg.App.Name, cfg.App.Version),
		InventoryHandler: handler.NewInventoryHandler(inventory),
		RequestHandler:   handler.NewRequestHandler(workflow),
		AuditHandler:     handler.NewAuditHandler(audit),
		ReportHandler:    handler.NewReportHandler(reports),
		AdminHandler:     handler.NewAdminHandler(users, store, c, cfg.Store.Type),
		AuthHandler:      handler.NewAuthHandler(auth, tokens),
		AuthMiddleware:   middleware.NewAuthMiddleware(middleware.AuthConfig{Authenticator: auth, Logger: log}),
		Logger:           log,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("grpc health server listening", zap.String("addr", cfg.Server.GRPCAddress()))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		log.Error("server stopped unexpectedly", zap.Error(serveErr))
	}

	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("server stopped")
	return serveErr
}
