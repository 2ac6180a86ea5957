package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"classifieds-template-service/internal/api"
	"classifieds-template-service/internal/catalog"
	"classifieds-template-service/internal/config"
	"classifieds-template-service/internal/logger"
	"classifieds-template-service/internal/render"
	"classifieds-template-service/internal/store"
	"classifieds-template-service/internal/template"
	"classifieds-template-service/internal/wizard"
)

const defaultAppName = "ClassifiedsTemplateService"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	zlog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Error building logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zlog = zlog.Named(defaultAppName)
	zap.ReplaceGlobals(zlog)
	zlog.Info("configuration loaded", zap.String("app_env", cfg.AppEnv), zap.String("log_level", cfg.LogLevel))

	// --- Database Connection ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		zlog.Fatal("failed to initialize database connection", zap.Error(err))
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		zlog.Fatal("failed to ping database", zap.Error(err))
	}
	cancelPing()
	zlog.Info("database connection established")
	dbStore := store.NewPostgresStore(db, zlog.Named("store"))

	// --- Template cache ---
	var templates store.TemplateStorer = dbStore
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			zlog.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		templates = store.NewCachedTemplateStore(dbStore, redisClient, cfg.Redis.TemplateCacheTTL, zlog.Named("template_cache"))
		zlog.Info("template cache enabled", zap.String("addr", opts.Addr), zap.Duration("ttl", cfg.Redis.TemplateCacheTTL))
	} else {
		zlog.Info("REDIS_URL not set, template cache disabled")
	}

	// --- Domain services ---
	categories := catalog.NewService(dbStore, zlog.Named("catalog"))
	resolver := template.NewResolver(templates, categories, zlog.Named("template"))

	formatter, err := render.NewFormatter(render.FormatConfig{
		Language:       cfg.Render.Language,
		Currency:       cfg.Render.Currency,
		DateLayout:     cfg.Render.DateLayout,
		DateTimeLayout: cfg.Render.DateTimeLayout,
		Location:       cfg.Render.Location(),
	})
	if err != nil {
		zlog.Fatal("invalid render configuration", zap.Error(err))
	}
	renderer := render.NewService(render.NewRegistry(formatter), cfg.Render.PlaceholderImage, zlog.Named("render"))

	sessions := wizard.NewSessions(cfg.Wizard.SessionTTL, zlog.Named("sessions"))
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.Wizard.SweepInterval)

	backend := api.Backend{
		Catalog:   categories,
		Templates: resolver,
		Listings:  dbStore,
		Renderer:  renderer,
		Sessions:  sessions,
		Wizard: wizard.Deps{
			Categories: categories,
			Templates:  resolver,
			Listings:   dbStore,
			Quota:      dbStore,
			ExpiryDays: cfg.Listings.ExpiryDays,
			Logger:     zlog.Named("wizard"),
		},
		Logger: zlog.Named("api"),
	}

	// --- Initialize API Handlers ---
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, zlog.Named("auth"))
	httpAPIHandler := api.NewHTTPHandler(backend, auth)
	grpcAPIHandler := api.NewGRPCHandler(backend)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, zlog)
	registerHealthCheck(httpRouter, zlog, dbStore, redisClient)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		zlog.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(zlog, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		zlog.Fatal("failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		zlog.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			zlog.Fatal("gRPC server Serve error", zap.Error(err))
		}
		zlog.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(zlog, httpServer, grpcServer, dbStore, redisClient, stopSweep, shutdownComplete)

	<-shutdownComplete
	zlog.Info("service shutdown sequence finished")
}

func setupBaseMiddleware(router *chi.Mux, zlog *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.RequestLogger(zlog.Named("http")))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
}

func registerHealthCheck(router *chi.Mux, zlog *zap.Logger, db interface{ Ping(context.Context) error }, rdb *redis.Client) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			zlog.Warn("health check DB ping failed", zap.Error(err))
		}
		cacheStatus := "disabled"
		if rdb != nil {
			cacheStatus = "healthy"
			if err := rdb.Ping(ctx).Err(); err != nil {
				cacheStatus = "unhealthy"
				zlog.Warn("health check Redis ping failed", zap.Error(err))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
			"cache":       cacheStatus,
		})
	})
	zlog.Info("HTTP health check registered", zap.String("path", healthPath))
}

func setupGRPCServer(zlog *zap.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(zlog.Named("grpc"))))

	api.RegisterTemplateServiceServer(s, grpcAPIHandler)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	zlog.Info("gRPC services registered", zap.String("service", api.TemplateServiceName))
	return s
}

func unaryLogger(zlog *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{zap.String("method", info.FullMethod), zap.Duration("duration", time.Since(start))}
		if err != nil {
			zlog.Warn("grpc_request", append(fields, zap.Error(err))...)
		} else {
			zlog.Debug("grpc_request", fields...)
		}
		return resp, err
	}
}

func waitForShutdown(
	zlog *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	dbStore *store.PostgresStore,
	rdb *redis.Client,
	stopSweep context.CancelFunc,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	zlog.Info("received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopSweep()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		zlog.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		zlog.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		zlog.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing Redis client", zap.Error(err))
		}
	}
	if err := dbStore.Close(); err != nil {
		zlog.Warn("error closing database connection", zap.Error(err))
	}
	zlog.Info("graceful shutdown sequence completed")
}
