package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/triage-ai/palisade-rasp/internal/api"
	"github.com/triage-ai/palisade-rasp/internal/auth"
	"github.com/triage-ai/palisade-rasp/internal/chread"
	"github.com/triage-ai/palisade-rasp/internal/config"
	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/registry"
	"github.com/triage-ai/palisade-rasp/internal/server"
	"github.com/triage-ai/palisade-rasp/internal/storage"
	"github.com/triage-ai/palisade-rasp/internal/store"
	"github.com/triage-ai/palisade-rasp/internal/tokenize"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("RASP_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("RASP_HTTP_PORT", "8080")
	grpcPort := envOrDefault("RASP_GRPC_PORT", "9090")
	configFile := os.Getenv("RASP_CONFIG_FILE")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	clickhouseSecure := envOrDefaultBool("CLICKHOUSE_SECURE", false)
	postgresDSN := os.Getenv("POSTGRES_DSN")
	cacheTTL := envOrDefaultInt("RASP_AUTH_CACHE_TTL_S", 30)

	mode, err := engine.ParseMode(envOrDefault("RASP_MODE", "evaluate"))
	if err != nil {
		logger.Fatal("invalid RASP_MODE", zap.Error(err))
	}

	logger.Info("starting rasp server",
		zap.String("http_port", httpPort),
		zap.String("grpc_port", grpcPort),
		zap.String("mode", mode.String()),
	)

	// Server-wide policy: config file overlaid on defaults
	defaults := config.Defaults()
	if configFile != "" {
		defaults, err = config.Load(configFile, logger)
		if err != nil {
			logger.Fatal("failed to load config", zap.String("path", configFile), zap.Error(err))
		}
		logger.Info("config loaded", zap.String("path", configFile), zap.Int("algorithms", len(defaults.Algorithms)))
	}

	reg := registry.New(defaults, mode, tokenize.Lexer{}, logger)

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, clickhouseSecure, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			if err := chWriter.EnsureTable(context.Background()); err != nil {
				logger.Warn("failed to ensure attack_events table", zap.Error(err))
			}
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	deps := &api.Dependencies{
		Checker:  server.NewChecker(reg, writer, logger),
		Registry: reg,
		Logger:   logger,
	}

	// Auth: Postgres if DSN provided, otherwise a single static app
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore := store.NewStore(db)
		if err := pgStore.Migrate(context.Background()); err != nil {
			logger.Fatal("failed to migrate postgres", zap.Error(err))
		}
		deps.Store = pgStore
		deps.Auth = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(cacheTTL) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres authenticator connected")
	} else {
		deps.Auth = mustStaticAuthenticator(logger)
		logger.Info("using static authenticator (no POSTGRES_DSN)")
	}

	// ClickHouse reader (for events/analytics HTTP endpoints)
	if clickhouseDSN != "" {
		chReader, err := chread.NewReader(clickhouseDSN, clickhouseSecure, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			deps.Reader = chReader
			logger.Info("clickhouse reader connected")
		}
	}

	// gRPC server
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)
	server.RegisterDetectionServiceServer(grpcServer, server.NewRaspServer(deps.Checker, deps.Auth, logger))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(server.DetectionServiceName, healthpb.HealthCheckResponse_SERVING)

	// Enable reflection for debugging with grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", grpcPort), zap.Error(err))
	}
	go func() {
		logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	// HTTP API server
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	healthServer.SetServingStatus(server.DetectionServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("rasp server stopped")
}

// mustStaticAuthenticator serves the one app named by RASP_APP_ID.
func mustStaticAuthenticator(logger *zap.Logger) *auth.StaticAuthenticator {
	enforce, err := engine.ParseEnforceMode(envOrDefault("RASP_ENFORCE_MODE", "enforce"))
	if err != nil {
		logger.Fatal("invalid RASP_ENFORCE_MODE", zap.Error(err))
	}
	secret := os.Getenv("RASP_APP_SECRET")
	if secret == "" {
		logger.Warn("RASP_APP_SECRET is empty, any secret is accepted")
	}
	return auth.NewStaticAuthenticator(secret, &auth.AppContext{
		AppID:       envOrDefault("RASP_APP_ID", "default"),
		Runtime:     engine.ParseRuntime(os.Getenv("RASP_APP_LANGUAGE")),
		EnforceMode: enforce,
	})
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
