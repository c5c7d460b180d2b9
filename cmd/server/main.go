package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/PJB0911/SecKill-i/internal/adapter/handler"
	"github.com/PJB0911/SecKill-i/internal/adapter/storage"
	"github.com/PJB0911/SecKill-i/internal/config"
	"github.com/PJB0911/SecKill-i/internal/core/service"
	"github.com/PJB0911/SecKill-i/internal/port"
	"github.com/PJB0911/SecKill-i/internal/worker"
)

const receiptWriteTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	if err := storage.Migrate(db, storage.DialectMySQL); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	sqlAdapter := storage.NewSQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)

	var ledger port.StockLedger = sqlAdapter
	if cfg.LedgerBackend == config.LedgerRedis {
		seeded, err := storage.WarmRedisLedger(ctx, sqlAdapter, redisAdapter)
		if err != nil {
			logger.Fatal("failed to load stock into redis", zap.Error(err))
		}
		logger.Info("redis ledger warmed", zap.Int("seeded_items", seeded))
		ledger = redisAdapter
	}
	logger.Info("stock ledger ready", zap.String("backend", cfg.LedgerBackend))

	// Initialize services
	promoService := service.NewPromoService(sqlAdapter, sqlAdapter, nil)
	itemService := service.NewItemService(sqlAdapter, ledger, promoService, logger.Named("item"))
	orderService := service.NewOrderService(itemService, ledger, redisAdapter, logger.Named("order"), cfg.QueueSize)

	// Start worker pool
	pool := worker.NewReceiptPool(sqlAdapter, logger.Named("receipts"), cfg.WorkerCount, receiptWriteTimeout)
	pool.Start(orderService.GetReceiptQueue())

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterFlashSaleServer(grpcServer, handler.NewGRPCHandler(itemService, orderService))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(handler.FlashSaleServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(itemService, promoService, orderService, logger.Named("http"), cfg.RequestTimeout)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close receipt queue and wait for workers
	orderService.Close()
	pool.Wait()
	logger.Info("workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
