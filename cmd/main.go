package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"drive-service/internal/MinIO"
	"drive-service/internal/blob/badgerBlob"
	"drive-service/internal/blob/memBlob"
	"drive-service/internal/blob/s3Blob"
	"drive-service/internal/config"
	"drive-service/internal/handler/storageHandler"
	"drive-service/internal/notify"
	"drive-service/internal/repository/revokedTokens"
	"drive-service/internal/repository/storageRepo"
	"drive-service/internal/service/identity"
	"drive-service/internal/service/quotaLedger"
	"drive-service/internal/service/storageService"
	"drive-service/pkg/database/postgres"
	"drive-service/pkg/database/redis"
	"drive-service/pkg/logger"
	"drive-service/pkg/middleware"
)

func main() {
	ctx := context.Background()

	ctx, err := logger.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.GetLogger(ctx)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	redisClient := redis.New(cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("cannot connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	var ledger quotaLedger.Ledger = quotaLedger.NewMemory()
	if cfg.QuotaBackend == "redis" {
		ledger = quotaLedger.NewRedis(redisClient)
	}

	blobs, closeBlobs, err := openBlobs(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open blob store", zap.String("backend", cfg.BlobBackend), zap.Error(err))
	}
	defer closeBlobs()

	var notifier storageService.Notifier = notify.Nop{}
	if cfg.SMTP.Enabled() {
		notifier = notify.NewSMTP(cfg.SMTP)
	}

	deps := storageService.Deps{
		Blobs:        blobs,
		Ledger:       ledger,
		Notifier:     notifier,
		MaxDepth:     cfg.MaxTreeDepth,
		DefaultQuota: cfg.DefaultQuota,
	}

	var repo *storageRepo.StorageRepo
	if cfg.Journal == "postgres" {
		pool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		repo = storageRepo.New(pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
		deps.Journal = repo
	}

	storage := storageService.New(deps)
	if repo != nil {
		snap, err := repo.Load(ctx)
		if err != nil {
			log.Fatal("Failed to load storage state", zap.Error(err))
		}
		if err := storage.Restore(ctx, snap); err != nil {
			log.Fatal("Failed to restore storage state", zap.Error(err))
		}
	}

	verifier := identity.New(cfg.JWTSecret, revokedTokens.New(redisClient))
	handler := storageHandler.New(storage, verifier, cfg.Admins())

	public := append([]string{"/grpc.health.v1.Health/Check", "/grpc.health.v1.Health/Watch"}, storageHandler.PublicMethods...)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.LoggerInterceptor(log.Zap()),
			middleware.AuthInterceptor(verifier, public...),
		),
		grpc.ChainStreamInterceptor(
			middleware.StreamLoggerInterceptor(log.Zap()),
			middleware.StreamAuthInterceptor(verifier, public...),
		),
	)
	storageHandler.RegisterStorageServer(grpcServer, handler)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(storageHandler.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	go func() {
		log.Info("server started",
			zap.String("port", cfg.GRPCPort),
			zap.String("blob_backend", cfg.BlobBackend),
			zap.String("quota_backend", cfg.QuotaBackend),
			zap.String("journal", cfg.Journal),
		)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("failed to serve", zap.Error(err))
			stop()
		}
	}()
	<-ctx.Done()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	log.Info("server stopped")
}

func openBlobs(ctx context.Context, cfg *config.Config) (storageService.BlobStore, func(), error) {
	noop := func() {}
	switch cfg.BlobBackend {
	case "memory":
		return memBlob.New(), noop, nil
	case "s3":
		store, err := s3Blob.New(ctx, cfg.S3)
		return store, noop, err
	case "badger":
		store, err := badgerBlob.Open(cfg.Badger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := MinIO.New(ctx, cfg.MinIO)
		return store, noop, err
	}
}
