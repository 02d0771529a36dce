package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/api"
	"github.com/placementhub/auth-service/internal/controller"
	"github.com/placementhub/auth-service/internal/migrations"
	"github.com/placementhub/auth-service/internal/service"
	"github.com/placementhub/auth-service/internal/storage/postgres"
	redisstore "github.com/placementhub/auth-service/internal/storage/redis"
	"github.com/placementhub/auth-service/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	// One shutdown context for everything with a lifetime: the sweeper
	// stops on the same signal the server does.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger, "./internal/migrations"); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	sessionCfg := util.NewSessionConfig()

	store := postgres.NewStorage(db)
	store.StartSweeper(ctx, sessionCfg.SweepInterval, logger)

	tokenService := service.NewTokenService(util.NewTokenConfig())
	auditService := service.NewAuditService(postgres.NewAuditRepository(db), logger)
	webhookService := service.NewWebhookService(logger, util.GetSecurityWebhookURL())
	authService := service.NewAuthService(store, tokenService, auditService, webhookService, sessionCfg, logger)

	limiter := redisstore.NewRateLimiter(redisClient, util.NewRateLimiterConfig())

	ctrl := controller.NewController(authService, sessionCfg, logger)

	apiServer := api.NewAPI(ctrl, limiter, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
