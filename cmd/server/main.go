package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/mdrrmo/evac-gateway/internal/api"
	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
	"github.com/mdrrmo/evac-gateway/internal/core/service"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/archive"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/broadcast"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/config"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/db/mongo"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/db/redis"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/secrets"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/upstream"
	"github.com/mdrrmo/evac-gateway/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	redisClient, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}

	mongoClient, mongoDB, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}

	sealer, err := secrets.NewSealer(cfg.GatewaySecret)
	if err != nil {
		log.Fatal().Err(err).Msg("sealer init failed")
	}

	var archiver ports.ExportArchiver
	if cfg.Export.Enabled() {
		exportArchiver, err := archive.NewExportArchiver(cfg.Export)
		if err != nil {
			log.Fatal().Err(err).Msg("export archiver init failed")
		}
		if err := exportArchiver.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Msg("ensure export bucket failed")
		}
		archiver = exportArchiver
	}

	upstreamClient := upstream.NewClient(upstream.Config{
		URL:            cfg.Upstream.URL,
		LoginTimeout:   cfg.Upstream.LoginTimeout,
		RequestTimeout: cfg.Upstream.RequestTimeout,
	}, logger.Component("upstream"))

	sessionStore := redis.NewSessionStore(redisClient)
	activityStore := redis.NewActivityStore(redisClient, cfg.Session.ActivityLogCap)
	dedup := redis.NewDedupChecker(redisClient)
	activityArchive := mongo.NewActivityRepository(mongoDB)
	recordCache := mongo.NewRecordCacheRepository(mongoDB)
	broadcaster := broadcast.New(redisClient, dedup, logger.Component("broadcast"))

	policy := service.Policy{
		IdleTimeout:         cfg.Session.IdleTimeout,
		ValidateInterval:    cfg.Session.ValidateInterval,
		IdleCheckInterval:   cfg.Session.IdleCheckInterval,
		GraceWindow:         cfg.Session.GraceWindow,
		RenewalInterval:     cfg.Session.RenewalInterval,
		HeartbeatInterval:   cfg.Session.HeartbeatInterval,
		ActivityDebounce:    cfg.Session.ActivityDebounce,
		LogoutNotifyTimeout: cfg.Session.LogoutNotifyTimeout,
		TokenTTL:            cfg.Session.TokenTTL,
		ForceLogoutWait:     cfg.Upstream.ForceLogoutWait,
	}

	sessionService := service.NewSessionService(
		sessionStore,
		upstreamClient,
		activityStore,
		activityArchive,
		sealer,
		policy,
		cfg.GatewaySecret,
		logger.Component("session"),
	)
	recordService := service.NewRecordService(
		upstreamClient,
		recordCache,
		broadcaster,
		sessionService,
		sessionService,
		archiver,
		logger.Component("records"),
	)
	userService := service.NewUserService(upstreamClient, sessionService, logger.Component("users"))

	monitor := service.NewMonitor(sessionService, policy, logger.Component("monitor"))
	if err := monitor.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("session monitor start failed")
	}

	// Deliver sibling-station data-change hints into the local activity feed.
	subCtx, subCancel := context.WithCancel(ctx)
	go func() {
		err := broadcaster.Subscribe(subCtx, func(a domain.Activity) {
			if err := activityStore.Append(subCtx, a); err != nil {
				log.Debug().Err(err).Msg("broadcast delivery append failed")
			}
		})
		if err != nil && subCtx.Err() == nil {
			log.Error().Err(err).Msg("broadcast subscription ended unexpectedly")
		}
	}()

	e := api.NewRouter(api.RouterDeps{
		Sessions:    sessionService,
		Tracker:     sessionService,
		ActivityLog: activityStore,
		Updates:     broadcaster,
		Records:     recordService,
		Users:       userService,
		Mongo:       mongoDB,
		Redis:       redisClient,
		JWTSecret:   cfg.GatewaySecret,
		Log:         logger.Component("api"),
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(log, e, monitor, subCancel, mongoClient, redisClient)
}

func waitForShutdown(
	log zerolog.Logger,
	e *echo.Echo,
	monitor *service.Monitor,
	stopSubscriber context.CancelFunc,
	mongoClient *mongodriver.Client,
	redisClient *goredis.Client,
) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	monitor.Stop()
	stopSubscriber()

	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mongo disconnect error")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("redis close error")
	}

	log.Info().Msg("gateway exited cleanly")
}
