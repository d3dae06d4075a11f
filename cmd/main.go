package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/api"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/config"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/events"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/metrics"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/repository"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/service"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/utils"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.App.Env == "development", cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout, logger)
	if err != nil {
		logger.Fatal("mongo init", zap.Error(err))
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.Mongo.Database)
	participants := repository.NewMongoParticipantRepo(db, cfg.Mongo.ParticipantsCollection)
	messages := repository.NewMongoMessageRepo(db, cfg.Mongo.MessagesCollection)

	var pub events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("publishing chat events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() { _ = pub.Close() }()

	limiter := newLimiter(ctx, cfg, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := service.NewChatService(participants, messages, pub, m, logger, cfg.Sweep.IdleAfter)

	sweeper := service.NewSweeper(svc, cfg.Sweep.Interval, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("idle sweeper exited", zap.Error(err))
		}
	}()

	app := api.NewServer(api.ServerDeps{
		Handler:  api.NewHandler(svc, cfg.RequestTimeout, logger),
		Limiter:  limiter,
		Gatherer: reg,
		Log:      logger,
	})

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			logger.Fatal("server listen", zap.Error(err))
		}
	}()
	logger.Info("batepapo started", zap.String("port", cfg.App.PortString()))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("batepapo stopped")
}

// newLimiter picks the redis limiter when an address is configured, the
// in-process one otherwise, and nil when rate limiting is off.
func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) middleware.Limiter {
	if cfg.RateLimit.PerMinute <= 0 {
		return nil
	}
	if cfg.Redis.Addr == "" {
		l := middleware.NewLocalLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
		go l.Run(ctx)
		return l
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Fatal("redis ping", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	go func() {
		<-ctx.Done()
		_ = rdb.Close()
	}()
	logger.Info("rate limiting through redis", zap.String("addr", cfg.Redis.Addr))
	return middleware.NewRedisLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.PerMinute, time.Minute)
}
