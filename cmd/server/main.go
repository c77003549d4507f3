package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nyirinkindi/eshuri-messaging/internal/api"
	"github.com/nyirinkindi/eshuri-messaging/internal/auth"
	"github.com/nyirinkindi/eshuri-messaging/internal/config"
	"github.com/nyirinkindi/eshuri-messaging/internal/directory"
	"github.com/nyirinkindi/eshuri-messaging/internal/events"
	"github.com/nyirinkindi/eshuri-messaging/internal/logger"
	"github.com/nyirinkindi/eshuri-messaging/internal/metrics"
	"github.com/nyirinkindi/eshuri-messaging/internal/presence"
	"github.com/nyirinkindi/eshuri-messaging/internal/repository"
	"github.com/nyirinkindi/eshuri-messaging/internal/service"
	"github.com/nyirinkindi/eshuri-messaging/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	metrics.Init()

	mc, err := repository.NewMongoClient(context.Background(), cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "error", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	store := repository.NewMongoStore(mc.Database(cfg.Mongo.DB))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pres := presence.NewStore(rdb, cfg.Redis.Prefix)

	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() { _ = pub.Close() }()

	dir := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Timeout())
	svc := service.NewMessageService(store, dir, pub, zlog)
	gateway := ws.NewGateway(svc, pres, zlog)

	validator, err := auth.NewValidator(cfg.JWT.Alg, cfg.JWT.PublicKeyPath, cfg.JWT.HSSecret)
	if err != nil {
		zlog.Fatalw("jwt init", "error", err)
	}

	app := api.NewServer(svc, gateway, validator, pres)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			zlog.Fatalw("server listen", "error", err)
		}
	}()
	zlog.Infow("messaging service started", "addr", cfg.App.Addr(), "env", cfg.App.Env)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout())
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		zlog.Warnw("shutdown", "error", err)
	}
	zlog.Infow("messaging service stopped")
}
