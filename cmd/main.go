package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SamuelRobart/church-chat-service/internal/api"
	"github.com/SamuelRobart/church-chat-service/internal/config"
	"github.com/SamuelRobart/church-chat-service/internal/events"
	"github.com/SamuelRobart/church-chat-service/internal/redisbridge"
	"github.com/SamuelRobart/church-chat-service/internal/store"
	"github.com/SamuelRobart/church-chat-service/internal/utils"
	"github.com/SamuelRobart/church-chat-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := utils.NewLogger(cfg.App.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatalw("store init failed", "backend", cfg.History.Backend, "err", err)
	}
	defer closeStore()

	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer producer.Close()
		logger.Infow("kafka producer enabled", "topic", cfg.Kafka.TopicMessageSent)
	}

	hub := ws.NewHub(st, producer, logger)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatalw("redis ping failed", "addr", cfg.Redis.Addr, "err", err)
		}
		defer rdb.Close()

		bridge := redisbridge.New(rdb, cfg.Redis.Channel, hub.DeliverRemote, logger)
		hub.PublishRemote = bridge.Publish
		go bridge.Run(ctx)
		logger.Infow("redis bridge enabled", "channel", cfg.Redis.Channel)
	}

	handler := ws.NewHandler(hub, ws.HandlerConfig{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		ReadDeadline:   cfg.ReadDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
		SendBuffer:     cfg.WS.SendBuffer,
		RatePerMinute:  cfg.Chat.RatePerMinute,
		RateBurst:      cfg.Chat.RateBurst,
	}, logger)

	app := api.NewServer(handler, st, logger)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logger.Infow("starting chat service", "addr", addr, "history", cfg.History.Backend)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		logger.Fatalw("server error", "err", e)
	case s := <-sig:
		logger.Infow("signal received", "signal", s)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warnw("shutdown", "err", err)
	}
	logger.Info("shut down")
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.History.Backend {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		st, err := store.NewMongoStore(connectCtx, coll)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return st, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		return store.NewMemoryStore(cfg.History.MaxEntries), func() {}, nil
	}
}
