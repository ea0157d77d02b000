package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/pubsub"
	"github.com/mvharris/tabwire/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "terminal"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "terminal",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithTerminalID(ctx, cfg.Terminal.ID)
	ctx = logg.WithLocationID(ctx, cfg.Terminal.LocationID)

	term, err := NewTerminal(ctx, cfg, logg, redisClient, pubsubClient)
	if err != nil {
		logg.Error(ctx, "failed to wire terminal", err)
		os.Exit(1)
	}

	logg.Info(ctx, "terminal sync engine starting")
	if err := term.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "terminal stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "terminal shutting down gracefully")
}
