package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"farmScope/internal/config"
	"farmScope/internal/report"
	"farmScope/internal/server"
	"farmScope/internal/statscache"
	"farmScope/internal/telegram"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadSecrets(ctx, &cfg, logger)
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	aggregator, closeClients, err := buildAggregator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeClients()

	bot := telegram.NewBot(cfg.TelegramToken, logger.Named("telegram"), telegram.WithAPIBase(cfg.TelegramAPIBase))
	cache := statscache.New(statscache.Config{
		TTL:                cfg.CacheTTL,
		Timeout:            cfg.AggregateTimeout,
		NotifyAllOnFailure: cfg.NotifyWaitersOnFailure,
	}, aggregator, report.NewFormatter(), bot, logger.Named("cache"))
	defer cache.Close()
	bot.SetRequester(cache)

	httpServer := server.New(cfg.HTTPAddr, cache, logger.Named("http"))

	logger.Info("farmscope start",
		zap.Int("networks", len(cfg.Networks)),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("call_timeout", cfg.CallTimeout),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bot.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return httpServer.ListenAndServe(gctx)
	})

	err = g.Wait()
	logger.Info("farmscope stopped")
	return err
}
