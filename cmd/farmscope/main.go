package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"farmScope/internal/chain"
	"farmScope/internal/config"
	"farmScope/internal/contract"
	"farmScope/internal/price"
	"farmScope/internal/stats"
)

func main() {
	root := &cobra.Command{
		Use:          "farmscope",
		Short:        "Yield farm TVL and APY reporter",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and HTTP endpoints",
		RunE:  runServe,
	}
	addCommonFlags(serveCmd.Flags())
	serveCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("telegram-api", "https://api.telegram.org", "Telegram Bot API base URL")
	serveCmd.Flags().Duration("cache-ttl", 300*time.Second, "how long a report is served from cache")
	serveCmd.Flags().Duration("aggregate-timeout", 2*time.Minute, "upper bound for one stats aggregation")
	serveCmd.Flags().Bool("notify-waiters-on-failure", true, "send the failure notice to every waiting requester, not only the one that started the aggregation")

	root.AddCommand(serveCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute stats once and print the report",
		RunE:  runStats,
	}
	addCommonFlags(statsCmd.Flags())
	statsCmd.Flags().Duration("aggregate-timeout", 2*time.Minute, "upper bound for the aggregation")
	statsCmd.Flags().Bool("json", false, "print stats as JSON instead of the chat report")

	root.AddCommand(statsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.Duration("call-timeout", chain.DefaultCallTimeout, "timeout for a single contract call")
	flags.String("price-base-url", price.DefaultBaseURL, "token price API base URL")
	flags.Int("price-retries", 2, "retries for a failed price request")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// buildAggregator dials every configured network and wires the readers and
// price client into an Aggregator. The returned func closes the RPC clients.
func buildAggregator(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stats.Aggregator, func(), error) {
	var clients []*chain.Client
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}

	networks := make([]stats.Network, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		client, err := chain.NewClient(ctx, n.RPCURL, cfg.CallTimeout)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect %s rpc: %w", n.Network, err)
		}
		clients = append(clients, client)

		netLogger := logger.With(zap.String("network", n.Network))
		if chainID, err := client.GetChainID(ctx); err != nil {
			netLogger.Warn("chain id lookup failed", zap.Error(err))
		} else {
			netLogger.Info("network ready", zap.String("chain_id", chainID.String()), zap.Int("pools", len(n.Pools)))
		}

		networks = append(networks, stats.Network{
			NetworkConfig: n,
			Reader:        contract.NewReader(client, netLogger),
		})
	}

	prices := price.NewClient(price.Config{
		BaseURL:      cfg.PriceBaseURL,
		APIKey:       cfg.PriceAPIKey,
		Platforms:    cfg.Platforms(),
		Timeout:      cfg.PriceTimeout,
		MaxRetries:   cfg.PriceRetries,
		RetryBackoff: cfg.PriceRetryBackoff,
	}, logger)

	return stats.NewAggregator(networks, prices, logger), closeAll, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
