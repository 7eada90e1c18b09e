package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"farmScope/internal/report"
)

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.AggregateTimeout)
	defer cancel()

	aggregator, closeClients, err := buildAggregator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeClients()

	pairStats, err := aggregator.Stats(ctx)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(pairStats)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), report.NewFormatter().Render(pairStats))
	return err
}
