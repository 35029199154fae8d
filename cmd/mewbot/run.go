package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mewbot/internal/bot"
	"mewbot/internal/components"
	"mewbot/internal/config"
	"mewbot/internal/loader"
	"mewbot/internal/metrics"
	"mewbot/internal/store"
	"mewbot/internal/telemetry"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run <bot.yaml>...",
		Short: "Load bot definitions and run the bot until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBot(ctx, args)
		},
	}
	rootCmd.AddCommand(runCmd)
}

func runBot(ctx context.Context, paths []string) error {
	logger := telemetry.Component("bot")

	st, err := store.NewStore(config.Store())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetricsWith(reg, reg)

	b, err := loader.LoadFiles(components.NewRegistry(), loader.Options{
		Name:       viper.GetString("bot.name"),
		Deps:       loader.Dependencies{Store: st, Logger: logger, Metrics: m},
		BotOptions: []bot.Option{bot.WithDrainTimeout(config.DrainTimeout())},
	}, paths...)
	if err != nil {
		return err
	}

	if port := viper.GetInt("metrics_port"); port > 0 {
		go func() {
			if err := telemetry.StartMetricsServer(ctx, fmt.Sprintf(":%d", port), m.Handler()); err != nil {
				logger.Warn("Failed to start metrics server", "port", port, "error", err)
			}
		}()
	}

	logger.Info("Starting bot", "name", b.Name(), "io_configs", len(b.IOConfigs()), "behaviours", len(b.Behaviours()))
	if err := b.Run(ctx); err != nil {
		return err
	}
	slog.Info("Bot stopped", "name", b.Name())
	return nil
}
