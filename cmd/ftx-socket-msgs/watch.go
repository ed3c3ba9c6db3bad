package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/matthewdowney/ftx-socket-msgs/internal/config"
	"github.com/matthewdowney/ftx-socket-msgs/internal/framelog"
	"github.com/matthewdowney/ftx-socket-msgs/internal/metrics"
	"github.com/matthewdowney/ftx-socket-msgs/internal/monitor"
)

func watchCmd() *cobra.Command {
	var (
		configPath       string
		feedURL          string
		logFile          string
		metricsAddr      string
		staleMs          int64
		flushIntervalSec int
		heartbeatSec     int
	)
	cmd := &cobra.Command{
		Use:   "watch MARKET...",
		Short: "Watch orderbook channels and measure message staleness",
		Long: "Connects to the feed, subscribes to the orderbook channel for each MARKET,\n" +
			"and logs every frame with a staleness verdict. A blank line on stdin exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			markets := config.NormalizeMarkets(args)
			if len(markets) == 0 {
				_ = cmd.Usage()
				return fmt.Errorf("at least one market is required")
			}

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if feedURL != "" {
				cfg.FeedURL = feedURL
			}
			if logFile != "" {
				cfg.LogFile = logFile
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			if staleMs != 0 {
				cfg.StaleThresholdMs = staleMs
			}
			if flushIntervalSec != 0 {
				cfg.FlushIntervalSec = flushIntervalSec
			}
			if heartbeatSec != 0 {
				cfg.HeartbeatIntervalSec = heartbeatSec
			}
			cfg.Markets = markets

			if err := cfg.Validate(); err != nil {
				return err
			}

			flog, err := framelog.Open(cfg.LogFile)
			if err != nil {
				return err
			}
			defer flog.Close()

			reg := metrics.NewRegistry()
			if cfg.MetricsAddr != "" {
				go func() {
					if err := reg.Serve(cmd.Context(), cfg.MetricsAddr); err != nil {
						log.Error().Err(err).Msg("Metrics server failed")
					}
				}()
			}

			return monitor.New(cfg, flog, reg).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "websocket feed URL")
	cmd.Flags().StringVar(&logFile, "log-file", "", "frame log path")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "prometheus listen address, e.g. :9090 (off when empty)")
	cmd.Flags().Int64Var(&staleMs, "stale-ms", 0, "staleness threshold in milliseconds")
	cmd.Flags().IntVar(&flushIntervalSec, "flush-interval", 0, "summary flush interval in seconds")
	cmd.Flags().IntVar(&heartbeatSec, "heartbeat-interval", 0, "keep-alive period in seconds")
	return cmd
}
