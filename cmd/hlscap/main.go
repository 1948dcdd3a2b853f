package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hlscap/internal/capture"
	"hlscap/internal/config"
	"hlscap/internal/logger"
	"hlscap/internal/playback"
)

func main() {
	var (
		configFile   string
		logLevel     string
		logFormat    string
		duration     time.Duration
		pollInterval time.Duration
		userAgent    string
		testMode     bool
	)

	rootCmd := &cobra.Command{
		Use:   "hlscap",
		Short: "Capture live segmented media across time-aligned tracks",
		Long: "hlscap polls HLS/DASH manifests for a set of sibling tracks and downloads\n" +
			"their fragments in lockstep, so no track is ever consumed ahead of a\n" +
			"lagging sibling.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(os.Stderr, logLevel, logFormat)

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log.Infof("Configuration loaded for: %s (%d tracks)", cfg.Name, len(cfg.Tracks))

			ua := cfg.UserAgent
			if userAgent != "" {
				ua = userAgent
			}

			span := playback.OpenSpan(0)
			if duration > 0 {
				span = playback.Span{Start: 0, End: duration.Seconds()}
			}

			session, err := capture.New(log, cfg.Tracks, capture.Options{
				Span:         span,
				UserAgent:    ua,
				PollInterval: pollInterval,
				TestMode:     testMode,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := session.Run(ctx); err != nil {
				return err
			}

			capture.RenderSummary(os.Stdout, session.Summary())
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "tracks.json", "Path to the track config file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "L", "info", "Log level (error, warn, info, debug)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after capturing this much media time (0 = until end of stream)")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Override the manifest poll interval suggested by the origin")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "Override the User-Agent from the config file")
	rootCmd.Flags().BoolVar(&testMode, "test", false, "Download only the first fragment of every track")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
