package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/logging"
	"github.com/pscheid92/screensync/internal/platform/version"
	"github.com/pscheid92/screensync/internal/player"
	"github.com/spf13/cobra"
)

type options struct {
	server            string
	screenID          string
	statusInterval    time.Duration
	changeLogInterval time.Duration
	imageDuration     time.Duration
	videoDuration     time.Duration
	noPush            bool
	logLevel          string
	logFormat         string
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "screen",
		Short:         "Headless signage screen that plays its assigned playlist",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.screenID == "" {
				return errors.New("--screen-id is required")
			}
			if opts.server == "" {
				return errors.New("--server must not be empty")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.server, "server", "s", envOr("SCREEN_SERVER", "http://localhost:8080"), "Base URL of the signage server")
	flags.StringVar(&opts.screenID, "screen-id", os.Getenv("SCREEN_ID"), "Identifier of this screen")
	flags.DurationVar(&opts.statusInterval, "status-interval", player.DefaultStatusInterval, "Fingerprint poll interval")
	flags.DurationVar(&opts.changeLogInterval, "changelog-interval", player.DefaultChangeLogInterval, "Change log poll interval")
	flags.DurationVar(&opts.imageDuration, "image-duration", player.DefaultImageDuration, "Display time for images without an explicit duration")
	flags.DurationVar(&opts.videoDuration, "video-duration", player.DefaultVideoDuration, "Display time for videos without an explicit duration")
	flags.BoolVar(&opts.noPush, "no-push", false, "Disable the push channel and rely on polling only")
	flags.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", envOr("LOG_FORMAT", "text"), "Log format (text, json)")

	return cmd
}

func run(ctx context.Context, opts options) error {
	logging.InitLogger(opts.logLevel, opts.logFormat)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	renderer := player.NewLogRenderer(clock, opts.imageDuration, opts.videoDuration)

	p := player.New(player.Config{
		ServerURL:         opts.server,
		ScreenID:          opts.screenID,
		StatusInterval:    opts.statusInterval,
		ChangeLogInterval: opts.changeLogInterval,
		DisablePush:       opts.noPush,
	}, renderer, clock, player.WithPlayerCallbacks(player.Callbacks{
		OnNotice: func(msg string) {
			if msg != "" {
				slog.Warn("Notice", "screen_id", opts.screenID, "message", msg)
			}
		},
		OnState: func(state domain.PlaybackState) {
			slog.Debug("Playback state",
				"screen_id", opts.screenID,
				"status", state.Status,
				"index", state.CurrentIndex,
				"total", state.TotalItems,
				"retries", state.RetryCount,
			)
		},
	}))

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
