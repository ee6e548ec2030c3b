package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/app"
	"github.com/berrythewa/inspiration-daemon/internal/config"
	"github.com/berrythewa/inspiration-daemon/internal/daemon"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture daemon in the foreground",
		Long: `Run the capture daemon: global hotkeys, clipboard monitoring, the dedupe
cache and the control socket. Runs until interrupted.

You can specify a duration for testing purposes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.load(); err != nil {
				return err
			}
			logger := o.logger
			defer logger.Sync()

			configPath, err := o.configPath()
			if err != nil {
				return err
			}

			a, err := app.New(app.Options{
				Config:     o.cfg,
				ConfigPath: configPath,
				Logger:     logger,
			})
			if err != nil {
				logger.Error("Failed to initialize daemon", zap.Error(err))
				return err
			}

			if daemon.IsRunningAsDaemon() {
				if paths, err := config.GetConfigPaths(); err == nil {
					defer daemon.ReleasePID(paths.DataDir)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				logger.Info("Running for test duration", zap.Duration("duration", duration))
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			logger.Info("Starting inspiration daemon", zap.String("config", configPath))
			return a.Run(ctx)
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long (for testing)")
	return cmd
}
