package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/berrythewa/inspiration-daemon/internal/config"
	"github.com/berrythewa/inspiration-daemon/internal/daemon"
)

const stopTimeout = 10 * time.Second

func newStartCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the capture daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.load(); err != nil {
				return err
			}
			paths, err := config.GetConfigPaths()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to resolve executable: %w", err)
			}

			runArgs := []string{"run"}
			if o.configFile != "" {
				abs, err := filepath.Abs(o.configFile)
				if err != nil {
					return err
				}
				runArgs = append(runArgs, "--config", abs)
			}
			if o.verbose {
				runArgs = append(runArgs, "--verbose")
			}

			logDir := o.cfg.Log.Dir
			if logDir == "" {
				logDir = paths.LogDir
			}

			pid, err := daemon.Start(daemon.Options{
				Executable: exe,
				Args:       runArgs,
				WorkDir:    paths.DataDir,
				DataDir:    paths.DataDir,
				LogDir:     logDir,
				Logger:     o.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (PID %d)\n", pid)
			return nil
		},
	}
}

func newStopCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background capture daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.GetConfigPaths()
			if err != nil {
				return err
			}
			pid, err := daemon.Stop(paths.DataDir, stopTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (PID %d)\n", pid)
			return nil
		},
	}
}
