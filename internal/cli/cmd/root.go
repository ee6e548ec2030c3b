package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/common"
	"github.com/berrythewa/inspiration-daemon/internal/config"
)

// rootOptions holds the global flags and the lazily loaded shared resources.
type rootOptions struct {
	configFile string
	verbose    bool
	quiet      bool
	useJSON    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "inspirationd",
		Short: "Capture ideas from global hotkeys and the clipboard",
		Long: `inspirationd runs in the background and captures text you want to keep:
  • A global hotkey that captures the current clipboard on demand
  • Clipboard monitoring that picks up new, meaningful copies
  • A persistent dedupe window so the same text is not captured twice
  • A self-healing keyboard hook that restarts itself when it goes quiet`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&o.configFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().BoolVar(&o.verbose, "verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&o.quiet, "quiet", false, "minimize output")
	rootCmd.PersistentFlags().BoolVar(&o.useJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newRunCmd(o),
		newStartCmd(o),
		newStopCmd(o),
		newStatusCmd(o),
		newHistoryCmd(o),
		newToggleCmd(o),
		newDedupeCmd(o),
		newInboxCmd(o),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) configPath() (string, error) {
	if o.configFile != "" {
		return o.configFile, nil
	}
	return config.GetActiveConfigPath()
}

// load reads the config and builds the logger on first use.
func (o *rootOptions) load() error {
	if o.cfg != nil {
		return nil
	}
	path, err := o.configPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := common.NewLogger(cfg, common.LoggerOptions{Verbose: o.verbose, Quiet: o.quiet})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
