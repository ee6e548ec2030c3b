// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir    string // Directory holding the config file
	ConfigFile string // Path to the config file
	DataDir    string // Directory for application data
	DedupeFile string // Path to the clipboard dedupe cache
	InboxFile  string // Path to the inbox database
	LogDir     string // Directory for log files
}

// Config holds all application configuration
type Config struct {
	Hotkeys   HotkeyConfig    `json:"hotkeys" yaml:"hotkeys"`
	Clipboard ClipboardConfig `json:"clipboard" yaml:"clipboard"`
	Dedupe    DedupeConfig    `json:"dedupe" yaml:"dedupe"`
	Watchdog  WatchdogConfig  `json:"watchdog" yaml:"watchdog"`
	Inbox     InboxConfig     `json:"inbox" yaml:"inbox"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
	Log       LogConfig       `json:"log" yaml:"log"`
	IPC       IPCConfig       `json:"ipc" yaml:"ipc"`
	Workers   WorkerConfig    `json:"workers" yaml:"workers"`
}

// HotkeyConfig holds the global key combinations
type HotkeyConfig struct {
	QuickInput      string `json:"quick_input" yaml:"quick_input"`
	ToggleClipboard string `json:"toggle_clipboard" yaml:"toggle_clipboard"`
}

// ClipboardConfig holds clipboard monitoring options
type ClipboardConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	MinLength     int           `json:"min_length" yaml:"min_length"`
	MaxLength     int           `json:"max_length" yaml:"max_length"`
	HistorySize   int           `json:"history_size" yaml:"history_size"`
}

// DedupeConfig holds the clipboard dedupe window
type DedupeConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	TTL           time.Duration `json:"ttl" yaml:"ttl"`
	PruneInterval time.Duration `json:"prune_interval" yaml:"prune_interval"`
	Path          string        `json:"path" yaml:"path"`
}

// WatchdogConfig holds the hotkey liveness timings
type WatchdogConfig struct {
	PollInterval       time.Duration `json:"poll_interval" yaml:"poll_interval"`
	NoTriggerTimeout   time.Duration `json:"no_trigger_timeout" yaml:"no_trigger_timeout"`
	IdleTriggerTimeout time.Duration `json:"idle_trigger_timeout" yaml:"idle_trigger_timeout"`
	NoActivityTimeout  time.Duration `json:"no_activity_timeout" yaml:"no_activity_timeout"`
	RestartDelay       time.Duration `json:"restart_delay" yaml:"restart_delay"`
}

// InboxConfig holds the local capture inbox location
type InboxConfig struct {
	Path string `json:"path" yaml:"path"`
}

type NotifyConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level             string `json:"level" yaml:"level"`
	Format            string `json:"format" yaml:"format"` // "json" or "console"
	EnableFileLogging bool   `json:"enable_file_logging" yaml:"enable_file_logging"`
	Dir               string `json:"dir" yaml:"dir"`
}

type IPCConfig struct {
	SocketPath string `json:"socket_path" yaml:"socket_path"`
}

type WorkerConfig struct {
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
}

// GetConfigPaths returns the platform-specific configuration paths
func GetConfigPaths() (*ConfigPaths, error) {
	// First check environment variable for base directory
	baseDir := os.Getenv("INSPIRATION_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "Inspiration")
		case "darwin":
			baseDir = filepath.Join(configDir, "com.berrythewa.inspiration")
		default: // Linux and others
			baseDir = filepath.Join(configDir, "inspiration")
		}
	}

	dataDir := os.Getenv("INSPIRATION_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			if appData, err := os.UserConfigDir(); err == nil {
				dataDir = filepath.Join(appData, "Inspiration", "Data")
			} else {
				dataDir = filepath.Join(homeDir, "AppData", "Local", "Inspiration")
			}
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "Inspiration")
		default:
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				dataDir = filepath.Join(xdgDataHome, "inspiration")
			} else {
				dataDir = filepath.Join(homeDir, ".inspiration")
			}
		}
	}

	return &ConfigPaths{
		BaseDir:    baseDir,
		ConfigFile: filepath.Join(baseDir, "config.yaml"),
		DataDir:    dataDir,
		DedupeFile: filepath.Join(dataDir, "clipboard_dedupe.json"),
		InboxFile:  filepath.Join(dataDir, "inbox.db"),
		LogDir:     filepath.Join(dataDir, "logs"),
	}, nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	paths, err := GetConfigPaths()
	if err != nil {
		// fall back to the working directory
		paths = &ConfigPaths{
			DedupeFile: "clipboard_dedupe.json",
			InboxFile:  "inbox.db",
			LogDir:     "logs",
		}
	}

	return &Config{
		Hotkeys: HotkeyConfig{
			QuickInput:      "ctrl+shift+space",
			ToggleClipboard: "ctrl+shift+c",
		},
		Clipboard: ClipboardConfig{
			Enabled:       true,
			CheckInterval: time.Second,
			MinLength:     10,
			MaxLength:     5000,
			HistorySize:   50,
		},
		Dedupe: DedupeConfig{
			Enabled:       true,
			TTL:           48 * time.Hour,
			PruneInterval: time.Hour,
			Path:          paths.DedupeFile,
		},
		Watchdog: WatchdogConfig{
			PollInterval:       10 * time.Second,
			NoTriggerTimeout:   5 * time.Minute,
			IdleTriggerTimeout: 10 * time.Minute,
			NoActivityTimeout:  2 * time.Minute,
			RestartDelay:       500 * time.Millisecond,
		},
		Inbox: InboxConfig{
			Path: paths.InboxFile,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:             "info",
			Format:            "console",
			EnableFileLogging: false,
			Dir:               paths.LogDir,
		},
		IPC: IPCConfig{
			SocketPath: DefaultSocketPath(),
		},
		Workers: WorkerConfig{
			MaxConcurrent: 4,
		},
	}
}

// DefaultSocketPath returns the control socket used when none is configured
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "inspirationd.sock")
}

// Load loads the configuration from the specified file or creates default if not exists
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = GetActiveConfigPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		overrideFromEnv(cfg)
		return cfg, cfg.Validate()
	}

	return LoadFile(configPath)
}

// LoadFile reads an existing config file. Fields missing from the file keep
// their default values.
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the daemon cannot run with
func (c *Config) Validate() error {
	if c.Clipboard.CheckInterval <= 0 {
		return fmt.Errorf("clipboard.check_interval must be positive, got %s", c.Clipboard.CheckInterval)
	}
	if c.Clipboard.MinLength < 0 {
		return fmt.Errorf("clipboard.min_length must not be negative, got %d", c.Clipboard.MinLength)
	}
	if c.Clipboard.MaxLength <= 0 {
		return fmt.Errorf("clipboard.max_length must be positive, got %d", c.Clipboard.MaxLength)
	}
	if c.Clipboard.MinLength > c.Clipboard.MaxLength {
		return fmt.Errorf("clipboard.min_length (%d) exceeds max_length (%d)", c.Clipboard.MinLength, c.Clipboard.MaxLength)
	}
	if c.Dedupe.TTL <= 0 {
		return fmt.Errorf("dedupe.ttl must be positive, got %s", c.Dedupe.TTL)
	}
	if c.Dedupe.PruneInterval <= 0 {
		return fmt.Errorf("dedupe.prune_interval must be positive, got %s", c.Dedupe.PruneInterval)
	}

	wd := c.Watchdog
	for name, d := range map[string]time.Duration{
		"watchdog.poll_interval":        wd.PollInterval,
		"watchdog.no_trigger_timeout":   wd.NoTriggerTimeout,
		"watchdog.idle_trigger_timeout": wd.IdleTriggerTimeout,
		"watchdog.no_activity_timeout":  wd.NoActivityTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if wd.RestartDelay < 0 {
		return fmt.Errorf("watchdog.restart_delay must not be negative, got %s", wd.RestartDelay)
	}
	if c.Workers.MaxConcurrent <= 0 {
		return fmt.Errorf("workers.max_concurrent must be positive, got %d", c.Workers.MaxConcurrent)
	}
	return nil
}

// GetActiveConfigPath returns the path to the currently active config
func GetActiveConfigPath() (string, error) {
	if path := os.Getenv("INSPIRATION_CONFIG"); path != "" {
		return path, nil
	}
	paths, err := GetConfigPaths()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("INSPIRATION_HOTKEY_QUICK_INPUT"); val != "" {
		config.Hotkeys.QuickInput = val
	}
	if val := os.Getenv("INSPIRATION_HOTKEY_TOGGLE_CLIPBOARD"); val != "" {
		config.Hotkeys.ToggleClipboard = val
	}

	if val := os.Getenv("INSPIRATION_CLIPBOARD_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Clipboard.Enabled = b
		}
	}
	if val := os.Getenv("INSPIRATION_CLIPBOARD_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Clipboard.CheckInterval = d
		}
	}

	if val := os.Getenv("INSPIRATION_DEDUPE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Dedupe.Enabled = b
		}
	}
	if val := os.Getenv("INSPIRATION_DEDUPE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Dedupe.TTL = d
		}
	}

	if val := os.Getenv("INSPIRATION_NOTIFY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			config.Notify.Enabled = b
		}
	}
	if val := os.Getenv("INSPIRATION_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("INSPIRATION_IPC_SOCKET"); val != "" {
		config.IPC.SocketPath = val
	}
}
