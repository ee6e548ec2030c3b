// File: internal/config/config_test.go

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func setupDirs(t *testing.T) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "inspiration-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	t.Setenv("INSPIRATION_CONFIG_DIR", filepath.Join(tempDir, "config"))
	t.Setenv("INSPIRATION_DATA_DIR", filepath.Join(tempDir, "data"))
	return tempDir
}

func TestGetConfigPaths(t *testing.T) {
	tempDir := setupDirs(t)

	paths, err := GetConfigPaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "config", "config.yaml"), paths.ConfigFile)
	assert.Equal(t, filepath.Join(tempDir, "data", "clipboard_dedupe.json"), paths.DedupeFile)
	assert.Equal(t, filepath.Join(tempDir, "data", "inbox.db"), paths.InboxFile)
	assert.Equal(t, filepath.Join(tempDir, "data", "logs"), paths.LogDir)
}

func TestLoad_CreatesDefault(t *testing.T) {
	tempDir := setupDirs(t)
	configPath := filepath.Join(tempDir, "config", "config.yaml")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, configPath)

	// the written file is readable and yields the same config
	again, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_EmptyPathUsesActiveConfig(t *testing.T) {
	tempDir := setupDirs(t)

	_, err := Load("")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(tempDir, "config", "config.yaml"))
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	tempDir := setupDirs(t)
	configPath := filepath.Join(tempDir, "config.yaml")

	content := `
hotkeys:
  quick_input: "alt+space"
clipboard:
  check_interval: 2s
  min_length: 3
dedupe:
  ttl: 24h
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "alt+space", cfg.Hotkeys.QuickInput)
	assert.Equal(t, "ctrl+shift+c", cfg.Hotkeys.ToggleClipboard)
	assert.Equal(t, 2*time.Second, cfg.Clipboard.CheckInterval)
	assert.Equal(t, 3, cfg.Clipboard.MinLength)
	assert.Equal(t, 5000, cfg.Clipboard.MaxLength)
	assert.True(t, cfg.Clipboard.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Dedupe.TTL)
	assert.Equal(t, time.Hour, cfg.Dedupe.PruneInterval)
	assert.Equal(t, 10*time.Second, cfg.Watchdog.PollInterval)
}

func TestLoadFile_Errors(t *testing.T) {
	tempDir := setupDirs(t)

	_, err := LoadFile(filepath.Join(tempDir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(tempDir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("clipboard: [unclosed"), 0644))
	_, err = LoadFile(bad)
	assert.ErrorContains(t, err, "failed to parse config file")

	invalid := filepath.Join(tempDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("clipboard:\n  min_length: 100\n  max_length: 10\n"), 0644))
	_, err = LoadFile(invalid)
	assert.ErrorContains(t, err, "exceeds max_length")
}

func TestOverrideFromEnv(t *testing.T) {
	tempDir := setupDirs(t)
	t.Setenv("INSPIRATION_CLIPBOARD_ENABLED", "false")
	t.Setenv("INSPIRATION_CLIPBOARD_INTERVAL", "250ms")
	t.Setenv("INSPIRATION_DEDUPE_TTL", "1h")
	t.Setenv("INSPIRATION_DEDUPE_ENABLED", "not-a-bool")
	t.Setenv("INSPIRATION_LOG_LEVEL", "debug")
	t.Setenv("INSPIRATION_IPC_SOCKET", "/tmp/custom.sock")
	t.Setenv("INSPIRATION_HOTKEY_QUICK_INPUT", "win+i")

	cfg, err := Load(filepath.Join(tempDir, "config.yaml"))
	require.NoError(t, err)

	assert.False(t, cfg.Clipboard.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Clipboard.CheckInterval)
	assert.Equal(t, time.Hour, cfg.Dedupe.TTL)
	assert.True(t, cfg.Dedupe.Enabled, "unparseable values are ignored")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/custom.sock", cfg.IPC.SocketPath)
	assert.Equal(t, "win+i", cfg.Hotkeys.QuickInput)
}

func TestValidate(t *testing.T) {
	setupDirs(t)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero interval", func(c *Config) { c.Clipboard.CheckInterval = 0 }, "check_interval"},
		{"negative min", func(c *Config) { c.Clipboard.MinLength = -1 }, "min_length"},
		{"min above max", func(c *Config) { c.Clipboard.MinLength = 10; c.Clipboard.MaxLength = 5 }, "exceeds"},
		{"zero ttl", func(c *Config) { c.Dedupe.TTL = 0 }, "dedupe.ttl"},
		{"zero prune interval", func(c *Config) { c.Dedupe.PruneInterval = 0 }, "prune_interval"},
		{"zero watchdog poll", func(c *Config) { c.Watchdog.PollInterval = 0 }, "watchdog.poll_interval"},
		{"negative restart delay", func(c *Config) { c.Watchdog.RestartDelay = -time.Second }, "restart_delay"},
		{"zero restart delay", func(c *Config) { c.Watchdog.RestartDelay = 0 }, ""},
		{"no workers", func(c *Config) { c.Workers.MaxConcurrent = 0 }, "max_concurrent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSave_WritesDurationsAsStrings(t *testing.T) {
	tempDir := setupDirs(t)
	configPath := filepath.Join(tempDir, "nested", "dir", "config.yaml")

	require.NoError(t, DefaultConfig().Save(configPath))

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var doc map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, "1s", doc["clipboard"]["check_interval"])
	assert.Equal(t, "48h0m0s", doc["dedupe"]["ttl"])
}

func TestWatch_DeliversReloadedConfig(t *testing.T) {
	tempDir := setupDirs(t)
	configPath := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, DefaultConfig().Save(configPath))

	var (
		mu  sync.Mutex
		got []*Config
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, configPath, nil, func(c *Config) {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
		})
	}()

	// give the watcher a moment to register before writing
	time.Sleep(100 * time.Millisecond)

	cfg := DefaultConfig()
	cfg.Clipboard.Enabled = false
	require.NoError(t, cfg.Save(configPath))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && !got[len(got)-1].Clipboard.Enabled
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
