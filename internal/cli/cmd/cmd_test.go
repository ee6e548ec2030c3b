package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/inspiration-daemon/internal/dedupe"
	"github.com/berrythewa/inspiration-daemon/internal/storage"
	"github.com/berrythewa/inspiration-daemon/internal/types"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cli-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	t.Setenv("INSPIRATION_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("INSPIRATION_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("INSPIRATION_LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "today", "abc123")
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    1.2.3")
	assert.Contains(t, out, "Commit:     abc123")
}

func TestConfigCommands(t *testing.T) {
	dir := setupEnv(t)
	configPath := filepath.Join(dir, "config", "config.yaml")

	out, err := execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, configPath+"\n", out)

	out, err = execute(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized")
	assert.FileExists(t, configPath)

	_, err = execute(t, "", "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "", "config", "init", "--force")
	assert.NoError(t, err)

	out, err = execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "quick_input: ctrl+shift+space")

	out, err = execute(t, "", "config", "show", "--json")
	require.NoError(t, err)
	var shown map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Contains(t, shown, "dedupe")
}

func TestConfigFlagOverridesPath(t *testing.T) {
	dir := setupEnv(t)
	custom := filepath.Join(dir, "elsewhere.yaml")

	out, err := execute(t, "", "--config", custom, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, custom+"\n", out)
}

func TestDedupeCommands(t *testing.T) {
	dir := setupEnv(t)
	cachePath := filepath.Join(dir, "data", "clipboard_dedupe.json")

	store := dedupe.Open(cachePath, 48*time.Hour, true)
	require.NoError(t, store.MarkFingerprint(dedupe.Fingerprint("already captured text")))

	out, err := execute(t, "", "dedupe", "check", "already", "captured", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Duplicate:   yes")

	out, err = execute(t, "brand new text from stdin", "dedupe", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Duplicate:   no")
	assert.Contains(t, out, dedupe.Fingerprint("brand new text from stdin"))

	out, err = execute(t, "", "dedupe", "stats", "--json")
	require.NoError(t, err)
	var st dedupe.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, cachePath, st.Path)

	out, err = execute(t, "", "dedupe", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 expired entries")
}

func TestDedupePrune_RemovesExpiredOnly(t *testing.T) {
	dir := setupEnv(t)
	cachePath := filepath.Join(dir, "data", "clipboard_dedupe.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(cachePath), 0755))

	now := float64(time.Now().Unix())
	seed := map[string]interface{}{
		"version":     1,
		"ttl_seconds": 172800,
		"items": map[string]float64{
			dedupe.Fingerprint("copied last week"): now - 7*24*3600,
			dedupe.Fingerprint("copied just now"):  now,
		},
	}
	raw, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cachePath, raw, 0644))

	// inspection leaves the file untouched
	out, err := execute(t, "", "dedupe", "check", "copied", "last", "week")
	require.NoError(t, err)
	assert.Contains(t, out, "expired")
	_, err = execute(t, "", "dedupe", "stats")
	require.NoError(t, err)
	onDisk, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, raw, onDisk)

	out, err = execute(t, "", "dedupe", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 expired entries")

	out, err = execute(t, "", "dedupe", "stats", "--json")
	require.NoError(t, err)
	var st dedupe.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 1, st.Entries)
}

func TestInboxList(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "", "inbox", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Inbox is empty")

	inbox, err := storage.OpenInbox(storage.InboxConfig{DBPath: filepath.Join(dir, "data", "inbox.db")})
	require.NoError(t, err)
	require.NoError(t, inbox.Save(types.NewEvent(types.SourceClipboard, "first\ncaptured   idea", "fp1", time.Now().Add(-time.Minute))))
	require.NoError(t, inbox.Save(types.NewEvent(types.SourceHotkey, "second idea", "fp2", time.Now())))
	require.NoError(t, inbox.Close())

	out, err = execute(t, "", "inbox", "list", "-n", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first captured idea")
	assert.Contains(t, lines[1], "hotkey")

	out, err = execute(t, "", "inbox", "list", "--json", "-n", "1")
	require.NoError(t, err)
	var events []types.ContentEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "second idea", events[0].Text)
}

func TestStatus_NoDaemon(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("INSPIRATION_IPC_SOCKET", filepath.Join(dir, "absent.sock"))

	_, err := execute(t, "", "status")
	assert.Error(t, err)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc ", 80))
	assert.Equal(t, "abcdefg...", oneLine("abcdefghijklmnop", 10))
}

func TestStop_NoDaemon(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "stop")
	assert.ErrorContains(t, err, "not running")
}
