// Package app wires the capture pipeline together: global hotkeys and the
// clipboard monitor produce content events, the dedupe store filters
// repeats, and a Router delivers what is left.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/clipboard"
	"github.com/berrythewa/inspiration-daemon/internal/config"
	"github.com/berrythewa/inspiration-daemon/internal/dedupe"
	"github.com/berrythewa/inspiration-daemon/internal/hotkey"
	"github.com/berrythewa/inspiration-daemon/internal/ipc"
	"github.com/berrythewa/inspiration-daemon/internal/notify"
	"github.com/berrythewa/inspiration-daemon/internal/storage"
	"github.com/berrythewa/inspiration-daemon/internal/types"
	"github.com/berrythewa/inspiration-daemon/internal/worker"
)

const (
	routeTimeout        = 30 * time.Second
	statusCheckInterval = 2 * time.Minute
	previewLen          = 30
)

// Options configures an App. Only Config is required.
type Options struct {
	Config *config.Config
	// ConfigPath enables hot reload of the config file when set.
	ConfigPath string
	Logger     *zap.Logger
	Clock      clock.Clock

	// Router receives content events. Nil routes into the local inbox.
	Router    types.Router
	Hook      hotkey.Hook
	Clipboard clipboard.Clipboard
	Notifier  notify.Notifier
}

// App owns every long-running component of the daemon.
type App struct {
	logger     *zap.Logger
	clock      clock.Clock
	configPath string

	cfgMu sync.Mutex
	cfg   *config.Config

	pool      *worker.Pool
	listener  *hotkey.Listener
	monitor   *clipboard.Monitor
	dedupe    *dedupe.Store
	inbox     *storage.Inbox
	router    types.Router
	notifier  notify.Notifier
	clipboard clipboard.Clipboard

	// monitorMu orders monitor start/stop from toggles and reloads against
	// shutdown; once stopped is set nothing restarts the monitor.
	monitorMu sync.Mutex
	stopped   bool

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	bg      sync.WaitGroup
	started bool

	// ctxMu guards ctx separately from lifeMu: Stop holds lifeMu while
	// waiting for pool tasks that read ctx.
	ctxMu sync.Mutex
	ctx   context.Context
}

// Status is what the daemon reports over IPC.
type Status struct {
	Hotkeys          hotkey.Status `json:"hotkeys"`
	ClipboardEnabled bool          `json:"clipboard_enabled"`
	Dedupe           dedupe.Stats  `json:"dedupe"`
	InboxCount       *int          `json:"inbox_count,omitempty"`
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	a := &App{
		logger:     logger,
		clock:      clk,
		configPath: opts.ConfigPath,
		cfg:        cfg,
		clipboard:  opts.Clipboard,
		notifier:   opts.Notifier,
		router:     opts.Router,
		ctx:        context.Background(),
	}
	if a.clipboard == nil {
		a.clipboard = clipboard.NewClipboard()
	}
	if a.notifier == nil {
		a.notifier = notify.NewDesktop(cfg.Notify.Enabled, logger.Named("notify"))
	}
	if a.router == nil {
		inbox, err := storage.OpenInbox(storage.InboxConfig{
			DBPath: cfg.Inbox.Path,
			Logger: logger.Named("inbox"),
		})
		if err != nil {
			return nil, err
		}
		a.inbox = inbox
		a.router = storage.NewInboxRouter(inbox)
	}

	a.pool = worker.NewPool(cfg.Workers.MaxConcurrent, logger.Named("worker"))

	a.dedupe = dedupe.Open(cfg.Dedupe.Path, cfg.Dedupe.TTL, cfg.Dedupe.Enabled,
		dedupe.WithClock(clk),
		dedupe.WithLogger(logger.Named("dedupe")))

	a.listener = hotkey.NewListener(hotkey.Options{
		Hook:   opts.Hook,
		Pool:   a.pool,
		Clock:  clk,
		Logger: logger.Named("hotkey"),
		Watchdog: hotkey.WatchdogConfig{
			PollInterval:       cfg.Watchdog.PollInterval,
			NoTriggerTimeout:   cfg.Watchdog.NoTriggerTimeout,
			IdleTriggerTimeout: cfg.Watchdog.IdleTriggerTimeout,
			NoActivityTimeout:  cfg.Watchdog.NoActivityTimeout,
			RestartDelay:       cfg.Watchdog.RestartDelay,
		},
	})
	a.listener.Register(cfg.Hotkeys.QuickInput, a.QuickCapture)
	a.listener.Register(cfg.Hotkeys.ToggleClipboard, func() { a.ToggleClipboard() })

	a.monitor = clipboard.NewMonitor(clipboard.MonitorConfig{
		CheckInterval: cfg.Clipboard.CheckInterval,
		MinLength:     cfg.Clipboard.MinLength,
		MaxLength:     cfg.Clipboard.MaxLength,
		HistorySize:   cfg.Clipboard.HistorySize,
	}, a.HandleClipboard,
		clipboard.WithClipboard(a.clipboard),
		clipboard.WithPool(a.pool),
		clipboard.WithClock(clk),
		clipboard.WithLogger(logger.Named("clipboard")))

	return a, nil
}

func (a *App) currentConfig() *config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

// Start launches every component. Missing global hotkey support is logged
// and tolerated; any other hook failure is returned.
func (a *App) Start(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	if a.started {
		return nil
	}
	cfg := a.currentConfig()

	if err := a.listener.Start(); err != nil {
		if !errors.Is(err, hotkey.ErrUnsupported) {
			return fmt.Errorf("failed to start hotkey listener: %w", err)
		}
		a.logger.Warn("Global hotkeys are not available on this platform", zap.Error(err))
	}

	a.monitorMu.Lock()
	a.stopped = false
	if cfg.Clipboard.Enabled {
		a.monitor.Start()
	}
	a.monitorMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	a.ctxMu.Lock()
	a.ctx = runCtx
	a.ctxMu.Unlock()
	a.cancel = cancel
	a.started = true

	a.goBackground("dedupe-pruner", func(ctx context.Context) {
		a.dedupe.RunPruner(ctx, cfg.Dedupe.PruneInterval)
	})
	a.goBackground("hotkey-status", a.statusCheck)
	if cfg.IPC.SocketPath != "" {
		a.goBackground("ipc", func(ctx context.Context) {
			if err := ipc.ListenAndServe(ctx, cfg.IPC.SocketPath, a.HandleIPC, a.logger.Named("ipc")); err != nil {
				a.logger.Warn("IPC server unavailable", zap.Error(err))
			}
		})
	}
	if a.configPath != "" {
		a.goBackground("config-watch", func(ctx context.Context) {
			if err := config.Watch(ctx, a.configPath, a.logger.Named("config"), a.ApplyConfig); err != nil {
				a.logger.Warn("Config hot reload unavailable", zap.Error(err))
			}
		})
	}

	a.logger.Info("Capture pipeline started",
		zap.String("quick_input", cfg.Hotkeys.QuickInput),
		zap.String("toggle_clipboard", cfg.Hotkeys.ToggleClipboard),
		zap.Bool("clipboard_enabled", cfg.Clipboard.Enabled),
		zap.Bool("dedupe_enabled", cfg.Dedupe.Enabled))
	return nil
}

func (a *App) goBackground(name string, fn func(ctx context.Context)) {
	ctx := a.baseContext()
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn(ctx)
		a.logger.Debug("Background task exited", zap.String("task", name))
	}()
}

// Stop shuts everything down. It is safe to call more than once.
func (a *App) Stop() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	a.monitorMu.Lock()
	a.stopped = true
	a.monitor.Stop()
	a.monitorMu.Unlock()

	if a.started {
		a.cancel()
		a.listener.Stop()
		a.bg.Wait()
		a.pool.Wait()
		a.started = false
	}

	if a.inbox != nil {
		if err := a.inbox.Close(); err != nil {
			a.logger.Warn("Failed to close inbox", zap.Error(err))
		}
		a.inbox = nil
	}
	a.logger.Info("Capture pipeline stopped")
}

// Run starts the app and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.Stop()
		return err
	}
	<-ctx.Done()
	a.Stop()
	return nil
}

func (a *App) baseContext() context.Context {
	a.ctxMu.Lock()
	defer a.ctxMu.Unlock()
	return a.ctx
}

// HandleClipboard routes text seen by the clipboard monitor unless it was
// already delivered within the dedupe window. The fingerprint is only
// marked after the router accepts the event, so a failed delivery is
// retried the next time the same text is copied.
func (a *App) HandleClipboard(text string) {
	decision := a.dedupe.Check(text)
	if decision.IsDuplicate {
		fields := []zap.Field{zap.String("fingerprint", decision.Fingerprint)}
		if decision.AgeSeconds != nil {
			fields = append(fields, zap.Int64("age_seconds", *decision.AgeSeconds))
		}
		a.logger.Info("Skipping duplicate clipboard content", fields...)
		return
	}

	ev := types.NewEvent(types.SourceClipboard, text, decision.Fingerprint, a.clock.Now())
	if !a.route(ev) {
		return
	}

	if err := a.dedupe.MarkFingerprint(decision.Fingerprint); err != nil {
		a.logger.Warn("Failed to persist dedupe cache", zap.Error(err))
	}
	a.notifier.Notify("Captured", ev.Preview(previewLen))
}

// QuickCapture routes whatever is on the clipboard right now. It is bound
// to the quick input hotkey and bypasses the dedupe check, since the user
// asked for it explicitly.
func (a *App) QuickCapture() {
	text, err := a.clipboard.Read()
	if err != nil {
		a.logger.Error("Quick capture failed to read clipboard", zap.Error(err))
		a.notifier.Notify("Capture failed", "Could not read the clipboard")
		return
	}
	if strings.TrimSpace(text) == "" {
		a.logger.Info("Quick capture ignored unusable clipboard content")
		a.notifier.Notify("Nothing captured", "The clipboard has no usable text")
		return
	}

	fp := dedupe.Fingerprint(text)
	ev := types.NewEvent(types.SourceHotkey, text, fp, a.clock.Now())
	if !a.route(ev) {
		a.notifier.Notify("Capture failed", ev.Preview(previewLen))
		return
	}
	// keep the clipboard path from delivering the same text again
	if err := a.dedupe.MarkFingerprint(fp); err != nil {
		a.logger.Warn("Failed to persist dedupe cache", zap.Error(err))
	}
	a.notifier.Notify("Captured", ev.Preview(previewLen))
}

func (a *App) route(ev types.ContentEvent) bool {
	ctx, cancel := context.WithTimeout(a.baseContext(), routeTimeout)
	defer cancel()

	if err := a.router.Route(ctx, ev); err != nil {
		a.logger.Error("Failed to route content",
			zap.String("id", ev.ID),
			zap.String("source", string(ev.Source)),
			zap.Error(err))
		return false
	}
	a.logger.Info("Content routed",
		zap.String("id", ev.ID),
		zap.String("source", string(ev.Source)),
		zap.String("preview", ev.Preview(previewLen)))
	return true
}

// ToggleClipboard flips clipboard monitoring and returns the new state.
func (a *App) ToggleClipboard() bool {
	a.monitorMu.Lock()
	if a.stopped {
		a.monitorMu.Unlock()
		a.logger.Debug("Ignoring clipboard toggle after shutdown")
		return false
	}
	enabled := a.monitor.Toggle()
	a.monitorMu.Unlock()

	state := "off"
	if enabled {
		state = "on"
	}
	a.logger.Info("Clipboard monitoring toggled", zap.Bool("enabled", enabled))
	a.notifier.Notify("Clipboard monitor", "Clipboard monitoring is "+state)
	return enabled
}

// ApplyConfig applies the settings that can change at runtime. Hotkey and
// path changes take effect after a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	a.monitorMu.Lock()
	if !a.stopped && cfg.Clipboard.Enabled != a.monitor.Enabled() {
		if cfg.Clipboard.Enabled {
			a.monitor.Start()
		} else {
			a.monitor.Stop()
		}
	}
	a.monitorMu.Unlock()
	a.dedupe.SetEnabled(cfg.Dedupe.Enabled)
	if n, ok := a.notifier.(interface{ SetEnabled(bool) }); ok {
		n.SetEnabled(cfg.Notify.Enabled)
	}

	if old.Hotkeys != cfg.Hotkeys {
		a.logger.Warn("Hotkey changes take effect after restart",
			zap.String("quick_input", cfg.Hotkeys.QuickInput),
			zap.String("toggle_clipboard", cfg.Hotkeys.ToggleClipboard))
	}
	a.logger.Info("Applied config",
		zap.Bool("clipboard_enabled", cfg.Clipboard.Enabled),
		zap.Bool("dedupe_enabled", cfg.Dedupe.Enabled),
		zap.Bool("notify_enabled", cfg.Notify.Enabled))
	a.notifier.Notify("Settings updated", "Configuration reloaded")
}

// Status collects a snapshot of every component.
func (a *App) Status() Status {
	st := Status{
		Hotkeys:          a.listener.Status(),
		ClipboardEnabled: a.monitor.Enabled(),
		Dedupe:           a.dedupe.Stats(),
	}
	if a.inbox != nil {
		if n, err := a.inbox.Count(); err == nil {
			st.InboxCount = &n
		}
	}
	return st
}

// History returns recent clipboard captures, newest last.
func (a *App) History(limit int) []string {
	return a.monitor.GetHistory(limit)
}

// HandleIPC answers control requests from the CLI.
func (a *App) HandleIPC(req *ipc.Request) *ipc.Response {
	switch req.Command {
	case ipc.CmdStatus:
		return ipc.OK(a.Status())
	case ipc.CmdHistory:
		return ipc.OK(map[string]interface{}{
			"items": a.History(req.IntArg("limit", 20)),
		})
	case ipc.CmdToggle:
		return ipc.OK(map[string]interface{}{
			"enabled": a.ToggleClipboard(),
		})
	default:
		return ipc.Errorf("unknown command %q", req.Command)
	}
}

// statusCheck periodically logs listener health, mostly so a dead hook
// shows up in the logs between watchdog restarts.
func (a *App) statusCheck(ctx context.Context) {
	ticker := a.clock.Ticker(statusCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := a.listener.Status()
			if st.Running && !st.Alive {
				a.logger.Warn("Hotkey listener is not alive",
					zap.String("phase", string(st.Phase)),
					zap.Int("restart_count", st.RestartCount))
				continue
			}
			a.logger.Debug("Hotkey listener healthy",
				zap.Int("restart_count", st.RestartCount),
				zap.Int64p("last_trigger_seconds_ago", st.LastTriggerSecondsAgo),
				zap.Int64p("last_activity_seconds_ago", st.LastActivitySecondsAgo))
		}
	}
}
