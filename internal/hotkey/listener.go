package hotkey

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/worker"
)

// Phase is the watchdog state of a Listener.
type Phase string

const (
	PhaseStopped    Phase = "stopped"
	PhaseStarting   Phase = "starting"
	PhaseRunning    Phase = "running"
	PhaseRestarting Phase = "restarting"
)

// Reasons the watchdog gives for restarting the hook, in evaluation order.
const (
	reasonHookDead       = "hook thread not alive"
	reasonNeverTriggered = "no trigger since start"
	reasonTriggerIdle    = "no trigger since last trigger"
	reasonNoActivity     = "no keyboard activity"
)

// releaseDelay postpones removal of non-modifier keys on key-up, since the
// OS can deliver the release just before the combo check runs.
const releaseDelay = 50 * time.Millisecond

// WatchdogConfig tunes liveness detection for the keyboard hook.
// Non-positive durations fall back to DefaultWatchdogConfig, except
// RestartDelay where zero means reinstall immediately.
type WatchdogConfig struct {
	PollInterval       time.Duration
	NoTriggerTimeout   time.Duration
	IdleTriggerTimeout time.Duration
	NoActivityTimeout  time.Duration
	RestartDelay       time.Duration
	StopTimeout        time.Duration
}

// DefaultWatchdogConfig returns the production watchdog timings.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		PollInterval:       10 * time.Second,
		NoTriggerTimeout:   5 * time.Minute,
		IdleTriggerTimeout: 10 * time.Minute,
		NoActivityTimeout:  2 * time.Minute,
		RestartDelay:       500 * time.Millisecond,
		StopTimeout:        2 * time.Second,
	}
}

func (c WatchdogConfig) withDefaults() WatchdogConfig {
	d := DefaultWatchdogConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.NoTriggerTimeout <= 0 {
		c.NoTriggerTimeout = d.NoTriggerTimeout
	}
	if c.IdleTriggerTimeout <= 0 {
		c.IdleTriggerTimeout = d.IdleTriggerTimeout
	}
	if c.NoActivityTimeout <= 0 {
		c.NoActivityTimeout = d.NoActivityTimeout
	}
	if c.RestartDelay < 0 {
		c.RestartDelay = 0
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	return c
}

// Options configures a Listener. Nil Hook, Pool, Clock and Logger get
// defaults; see WatchdogConfig for how its zero values are treated.
type Options struct {
	Hook     Hook
	Pool     *worker.Pool
	Clock    clock.Clock
	Logger   *zap.Logger
	Watchdog WatchdogConfig
}

// runtimeState is everything the hook callback and the watchdog share.
// It is rebuilt on every restart; only restartCount carries over.
type runtimeState struct {
	running           bool
	phase             Phase
	startedAt         time.Time
	lastKeyActivityAt *time.Time
	lastTriggerAt     *time.Time
	restartCount      int
	pressedKeys       map[string]struct{}
	pendingReleases   map[string]*clock.Timer
}

func newRuntimeState(now time.Time) runtimeState {
	return runtimeState{
		phase:           PhaseStarting,
		startedAt:       now,
		pressedKeys:     make(map[string]struct{}),
		pendingReleases: make(map[string]*clock.Timer),
	}
}

// Status is a read-only view of a Listener for diagnostics.
type Status struct {
	Running                bool     `json:"running"`
	Alive                  bool     `json:"alive"`
	Phase                  Phase    `json:"phase"`
	RestartCount           int      `json:"restart_count"`
	UptimeSeconds          int64    `json:"uptime_seconds"`
	LastActivitySecondsAgo *int64   `json:"last_activity_seconds_ago"`
	LastTriggerSecondsAgo  *int64   `json:"last_trigger_seconds_ago"`
	Combos                 []string `json:"combos"`
}

// Listener detects registered key combinations system-wide and runs their
// handlers on the worker pool. A watchdog goroutine infers whether the OS
// hook is still delivering events and reinstalls it when it looks dead.
type Listener struct {
	hook   Hook
	pool   *worker.Pool
	clock  clock.Clock
	logger *zap.Logger
	wd     WatchdogConfig

	bindingsMu sync.RWMutex
	bindings   map[string]func()

	// lifeMu serializes Start, Stop and watchdog restarts. It is never held
	// by the hook callback, so Uninstall can wait for the hook thread.
	lifeMu sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}

	mu    sync.Mutex
	state runtimeState
}

// NewListener creates a stopped listener.
func NewListener(opts Options) *Listener {
	if opts.Hook == nil {
		opts.Hook = NewHook()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Pool == nil {
		opts.Pool = worker.NewPool(0, opts.Logger)
	}

	l := &Listener{
		hook:     opts.Hook,
		pool:     opts.Pool,
		clock:    opts.Clock,
		logger:   opts.Logger,
		wd:       opts.Watchdog.withDefaults(),
		bindings: make(map[string]func()),
	}
	l.state = newRuntimeState(l.clock.Now())
	l.state.phase = PhaseStopped
	return l
}

// Register binds handler to combo. An empty combo is ignored; registering
// a combo that canonicalizes to an existing one replaces its handler.
func (l *Listener) Register(combo string, handler func()) {
	canonical := Canonicalize(combo)
	if canonical == "" || handler == nil {
		l.logger.Warn("Ignoring empty hotkey registration", zap.String("combo", combo))
		return
	}

	l.bindingsMu.Lock()
	_, replaced := l.bindings[canonical]
	l.bindings[canonical] = handler
	l.bindingsMu.Unlock()

	l.logger.Info("Registered hotkey",
		zap.String("combo", combo),
		zap.String("canonical", canonical),
		zap.Bool("replaced", replaced))
}

// Start installs the hook and launches the watchdog. Calling Start on a
// running listener is a no-op. A hook that cannot be installed is reported
// as a *HookInstallError.
func (l *Listener) Start() error {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	l.mu.Lock()
	if l.state.running {
		l.mu.Unlock()
		l.logger.Warn("Hotkey listener already running")
		return nil
	}
	restarts := l.state.restartCount
	l.state = newRuntimeState(l.clock.Now())
	l.state.restartCount = restarts
	l.mu.Unlock()

	if err := l.hook.Install(l.handleKeyEvent); err != nil {
		l.mu.Lock()
		l.state.phase = PhaseStopped
		l.mu.Unlock()
		return &HookInstallError{Err: err}
	}

	l.mu.Lock()
	l.state.running = true
	l.state.phase = PhaseRunning
	l.mu.Unlock()

	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.watchdog(l.stopCh, l.doneCh)

	l.logger.Info("Hotkey listener started",
		zap.Strings("combos", l.combos()),
		zap.Duration("watchdog_interval", l.wd.PollInterval))
	return nil
}

// Stop removes the hook and stops the watchdog. It waits for the watchdog
// for at most the configured stop timeout.
func (l *Listener) Stop() {
	l.lifeMu.Lock()

	l.mu.Lock()
	if !l.state.running {
		l.mu.Unlock()
		l.lifeMu.Unlock()
		return
	}
	l.state.running = false
	l.state.phase = PhaseStopped
	l.clearPressedLocked()
	l.mu.Unlock()

	close(l.stopCh)
	done := l.doneCh

	if err := l.hook.Uninstall(); err != nil {
		l.logger.Warn("Failed to remove keyboard hook", zap.Error(err))
	}
	l.lifeMu.Unlock()

	select {
	case <-done:
	case <-time.After(l.wd.StopTimeout):
		l.logger.Warn("Hotkey watchdog did not exit in time, abandoning it",
			zap.Duration("timeout", l.wd.StopTimeout))
	}

	l.logger.Info("Hotkey listener stopped")
}

// IsAlive reports whether the listener is running and its hook thread is up.
func (l *Listener) IsAlive() bool {
	l.mu.Lock()
	running := l.state.running
	l.mu.Unlock()
	return running && l.hook.Alive()
}

// Status returns a diagnostic snapshot.
func (l *Listener) Status() Status {
	now := l.clock.Now()

	l.mu.Lock()
	st := Status{
		Running:      l.state.running,
		Phase:        l.state.phase,
		RestartCount: l.state.restartCount,
	}
	if l.state.running {
		st.UptimeSeconds = int64(now.Sub(l.state.startedAt).Seconds())
	}
	st.LastActivitySecondsAgo = secondsSince(now, l.state.lastKeyActivityAt)
	st.LastTriggerSecondsAgo = secondsSince(now, l.state.lastTriggerAt)
	l.mu.Unlock()

	st.Alive = st.Running && l.hook.Alive()
	st.Combos = l.combos()
	return st
}

func secondsSince(now time.Time, t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	s := int64(now.Sub(*t).Seconds())
	return &s
}

func (l *Listener) combos() []string {
	l.bindingsMu.RLock()
	defer l.bindingsMu.RUnlock()

	out := make([]string, 0, len(l.bindings))
	for c := range l.bindings {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (l *Listener) lookup(combo string) (func(), bool) {
	l.bindingsMu.RLock()
	defer l.bindingsMu.RUnlock()
	h, ok := l.bindings[combo]
	return h, ok
}

// handleKeyEvent runs on the hook thread and must not block.
func (l *Listener) handleKeyEvent(ev KeyEvent) {
	key := NormalizeKey(ev.Key)
	if key == "" {
		return
	}
	now := l.clock.Now()

	l.mu.Lock()
	if !l.state.running {
		l.mu.Unlock()
		return
	}
	l.state.lastKeyActivityAt = &now

	if !ev.Down {
		l.releaseLocked(key)
		l.mu.Unlock()
		return
	}

	if t, ok := l.state.pendingReleases[key]; ok {
		t.Stop()
		delete(l.state.pendingReleases, key)
	}
	// Auto-repeat, or a re-press inside the release grace period.
	if _, held := l.state.pressedKeys[key]; held {
		l.mu.Unlock()
		return
	}
	l.state.pressedKeys[key] = struct{}{}

	pressed := make([]string, 0, len(l.state.pressedKeys))
	for k := range l.state.pressedKeys {
		pressed = append(pressed, k)
	}
	combo := CanonicalizeKeys(pressed)
	handler, matched := l.lookup(combo)
	if matched {
		l.state.lastTriggerAt = &now
	}
	l.mu.Unlock()

	if matched {
		l.logger.Info("Hotkey triggered", zap.String("combo", combo))
		l.pool.Submit("hotkey:"+combo, handler)
	}
}

func (l *Listener) releaseLocked(key string) {
	if _, held := l.state.pressedKeys[key]; !held {
		return
	}
	if IsModifier(key) {
		delete(l.state.pressedKeys, key)
		return
	}

	if t, ok := l.state.pendingReleases[key]; ok {
		t.Stop()
	}
	var t *clock.Timer
	t = l.clock.AfterFunc(releaseDelay, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.state.pendingReleases[key] == t {
			delete(l.state.pendingReleases, key)
			delete(l.state.pressedKeys, key)
		}
	})
	l.state.pendingReleases[key] = t
}

func (l *Listener) clearPressedLocked() {
	for k, t := range l.state.pendingReleases {
		t.Stop()
		delete(l.state.pendingReleases, k)
	}
	for k := range l.state.pressedKeys {
		delete(l.state.pressedKeys, k)
	}
}

func (l *Listener) watchdog(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := l.clock.Ticker(l.wd.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.tick(stop)
		}
	}
}

// tick runs one watchdog check and restarts the hook when any liveness
// condition fails. It returns true when a restart was performed.
func (l *Listener) tick(stop <-chan struct{}) bool {
	reason := l.diagnose()
	if reason == "" {
		return false
	}
	l.logger.Warn("Keyboard hook looks dead, restarting", zap.String("reason", reason))
	return l.restart(stop, reason)
}

// diagnose evaluates the restart conditions, preferring the direct
// thread-death signal over the activity heuristics.
func (l *Listener) diagnose() string {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.running || l.state.phase != PhaseRunning {
		return ""
	}
	if !l.hook.Alive() {
		return reasonHookDead
	}
	if l.state.lastTriggerAt == nil && now.Sub(l.state.startedAt) > l.wd.NoTriggerTimeout {
		return reasonNeverTriggered
	}
	if l.state.lastTriggerAt != nil && now.Sub(*l.state.lastTriggerAt) > l.wd.IdleTriggerTimeout {
		return reasonTriggerIdle
	}
	activity := l.state.startedAt
	if l.state.lastKeyActivityAt != nil {
		activity = *l.state.lastKeyActivityAt
	}
	if now.Sub(activity) > l.wd.NoActivityTimeout {
		return reasonNoActivity
	}
	return ""
}

func (l *Listener) restart(stop <-chan struct{}, reason string) bool {
	l.lifeMu.Lock()
	l.mu.Lock()
	if !l.state.running {
		l.mu.Unlock()
		l.lifeMu.Unlock()
		return false
	}
	l.state.phase = PhaseRestarting
	l.clearPressedLocked()
	l.mu.Unlock()

	if err := l.hook.Uninstall(); err != nil {
		l.logger.Debug("Ignoring hook teardown error", zap.Error(err))
	}
	l.lifeMu.Unlock()

	if l.wd.RestartDelay > 0 {
		select {
		case <-stop:
			return false
		case <-l.clock.After(l.wd.RestartDelay):
		}
	}

	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	l.mu.Lock()
	if !l.state.running {
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()

	if err := l.hook.Install(l.handleKeyEvent); err != nil {
		// Leave the phase at running; the dead hook is caught on the next tick.
		l.mu.Lock()
		l.state.phase = PhaseRunning
		l.mu.Unlock()
		l.logger.Error("Failed to reinstall keyboard hook", zap.String("reason", reason), zap.Error(err))
		return false
	}

	l.mu.Lock()
	count := l.state.restartCount + 1
	l.state = newRuntimeState(l.clock.Now())
	l.state.running = true
	l.state.phase = PhaseRunning
	l.state.restartCount = count
	l.mu.Unlock()

	l.logger.Info("Keyboard hook restarted",
		zap.String("reason", reason),
		zap.Int("restart_count", count))
	return true
}
