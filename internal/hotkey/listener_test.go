package hotkey

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/worker"
)

type fakeHook struct {
	mu         sync.Mutex
	handler    func(KeyEvent)
	alive      bool
	installs   int
	uninstalls int
	installErr error
}

func (f *fakeHook) Install(h func(KeyEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.installErr != nil {
		return f.installErr
	}
	f.handler = h
	f.alive = true
	f.installs++
	return nil
}

func (f *fakeHook) Uninstall() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
	f.alive = false
	f.uninstalls++
	return nil
}

func (f *fakeHook) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

// kill simulates the OS silently dropping the hook thread.
func (f *fakeHook) kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
}

func (f *fakeHook) counts() (installs, uninstalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs, f.uninstalls
}

func (f *fakeHook) send(key string, down bool) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(KeyEvent{Key: key, Down: down})
	}
}

type listenerFixture struct {
	l     *Listener
	hook  *fakeHook
	clock *clock.Mock
	pool  *worker.Pool
}

func newFixture(t *testing.T) *listenerFixture {
	t.Helper()
	hook := &fakeHook{}
	mock := clock.NewMock()
	pool := worker.NewPool(4, zap.NewNop())
	l := NewListener(Options{
		Hook:  hook,
		Pool:  pool,
		Clock: mock,
		Watchdog: WatchdogConfig{
			// long enough that advancing the mock clock never fires the loop
			PollInterval: 24 * time.Hour,
		},
	})
	t.Cleanup(l.Stop)
	return &listenerFixture{l: l, hook: hook, clock: mock, pool: pool}
}

func (f *listenerFixture) press(keys ...string) {
	for _, k := range keys {
		f.hook.send(k, true)
	}
}

func (f *listenerFixture) release(keys ...string) {
	for _, k := range keys {
		f.hook.send(k, false)
	}
}

// settle flushes delayed key releases and waits for them to apply.
func (f *listenerFixture) settle(t *testing.T) {
	t.Helper()
	f.clock.Add(2 * releaseDelay)
	require.Eventually(t, func() bool {
		f.l.mu.Lock()
		defer f.l.mu.Unlock()
		return len(f.l.state.pendingReleases) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestListener_TriggersOncePerPhysicalPress(t *testing.T) {
	f := newFixture(t)

	var calls int32
	f.l.Register("Ctrl+Shift+Space", func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, f.l.Start())

	f.press("lcontrol", "lshift", "space")
	f.pool.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// releasing everything and pressing only space must not fire
	f.release("space", "lshift", "lcontrol")
	f.settle(t)
	f.press("space")
	f.pool.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// the full chord again fires again
	f.release("space")
	f.settle(t)
	f.press("lcontrol", "lshift", "space")
	f.pool.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListener_BusyPoolStillRunsHandler(t *testing.T) {
	f := newFixture(t)

	var calls int32
	f.l.Register("ctrl+shift+space", func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, f.l.Start())

	release := make(chan struct{})
	for i := 0; i < 4; i++ {
		require.True(t, f.pool.Submit("slow", func() { <-release }))
	}

	f.press("lcontrol", "lshift", "space")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	close(release)
	f.pool.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatchdogConfig_WithDefaults(t *testing.T) {
	got := WatchdogConfig{}.withDefaults()
	want := DefaultWatchdogConfig()
	want.RestartDelay = 0
	assert.Equal(t, want, got, "zero restart delay means reinstall immediately")

	got = WatchdogConfig{RestartDelay: -time.Second}.withDefaults()
	assert.Equal(t, time.Duration(0), got.RestartDelay)
}

func TestListener_AutoRepeatDoesNotRetrigger(t *testing.T) {
	f := newFixture(t)

	var calls int32
	f.l.Register("ctrl+shift+space", func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, f.l.Start())

	f.press("lcontrol", "lshift", "space", "space", "space")
	f.pool.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// a release immediately followed by a press stays inside the grace period
	f.release("space")
	f.press("space")
	f.pool.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListener_PressOrderDoesNotMatter(t *testing.T) {
	f := newFixture(t)

	var calls int32
	f.l.Register("ctrl+shift+c", func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, f.l.Start())

	f.press("rshift", "rcontrol", "c")
	f.pool.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListener_ExtraKeyPreventsMatch(t *testing.T) {
	f := newFixture(t)

	var calls int32
	f.l.Register("ctrl+c", func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, f.l.Start())

	f.press("lshift", "lcontrol", "c")
	f.pool.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestListener_RegisterReplacesAndIgnoresEmpty(t *testing.T) {
	f := newFixture(t)

	var first, second int32
	f.l.Register("ctrl+shift+c", func() { atomic.AddInt32(&first, 1) })
	f.l.Register("shift+ctrl+c", func() { atomic.AddInt32(&second, 1) })
	f.l.Register("", func() { t.Error("empty combo must never fire") })
	f.l.Register("  ", func() { t.Error("blank combo must never fire") })
	require.NoError(t, f.l.Start())

	assert.Equal(t, []string{"control+shift+c"}, f.l.Status().Combos)

	f.press("lcontrol", "lshift", "c")
	f.pool.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
	assert.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestListener_HandlerPanicIsIsolated(t *testing.T) {
	f := newFixture(t)

	var calls int32
	f.l.Register("ctrl+q", func() {
		atomic.AddInt32(&calls, 1)
		panic("handler failure")
	})
	require.NoError(t, f.l.Start())

	f.press("lcontrol", "q")
	f.pool.Wait()
	f.release("q")
	f.settle(t)
	f.press("q")
	f.pool.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, f.l.IsAlive())
}

func TestListener_StartIsIdempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.l.Start())
	require.NoError(t, f.l.Start())

	installs, _ := f.hook.counts()
	assert.Equal(t, 1, installs)
	assert.True(t, f.l.IsAlive())
}

func TestListener_StartSurfacesInstallError(t *testing.T) {
	f := newFixture(t)
	f.hook.installErr = errors.New("access denied")

	err := f.l.Start()
	require.Error(t, err)

	var installErr *HookInstallError
	require.True(t, errors.As(err, &installErr))
	assert.EqualError(t, installErr.Err, "access denied")
	assert.False(t, f.l.IsAlive())
	assert.Equal(t, PhaseStopped, f.l.Status().Phase)
}

func TestListener_StopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.l.Register("ctrl+q", func() {})
	require.NoError(t, f.l.Start())

	f.press("lcontrol")
	f.l.Stop()
	f.l.Stop()

	_, uninstalls := f.hook.counts()
	assert.Equal(t, 1, uninstalls)
	assert.False(t, f.l.IsAlive())

	f.l.mu.Lock()
	assert.Empty(t, f.l.state.pressedKeys)
	f.l.mu.Unlock()
}

func TestWatchdog_RestartsDeadHook(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.Start())

	f.hook.kill()
	assert.False(t, f.l.IsAlive())

	assert.True(t, f.l.tick(f.l.stopCh))

	st := f.l.Status()
	assert.Equal(t, 1, st.RestartCount)
	assert.True(t, st.Running)
	assert.Equal(t, PhaseRunning, st.Phase)
	assert.True(t, f.l.IsAlive())

	installs, _ := f.hook.counts()
	assert.Equal(t, 2, installs)

	// a healthy hook is left alone
	assert.False(t, f.l.tick(f.l.stopCh))
	assert.Equal(t, 1, f.l.Status().RestartCount)
}

func TestWatchdog_Diagnose(t *testing.T) {
	tests := []struct {
		name     string
		scenario func(f *listenerFixture)
		want     string
	}{
		{
			name:     "healthy shortly after start",
			scenario: func(f *listenerFixture) { f.clock.Add(time.Minute) },
			want:     "",
		},
		{
			name:     "no keyboard activity",
			scenario: func(f *listenerFixture) { f.clock.Add(2*time.Minute + time.Second) },
			want:     reasonNoActivity,
		},
		{
			name: "typing but never triggered",
			scenario: func(f *listenerFixture) {
				f.clock.Add(4 * time.Minute)
				f.press("a")
				f.clock.Add(90 * time.Second)
			},
			want: reasonNeverTriggered,
		},
		{
			name: "trigger went stale",
			scenario: func(f *listenerFixture) {
				f.press("lcontrol", "q")
				f.clock.Add(10*time.Minute + time.Second)
			},
			want: reasonTriggerIdle,
		},
		{
			name: "dead thread wins over heuristics",
			scenario: func(f *listenerFixture) {
				f.clock.Add(time.Hour)
				f.hook.kill()
			},
			want: reasonHookDead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.l.Register("ctrl+q", func() {})
			require.NoError(t, f.l.Start())

			tt.scenario(f)
			f.pool.Wait()

			assert.Equal(t, tt.want, f.l.diagnose())
		})
	}
}

func TestWatchdog_RestartResetsActivity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.Start())

	f.clock.Add(3 * time.Minute)
	require.Equal(t, reasonNoActivity, f.l.diagnose())
	require.True(t, f.l.tick(f.l.stopCh))

	assert.Equal(t, "", f.l.diagnose())
	st := f.l.Status()
	assert.Nil(t, st.LastActivitySecondsAgo)
	assert.Nil(t, st.LastTriggerSecondsAgo)
	assert.Equal(t, int64(0), st.UptimeSeconds)
}

func TestListener_StatusReportsTimings(t *testing.T) {
	f := newFixture(t)
	f.l.Register("ctrl+q", func() {})
	require.NoError(t, f.l.Start())

	f.press("lcontrol", "q")
	f.pool.Wait()
	f.clock.Add(30 * time.Second)

	st := f.l.Status()
	require.NotNil(t, st.LastTriggerSecondsAgo)
	require.NotNil(t, st.LastActivitySecondsAgo)
	assert.Equal(t, int64(30), *st.LastTriggerSecondsAgo)
	assert.Equal(t, int64(30), *st.LastActivitySecondsAgo)
	assert.Equal(t, int64(30), st.UptimeSeconds)
	assert.True(t, st.Alive)
}
