package clipboard

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/worker"
)

const stopTimeout = 2 * time.Second

// ContentHandler receives clipboard text that passed validation.
type ContentHandler func(text string)

type MonitorConfig struct {
	CheckInterval time.Duration
	MinLength     int
	MaxLength     int
	HistorySize   int
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		CheckInterval: time.Second,
		MinLength:     10,
		MaxLength:     5000,
		HistorySize:   DefaultHistorySize,
	}
}

type MonitorOption func(*Monitor)

func WithClipboard(c Clipboard) MonitorOption {
	return func(m *Monitor) { m.clipboard = c }
}

func WithPool(p *worker.Pool) MonitorOption {
	return func(m *Monitor) { m.pool = p }
}

func WithClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

func WithLogger(l *zap.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// Monitor polls the clipboard and hands new, valid text to a handler.
type Monitor struct {
	cfg       MonitorConfig
	handler   ContentHandler
	clipboard Clipboard
	pool      *worker.Pool
	clock     clock.Clock
	logger    *zap.Logger
	history   *History

	mu          sync.Mutex
	enabled     bool
	lastContent string
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func NewMonitor(cfg MonitorConfig, handler ContentHandler, opts ...MonitorOption) *Monitor {
	d := DefaultMonitorConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = d.CheckInterval
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = d.MaxLength
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = d.HistorySize
	}

	m := &Monitor{
		cfg:     cfg,
		handler: handler,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.clipboard == nil {
		m.clipboard = NewClipboard()
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.pool == nil {
		m.pool = worker.NewPool(0, m.logger)
	}
	m.history = NewHistory(cfg.HistorySize)
	return m
}

// Start begins polling. The current clipboard value is taken as already
// seen so that text copied before startup is not captured.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled {
		m.logger.Warn("Clipboard monitor already running")
		return
	}

	seed, err := m.clipboard.Read()
	if err != nil {
		m.logger.Error("Failed to read initial clipboard content", zap.Error(err))
		seed = ""
	}
	m.lastContent = seed
	m.enabled = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.monitorClipboard(m.stopCh, m.doneCh)

	m.logger.Info("Clipboard monitor started",
		zap.Duration("interval", m.cfg.CheckInterval),
		zap.Int("min_length", m.cfg.MinLength),
		zap.Int("max_length", m.cfg.MaxLength))
}

// Stop halts polling and waits briefly for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		m.logger.Warn("Clipboard monitor loop did not exit in time")
	}
	m.logger.Info("Clipboard monitor stopped")
}

// Toggle flips the monitor on or off and returns the new state.
func (m *Monitor) Toggle() bool {
	if m.Enabled() {
		m.Stop()
	} else {
		m.Start()
	}
	return m.Enabled()
}

func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// GetHistory returns up to limit accepted texts, newest last.
func (m *Monitor) GetHistory(limit int) []string {
	return m.history.GetLast(limit)
}

func (m *Monitor) monitorClipboard(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := m.clock.Ticker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	content, err := m.clipboard.Read()
	if err != nil {
		m.logger.Error("Error reading clipboard", zap.Error(err))
		return
	}
	m.observe(content)
}

// observe processes one clipboard read and reports whether the handler was
// scheduled for it.
func (m *Monitor) observe(content string) bool {
	m.mu.Lock()
	if content == m.lastContent {
		m.mu.Unlock()
		return false
	}
	m.lastContent = content
	m.mu.Unlock()

	if !Validate(content, m.cfg.MinLength, m.cfg.MaxLength) {
		m.logger.Debug("Ignoring clipboard content", zap.Int("length", len([]rune(content))))
		return false
	}

	m.logger.Info("New clipboard content detected", zap.String("preview", preview(content, 50)))
	m.history.Add(content)

	if m.handler == nil {
		return false
	}
	return m.pool.Submit("clipboard", func() { m.handler(content) })
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
