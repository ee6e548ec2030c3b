package dedupe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	fileVersion = 1

	// DefaultTTL is the window in which an identical copy counts as a repeat.
	DefaultTTL = 48 * time.Hour
)

// Decision is the result of Check. Fingerprint is always set so a caller
// can mark it after successful delivery.
type Decision struct {
	IsDuplicate bool   `json:"is_duplicate"`
	Fingerprint string `json:"fingerprint"`
	AgeSeconds  *int64 `json:"age_seconds,omitempty"`
}

type Stats struct {
	Entries    int    `json:"entries"`
	TTLSeconds int64  `json:"ttl_seconds"`
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
}

type fileData struct {
	Version    int             `json:"version"`
	TTLSeconds int64           `json:"ttl_seconds"`
	Items      json.RawMessage `json:"items"`
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithoutCompaction keeps expired entries loaded and never rewrites the
// file on Open. Inspection tools use it so they do not race the daemon,
// which owns the file.
func WithoutCompaction() Option {
	return func(s *Store) { s.noCompact = true }
}

// Store remembers fingerprints of successfully routed clipboard content
// for a TTL and mirrors them to a JSON file so the window survives
// restarts. All methods are safe for concurrent use.
type Store struct {
	path   string
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger

	noCompact bool

	mu      sync.Mutex
	enabled bool
	items   map[string]float64
}

// Open loads the store at path. A missing file yields an empty store; an
// unreadable or malformed one is logged and ignored. Expired entries are
// dropped on load and the file is rewritten without them. An empty path
// keeps the store in memory only.
func Open(path string, ttl time.Duration, enabled bool, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		path:    path,
		ttl:     ttl,
		enabled: enabled,
		items:   make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		s.logger.Warn("Ignoring unreadable dedupe cache", zap.String("path", path), zap.Error(err))
		s.items = make(map[string]float64)
	}
	return s
}

func (s *Store) loadLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dedupe cache: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse dedupe cache: %w", err)
	}
	if len(data.Items) == 0 {
		return nil
	}
	var items map[string]interface{}
	if err := json.Unmarshal(data.Items, &items); err != nil {
		// items is not an object; nothing usable in the file
		return nil
	}

	now := s.now()
	ttl := s.ttl.Seconds()
	total, kept := 0, 0
	for fp, v := range items {
		total++
		ts, ok := toEpoch(v)
		if !ok {
			continue
		}
		if s.noCompact || now-ts <= ttl {
			s.items[fp] = ts
			kept++
		}
	}

	if kept != total && !s.noCompact {
		if err := s.saveLocked(); err != nil {
			s.logger.Warn("Failed to compact dedupe cache", zap.Error(err))
		}
	}
	s.logger.Info("Loaded dedupe cache",
		zap.String("path", s.path),
		zap.Int("entries", kept),
		zap.Int("dropped", total-kept),
		zap.Duration("ttl", s.ttl))
	return nil
}

func toEpoch(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (s *Store) now() float64 {
	return float64(s.clock.Now().UnixNano()) / float64(time.Second)
}

// Check reports whether text was marked within the TTL. An expired entry
// is evicted from memory and reported as new, with its age.
func (s *Store) Check(text string) Decision {
	fp := Fingerprint(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return Decision{Fingerprint: fp}
	}
	ts, ok := s.items[fp]
	if !ok {
		return Decision{Fingerprint: fp}
	}

	age := int64(s.now() - ts)
	if float64(age) > s.ttl.Seconds() {
		delete(s.items, fp)
		return Decision{Fingerprint: fp, AgeSeconds: &age}
	}
	return Decision{IsDuplicate: true, Fingerprint: fp, AgeSeconds: &age}
}

// MarkFingerprint records fp as delivered now, prunes expired entries and
// persists the cache. It is a no-op when the store is disabled.
func (s *Store) MarkFingerprint(fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil
	}
	s.items[fp] = s.now()
	pruned := s.pruneLocked()
	if pruned > 0 {
		s.logger.Debug("Pruned expired dedupe entries", zap.Int("count", pruned))
	}
	return s.saveLocked()
}

// Prune drops expired entries and persists the cache when any were removed.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := s.pruneLocked()
	if pruned == 0 {
		return 0, nil
	}
	return pruned, s.saveLocked()
}

// RunPruner prunes every interval until ctx is done.
func (s *Store) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune()
			if err != nil {
				s.logger.Warn("Periodic dedupe prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Periodic dedupe prune", zap.Int("removed", n))
			}
		}
	}
}

func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:    len(s.items),
		TTLSeconds: int64(s.ttl.Seconds()),
		Enabled:    s.enabled,
		Path:       s.path,
	}
}

func (s *Store) pruneLocked() int {
	now := s.now()
	ttl := s.ttl.Seconds()
	n := 0
	for fp, ts := range s.items {
		if now-ts > ttl {
			delete(s.items, fp)
			n++
		}
	}
	return n
}

// saveLocked writes the whole map to a temp file next to the target and
// renames it into place, so readers never see a partial file.
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dedupe directory: %w", err)
	}

	items, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("failed to encode dedupe items: %w", err)
	}
	raw, err := json.Marshal(fileData{
		Version:    fileVersion,
		TTLSeconds: int64(s.ttl.Seconds()),
		Items:      items,
	})
	if err != nil {
		return fmt.Errorf("failed to encode dedupe cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write dedupe cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync dedupe cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close dedupe cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace dedupe cache: %w", err)
	}
	return nil
}
