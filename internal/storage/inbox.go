package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/inspiration-daemon/internal/types"
	"github.com/berrythewa/inspiration-daemon/pkg/compression"
)

const inboxBucket = "inbox"

// InboxConfig holds configuration for Inbox initialization
type InboxConfig struct {
	DBPath string
	Logger *zap.Logger
}

// Inbox is a local, append-only log of routed content events backed by
// BoltDB. Keys start with the big-endian capture time so a cursor walks
// events in chronological order.
type Inbox struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// record is the stored form of a ContentEvent. Large texts are gzipped.
type record struct {
	ID          string       `json:"id"`
	Source      types.Source `json:"source"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	CapturedAt  time.Time    `json:"captured_at"`
	Text        string       `json:"text,omitempty"`
	Gzip        []byte       `json:"gzip,omitempty"`
}

// OpenInbox opens (or creates) the inbox database.
func OpenInbox(cfg InboxConfig) (*Inbox, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create inbox directory: %w", err)
	}

	db, err := bbolt.Open(cfg.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(inboxBucket)); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Inbox initialized", zap.String("db_path", cfg.DBPath))
	return &Inbox{db: db, logger: logger}, nil
}

func eventKey(ev types.ContentEvent) []byte {
	key := make([]byte, 8, 8+len(ev.ID))
	binary.BigEndian.PutUint64(key, uint64(ev.CapturedAt.UnixNano()))
	return append(key, ev.ID...)
}

// Save appends an event to the inbox.
func (in *Inbox) Save(ev types.ContentEvent) error {
	rec := record{
		ID:          ev.ID,
		Source:      ev.Source,
		Fingerprint: ev.Fingerprint,
		CapturedAt:  ev.CapturedAt,
	}
	data, compressed, err := compression.Compress([]byte(ev.Text))
	if err != nil {
		return fmt.Errorf("failed to compress event text: %w", err)
	}
	if compressed {
		rec.Gzip = data
	} else {
		rec.Text = ev.Text
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = in.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(inboxBucket)).Put(eventKey(ev), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	in.logger.Debug("Saved event to inbox",
		zap.String("id", ev.ID),
		zap.String("source", string(ev.Source)),
		zap.Bool("compressed", compressed))
	return nil
}

// List returns up to limit events, oldest first and newest last. A limit
// of zero or less returns every event.
func (in *Inbox) List(limit int) ([]types.ContentEvent, error) {
	var events []types.ContentEvent

	err := in.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(inboxBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}
			ev, err := decodeRecord(v)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func decodeRecord(v []byte) (types.ContentEvent, error) {
	var rec record
	if err := json.Unmarshal(v, &rec); err != nil {
		return types.ContentEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	text := rec.Text
	if rec.Gzip != nil {
		raw, err := compression.Decompress(rec.Gzip)
		if err != nil {
			return types.ContentEvent{}, fmt.Errorf("failed to decompress event %s: %w", rec.ID, err)
		}
		text = string(raw)
	}
	return types.ContentEvent{
		ID:          rec.ID,
		Source:      rec.Source,
		Text:        text,
		Fingerprint: rec.Fingerprint,
		CapturedAt:  rec.CapturedAt,
	}, nil
}

// Count returns the number of stored events.
func (in *Inbox) Count() (int, error) {
	var n int
	err := in.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(inboxBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func (in *Inbox) Close() error {
	return in.db.Close()
}

// InboxRouter routes content events into an Inbox. It is the default
// consumer when no external service is wired in.
type InboxRouter struct {
	inbox *Inbox
}

func NewInboxRouter(inbox *Inbox) *InboxRouter {
	return &InboxRouter{inbox: inbox}
}

func (r *InboxRouter) Route(ctx context.Context, ev types.ContentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.inbox.Save(ev)
}
