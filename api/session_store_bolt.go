package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("sessions")

// BoltSessionStore keeps one durable record per session id in a bbolt
// database, so sessions survive server restarts. Store-internal errors
// are logged and surfaced to callers as "not found".
type BoltSessionStore struct {
	db        *bbolt.DB
	logger    *slog.Logger
	lastSweep atomic.Int64 // unix seconds; CAS-guarded so only one Get runs a sweep

	sweepInterval time.Duration
	now           func() time.Time
	onEvict       EvictHook
}

var _ SessionStore = (*BoltSessionStore)(nil)

// BoltOption configures a BoltSessionStore.
type BoltOption func(*BoltSessionStore)

// WithBoltClock injects a clock, used by tests to simulate expiry.
func WithBoltClock(now func() time.Time) BoltOption {
	return func(s *BoltSessionStore) { s.now = now }
}

// WithBoltSweepInterval overrides the sweep rate limit.
func WithBoltSweepInterval(d time.Duration) BoltOption {
	return func(s *BoltSessionStore) { s.sweepInterval = d }
}

// WithBoltEvictHook registers a hook for removed records.
func WithBoltEvictHook(hook EvictHook) BoltOption {
	return func(s *BoltSessionStore) { s.onEvict = hook }
}

// WithBoltLogger sets the logger for store-internal failures.
func WithBoltLogger(logger *slog.Logger) BoltOption {
	return func(s *BoltSessionStore) { s.logger = logger }
}

// NewBoltSessionStore creates a store backed by the given database.
func NewBoltSessionStore(db *bbolt.DB, opts ...BoltOption) (*BoltSessionStore, error) {
	s := &BoltSessionStore{
		db:            db,
		logger:        slog.Default(),
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}
	return s, nil
}

// NewBoltSessionStoreFromFile opens a bbolt database at path.
func NewBoltSessionStoreFromFile(path string, opts ...BoltOption) (*BoltSessionStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	return NewBoltSessionStore(db, opts...)
}

// Close closes the underlying database.
func (s *BoltSessionStore) Close() error {
	return s.db.Close()
}

func (s *BoltSessionStore) Get(id string) (SessionRecord, bool) {
	s.maybeSweep()

	var rec SessionRecord
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		s.logger.Warn("session read failed", slog.String("session_id", id), slog.String("error", err.Error()))
		return SessionRecord{}, false
	}
	if !found {
		return SessionRecord{}, false
	}
	if s.now().After(rec.ExpiresAt) {
		s.Delete(id)
		return SessionRecord{}, false
	}

	rec.LastAccess = s.now()
	if err := s.write(id, rec); err != nil {
		s.logger.Warn("session touch failed", slog.String("session_id", id), slog.String("error", err.Error()))
	}
	return rec, true
}

func (s *BoltSessionStore) Put(id string, rec SessionRecord) {
	if err := s.write(id, rec); err != nil {
		s.logger.Warn("session write failed", slog.String("session_id", id), slog.String("error", err.Error()))
	}
}

func (s *BoltSessionStore) write(id string, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(id), data)
	})
}

func (s *BoltSessionStore) Delete(id string) {
	existed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		existed = b.Get([]byte(id)) != nil
		return b.Delete([]byte(id))
	})
	if err != nil {
		s.logger.Warn("session delete failed", slog.String("session_id", id), slog.String("error", err.Error()))
		return
	}
	if existed && s.onEvict != nil {
		s.onEvict(id)
	}
}

func (s *BoltSessionStore) List() []SessionRecord {
	now := s.now()
	var out []SessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(func(_, v []byte) error {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !now.After(rec.ExpiresAt) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Warn("session list failed", slog.String("error", err.Error()))
		return nil
	}
	return out
}

// maybeSweep removes expired records at most once per sweep interval.
// A compare-and-swap on the last-sweep stamp keeps concurrent Gets from
// running duplicate sweeps; the loser proceeds without sweeping.
func (s *BoltSessionStore) maybeSweep() {
	now := s.now()
	last := s.lastSweep.Load()
	if now.Sub(time.Unix(last, 0)) < s.sweepInterval {
		return
	}
	if !s.lastSweep.CompareAndSwap(last, now.Unix()) {
		return
	}

	var expired []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(func(k, v []byte) error {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// Corrupt entry, remove it.
				expired = append(expired, string(k))
				return nil
			}
			if now.After(rec.ExpiresAt) {
				expired = append(expired, string(k))
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Warn("session sweep scan failed", slog.String("error", err.Error()))
		return
	}
	for _, id := range expired {
		s.Delete(id)
	}
	if len(expired) > 0 {
		s.logger.Info("session sweep evicted expired records", slog.Int("count", len(expired)))
	}
}
