package api

import (
	"sync"
	"time"
)

// MemorySessionStore is a thread-safe in-memory SessionStore. Sessions
// are lost on server restart.
type MemorySessionStore struct {
	mu        sync.Mutex
	data      map[string]SessionRecord
	lastSweep time.Time

	sweepInterval time.Duration
	now           func() time.Time
	onEvict       EvictHook
}

var _ SessionStore = (*MemorySessionStore)(nil)

// MemoryOption configures a MemorySessionStore.
type MemoryOption func(*MemorySessionStore)

// WithMemoryClock injects a clock, used by tests to simulate expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemorySessionStore) { s.now = now }
}

// WithMemorySweepInterval overrides the sweep rate limit.
func WithMemorySweepInterval(d time.Duration) MemoryOption {
	return func(s *MemorySessionStore) { s.sweepInterval = d }
}

// WithMemoryEvictHook registers a hook for removed records.
func WithMemoryEvictHook(hook EvictHook) MemoryOption {
	return func(s *MemorySessionStore) { s.onEvict = hook }
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore(opts ...MemoryOption) *MemorySessionStore {
	s := &MemorySessionStore{
		data:          make(map[string]SessionRecord),
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySessionStore) Get(id string) (SessionRecord, bool) {
	evicted := s.maybeSweep()

	s.mu.Lock()
	rec, ok := s.data[id]
	now := s.now()
	if ok && now.After(rec.ExpiresAt) {
		delete(s.data, id)
		evicted = append(evicted, id)
		ok = false
	}
	if ok {
		rec.LastAccess = now
		s.data[id] = rec
	}
	s.mu.Unlock()

	s.notifyEvicted(evicted)
	if !ok {
		return SessionRecord{}, false
	}
	return rec, true
}

func (s *MemorySessionStore) Put(id string, rec SessionRecord) {
	s.mu.Lock()
	s.data[id] = rec
	s.mu.Unlock()
}

func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	_, existed := s.data[id]
	delete(s.data, id)
	s.mu.Unlock()
	if existed {
		s.notifyEvicted([]string{id})
	}
}

func (s *MemorySessionStore) List() []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]SessionRecord, 0, len(s.data))
	for _, rec := range s.data {
		if now.After(rec.ExpiresAt) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// maybeSweep removes expired records at most once per sweep interval.
// The removed ids are returned so eviction hooks run outside the lock.
func (s *MemorySessionStore) maybeSweep() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return nil
	}
	s.lastSweep = now

	var evicted []string
	for id, rec := range s.data {
		if now.After(rec.ExpiresAt) {
			delete(s.data, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (s *MemorySessionStore) notifyEvicted(ids []string) {
	if s.onEvict == nil {
		return
	}
	for _, id := range ids {
		s.onEvict(id)
	}
}
