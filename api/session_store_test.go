package api

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func record(id string, expires time.Time) SessionRecord {
	return SessionRecord{
		SessionID:    id,
		Created:      expires.Add(-24 * time.Hour),
		ExpiresAt:    expires,
		Pad:          "01010101",
		LastAccess:   expires.Add(-24 * time.Hour),
		LastOriginIP: "127.0.0.1",
		Username:     "user-" + id,
	}
}

// sessionStoreTests runs the common suite against any SessionStore.
func sessionStoreTests(t *testing.T, store SessionStore, clock *fakeClock) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		store.Put("tok-1", record("tok-1", clock.Now().Add(time.Hour)))
		got, ok := store.Get("tok-1")
		require.True(t, ok)
		assert.Equal(t, "user-tok-1", got.Username)
		assert.Equal(t, "01010101", got.Pad)
	})

	t.Run("GetUpdatesLastAccess", func(t *testing.T) {
		store.Put("tok-touch", record("tok-touch", clock.Now().Add(time.Hour)))
		got, ok := store.Get("tok-touch")
		require.True(t, ok)
		assert.Equal(t, clock.Now(), got.LastAccess.UTC())
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok := store.Get("no-such-id")
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		store.Put("tok-del", record("tok-del", clock.Now().Add(time.Hour)))
		store.Delete("tok-del")
		_, ok := store.Get("tok-del")
		assert.False(t, ok)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		// Idempotent; must not panic.
		store.Delete("never-existed")
		store.Delete("never-existed")
	})

	t.Run("Overwrite", func(t *testing.T) {
		store.Put("tok-ow", record("tok-ow", clock.Now().Add(time.Hour)))
		rec := record("tok-ow", clock.Now().Add(2*time.Hour))
		rec.Username = "replaced"
		store.Put("tok-ow", rec)

		got, ok := store.Get("tok-ow")
		require.True(t, ok)
		assert.Equal(t, "replaced", got.Username)
	})

	t.Run("ExpiredIsAbsentBeforeSweep", func(t *testing.T) {
		// The sweep rate limit has not elapsed, but Get must still
		// treat the expired record as gone.
		store.Put("tok-exp", record("tok-exp", clock.Now().Add(time.Minute)))
		clock.Advance(2 * time.Minute)
		_, ok := store.Get("tok-exp")
		assert.False(t, ok)
	})

	t.Run("ListSkipsExpired", func(t *testing.T) {
		store.Put("tok-live", record("tok-live", clock.Now().Add(time.Hour)))
		store.Put("tok-dead", record("tok-dead", clock.Now().Add(-time.Hour)))
		var ids []string
		for _, rec := range store.List() {
			ids = append(ids, rec.SessionID)
		}
		assert.Contains(t, ids, "tok-live")
		assert.NotContains(t, ids, "tok-dead")
	})
}

func TestMemorySessionStore(t *testing.T) {
	clock := newFakeClock()
	store := NewMemorySessionStore(WithMemoryClock(clock.Now))
	sessionStoreTests(t, store, clock)
}

func TestBoltSessionStore(t *testing.T) {
	clock := newFakeClock()
	store, err := NewBoltSessionStoreFromFile(
		filepath.Join(t.TempDir(), "sessions.db"), WithBoltClock(clock.Now))
	require.NoError(t, err)
	defer store.Close()
	sessionStoreTests(t, store, clock)
}

func TestBoltSessionStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s1, err := NewBoltSessionStoreFromFile(path)
	require.NoError(t, err)
	s1.Put("tok-persist", record("tok-persist", time.Now().Add(time.Hour)))
	require.NoError(t, s1.Close())

	s2, err := NewBoltSessionStoreFromFile(path)
	require.NoError(t, err)
	defer s2.Close()
	got, ok := s2.Get("tok-persist")
	require.True(t, ok)
	assert.Equal(t, "user-tok-persist", got.Username)
}

func TestMemorySweepRateLimit(t *testing.T) {
	clock := newFakeClock()
	var evicted []string
	store := NewMemorySessionStore(
		WithMemoryClock(clock.Now),
		WithMemorySweepInterval(24*time.Hour),
		WithMemoryEvictHook(func(id string) { evicted = append(evicted, id) }))

	// First Get runs the initial sweep; the rate limit then holds.
	store.Get("warm-up")

	store.Put("tok-a", record("tok-a", clock.Now().Add(time.Minute)))
	clock.Advance(2 * time.Minute)

	// Within the interval: no sweep, but the expired record is still
	// evicted lazily on direct access.
	store.Get("unrelated")
	assert.Empty(t, evicted)

	clock.Advance(24 * time.Hour)
	store.Get("unrelated")
	assert.Equal(t, []string{"tok-a"}, evicted)
}

func TestBoltSweepEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	var evicted []string
	store, err := NewBoltSessionStoreFromFile(
		filepath.Join(t.TempDir(), "sessions.db"),
		WithBoltClock(clock.Now),
		WithBoltSweepInterval(time.Hour),
		WithBoltEvictHook(func(id string) { evicted = append(evicted, id) }))
	require.NoError(t, err)
	defer store.Close()

	store.Get("warm-up")
	store.Put("tok-a", record("tok-a", clock.Now().Add(time.Minute)))
	store.Put("tok-b", record("tok-b", clock.Now().Add(48*time.Hour)))

	clock.Advance(2 * time.Hour)
	store.Get("unrelated")

	assert.Equal(t, []string{"tok-a"}, evicted)
	_, ok := store.Get("tok-b")
	assert.True(t, ok)
}

func TestDeleteReleasesUserStorage(t *testing.T) {
	var evicted []string
	store := NewMemorySessionStore(
		WithMemoryEvictHook(func(id string) { evicted = append(evicted, id) }))

	store.Put("tok-1", record("tok-1", time.Now().Add(time.Hour)))
	store.Delete("tok-1")
	assert.Equal(t, []string{"tok-1"}, evicted)

	// Absent ids never reach the hook.
	store.Delete("tok-1")
	assert.Len(t, evicted, 1)
}

func TestSessionStoreConcurrency(t *testing.T) {
	stores := map[string]SessionStore{
		"memory": NewMemorySessionStore(),
	}
	bolt, err := NewBoltSessionStoreFromFile(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer bolt.Close()
	stores["bolt"] = bolt

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			const workers = 16
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					id := fmt.Sprintf("tok-%d", n)
					for j := 0; j < 50; j++ {
						store.Put(id, record(id, time.Now().Add(time.Hour)))
						got, ok := store.Get(id)
						if ok {
							assert.Equal(t, id, got.SessionID)
						}
						if j%10 == 9 {
							store.Delete(id)
						}
					}
				}(i)
			}
			wg.Wait()

			// Every key got its final Put or Delete, nothing corrupted.
			for i := 0; i < workers; i++ {
				id := fmt.Sprintf("tok-%d", i)
				if got, ok := store.Get(id); ok {
					assert.Equal(t, "user-"+id, got.Username)
				}
			}
		})
	}
}
