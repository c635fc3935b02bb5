package errors

import (
	"sync"
	"time"
)

// alertCache remembers when each fingerprint last alerted. It is shared
// process-wide state: the mutex makes the check-and-record atomic, so at
// most one alert per fingerprint per cooldown holds even when concurrent
// tasks race on the same failure.
type alertCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	maxAge time.Duration
}

func newAlertCache(maxAge time.Duration) *alertCache {
	return &alertCache{
		seen:   make(map[string]time.Time),
		maxAge: maxAge,
	}
}

// Allow reports whether an alert for the fingerprint may be dispatched
// now, reserving the slot when it may. The returned reservation time is
// handed back to Release if the dispatch fails, so a failed send does not
// consume the cooldown. Entries older than the maximum age are pruned
// opportunistically on the way through.
func (c *alertCache) Allow(fingerprint string, cooldown time.Duration) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for fp, t := range c.seen {
		if now.Sub(t) > c.maxAge {
			delete(c.seen, fp)
		}
	}

	if last, ok := c.seen[fingerprint]; ok && now.Sub(last) < cooldown {
		return time.Time{}, false
	}
	c.seen[fingerprint] = now
	return now, true
}

// Release drops a reservation made by Allow. Only the exact reservation
// is dropped: an entry rewritten by a later Allow is left alone, so a
// slow failing dispatch cannot erase a newer successful one.
func (c *alertCache) Release(fingerprint string, reserved time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.seen[fingerprint]; ok && t.Equal(reserved) {
		delete(c.seen, fingerprint)
	}
}

// Len returns the number of live entries. Test hook.
func (c *alertCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
