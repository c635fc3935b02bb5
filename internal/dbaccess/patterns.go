package dbaccess

import (
	"context"
	"sync"
	"time"

	"obscore/internal/correlation"
	"obscore/internal/observability"
)

const (
	// defaultPatternThreshold is how many identical normalized statements
	// within one window look like an N+1 access pattern.
	defaultPatternThreshold = 5

	defaultPatternWindow = 10 * time.Second
)

type patternEntry struct {
	count       int
	windowStart time.Time
	warned      bool
}

// patternTracker counts identical normalized statements per correlation
// id. Shared across tasks, so all access is mutex-guarded; stale windows
// are pruned opportunistically on record.
type patternTracker struct {
	mu        sync.Mutex
	entries   map[string]*patternEntry
	threshold int
	window    time.Duration
}

func newPatternTracker(threshold int, window time.Duration) *patternTracker {
	return &patternTracker{
		entries:   make(map[string]*patternEntry),
		threshold: threshold,
		window:    window,
	}
}

// record counts one occurrence and reports whether the threshold was just
// crossed. The warning fires once per window per pattern.
func (t *patternTracker) record(ctx context.Context, sql string) (int, bool) {
	id, _ := correlation.FromContext(ctx)
	key := id + "|" + observability.SanitizeSQL(sql)
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, e := range t.entries {
		if now.Sub(e.windowStart) > t.window {
			delete(t.entries, k)
		}
	}

	e, ok := t.entries[key]
	if !ok || now.Sub(e.windowStart) > t.window {
		e = &patternEntry{windowStart: now}
		t.entries[key] = e
	}
	e.count++

	if e.count >= t.threshold && !e.warned {
		e.warned = true
		return e.count, true
	}
	return e.count, false
}
