// Package dedup rate-limits repeated events by key. The transports use it so
// a disconnected peer produces one "dropped" diagnostic per window instead of
// one per tick.
package dedup

import (
	"sync"
	"time"
)

type entry struct {
	until      time.Time
	suppressed int
}

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]*entry
	now  func() time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if max <= 0 {
		max = 1000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]*entry), now: time.Now}
}

// Allow reports whether key may be processed now. When it may, suppressed is
// the number of calls for the same key that were refused since the last
// allowed one.
func (d *Deduper) Allow(key string) (ok bool, suppressed int) {
	if d == nil || key == "" {
		return true, 0
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, have := d.seen[key]; have && now.Before(e.until) {
		e.suppressed++
		return false, 0
	} else if have {
		suppressed = e.suppressed
	}
	d.seen[key] = &entry{until: now.Add(d.ttl)}
	if len(d.seen) > d.max {
		d.evict(now)
	}
	return true, suppressed
}

// evict drops expired entries, then the oldest ones until the map is back
// within max.
func (d *Deduper) evict(now time.Time) {
	for k, e := range d.seen {
		if now.After(e.until) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		var oldest string
		var until time.Time
		for k, e := range d.seen {
			if oldest == "" || e.until.Before(until) {
				oldest, until = k, e.until
			}
		}
		delete(d.seen, oldest)
	}
}
