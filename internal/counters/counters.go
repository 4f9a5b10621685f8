// Package counters holds the process-wide operational state reported on the
// status page.
package counters

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counters tracks startup time and the number of requests proxied upstream.
// It is shared by every in-flight request.
type Counters struct {
	mu      sync.RWMutex // guards startup and serialises Reset against Snapshot
	startup time.Time
	proxied atomic.Uint64
}

// Snapshot is a read-only view of Counters at one instant.
type Snapshot struct {
	Uptime          time.Duration
	ProxiedRequests uint64
}

// New returns Counters started at now.
func New(now time.Time) *Counters {
	return &Counters{startup: now}
}

// Reset records a process start: startup becomes now and the proxied count returns to zero.
func (c *Counters) Reset(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startup = now
	c.proxied.Store(0)
}

// IncProxied records one request that was forwarded and answered upstream.
func (c *Counters) IncProxied() {
	c.mu.RLock()
	c.proxied.Add(1)
	c.mu.RUnlock()
}

// Snapshot reports uptime relative to now and the proxied count.
func (c *Counters) Snapshot(now time.Time) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Uptime:          now.Sub(c.startup),
		ProxiedRequests: c.proxied.Load(),
	}
}

// Startup returns the recorded startup time.
func (c *Counters) Startup() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startup
}

// ProxiedRequests returns the current proxied count.
func (c *Counters) ProxiedRequests() uint64 {
	return c.proxied.Load()
}
